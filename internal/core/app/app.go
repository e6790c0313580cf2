// Package app owns the session: it applies actions to the state and runs the
// single background chat request.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/asynkron/openx/internal/core/action"
	"github.com/asynkron/openx/internal/core/commands"
	"github.com/asynkron/openx/internal/core/palette"
	"github.com/asynkron/openx/internal/core/state"
	"github.com/asynkron/openx/internal/logging"
)

const (
	// WelcomeMessage opens every transcript.
	WelcomeMessage = "Welcome to OpenX. Type what you need or use / for shortcuts."
	// GoodbyeMessage answers a local quit.
	GoodbyeMessage = "Goodbye."

	pageSize = 10
	// Jump-to-bottom leaves this many lines of context above the newest line.
	bottomMargin = 20
	// Lines kept visible above the newest reply after it arrives.
	followMargin = 10

	resultBuffer = 16
)

// Result is the outcome of one background chat request.
type Result struct {
	Generation uint64
	RequestID  string
	Text       string
}

// App is the single writer of the session state. Every method except the
// request goroutine runs on the UI loop.
type App struct {
	State *state.AppState

	ShouldQuit bool
	Connected  bool
	// Tick advances once per frame and drives the spinner.
	Tick int

	opts    Options
	logger  logging.Logger
	results chan Result

	generation uint64
	cancel     context.CancelFunc
	inflight   sync.WaitGroup
}

// New validates opts and returns an idle session.
func New(opts Options) (*App, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &App{
		State:   state.New(),
		opts:    opts,
		logger:  opts.Logger.WithFields(logging.Field("conversation_id", opts.ConversationID)),
		results: make(chan Result, resultBuffer),
	}, nil
}

// ConversationID returns the id sent with every chat request.
func (a *App) ConversationID() string {
	return a.opts.ConversationID
}

// InputHasFocus reports whether keystrokes belong to the input line.
func (a *App) InputHasFocus() bool {
	return a.State.InputHasFocus()
}

// Bootstrap probes the backend, greets the user and loads the palette.
// Backend failures only reduce what is shown; they are never fatal.
func (a *App) Bootstrap(ctx context.Context) {
	a.Connected = a.opts.Gateway.Health(ctx)
	a.State.Chat.Append(state.NewMessage(state.RoleSystem, WelcomeMessage))

	catalog := commands.Builtins()
	tools, err := a.opts.Gateway.ListTools(ctx)
	if err != nil {
		a.logger.Warn(ctx, "tool list unavailable; using built-in commands only", logging.Field("error", err.Error()))
	} else {
		extra := make([]state.CommandEntry, 0, len(tools))
		for _, tool := range tools {
			extra = append(extra, state.CommandEntry{Name: tool.Name, Description: tool.Description})
		}
		catalog = commands.Merge(catalog, extra)
	}
	a.State.Palette.Commands = catalog
	palette.Update(&a.State.Palette)

	a.logger.Info(ctx, "session ready",
		logging.Field("connected", a.Connected),
		logging.Field("commands", len(catalog)),
	)
}

// Dispatch applies one action to the state.
func (a *App) Dispatch(act action.Action) {
	s := a.State
	switch act.Kind {
	case action.Quit:
		a.ShouldQuit = true

	case action.UnfocusInput:
		s.InputFocused = false

	case action.InsertChar:
		a.insertRune(act.Rune)

	case action.Backspace:
		a.backspace()

	case action.ClearInput:
		s.Input = ""
		s.Cursor = 0
		s.InputFocused = false
		s.Palette.Visible = false

	case action.Submit:
		a.submit()

	case action.CancelStreaming:
		a.cancelRequest()

	case action.CopyLastReply:
		a.copyLastReply()

	case action.ChatScrollPageUp:
		s.Chat.Scroll = max(s.Chat.Scroll-pageSize, 0)
	case action.ChatScrollPageDown:
		s.Chat.Scroll += pageSize
	case action.ChatScrollTop:
		s.Chat.Scroll = 0
	case action.ChatScrollBottom:
		s.Chat.Scroll = max(s.Chat.TotalLines(false)-bottomMargin, 0)

	case action.HistoryUp:
		a.historyUp()
	case action.HistoryDown:
		a.historyDown()

	case action.PaletteShow:
		s.Palette.Visible = true
		s.Palette.Query = ""
		s.Input = "/"
		s.Cursor = 1
		palette.Update(&s.Palette)
	case action.PaletteHide:
		s.Palette.Visible = false
	case action.PaletteUp:
		a.paletteMove(-1)
	case action.PaletteDown:
		a.paletteMove(1)
	case action.PaletteSelect:
		a.acceptSelection()

	default:
		a.logger.Debug(context.Background(), "ignored unknown action", logging.Field("action", act.String()))
	}
}

// PollResults drains finished requests without blocking and returns how many
// were applied. Results from a cancelled request are dropped.
func (a *App) PollResults() int {
	applied := 0
	for {
		select {
		case res := <-a.results:
			if res.Generation != a.generation {
				a.logger.Info(logging.WithRequestID(context.Background(), res.RequestID),
					"dropped reply of cancelled request",
					logging.Field("generation", res.Generation),
					logging.Field("current", a.generation),
				)
				continue
			}
			a.cancel = nil
			a.State.Loading = false
			a.State.Chat.Append(state.NewMessage(state.RoleAgent, res.Text))
			a.State.Chat.Scroll = max(a.State.Chat.TotalLines(true)-followMargin, 0)
			applied++
		default:
			return applied
		}
	}
}

// Advance moves the frame counter and applies finished requests.
func (a *App) Advance() int {
	a.Tick++
	return a.PollResults()
}

// Wait blocks until every spawned request goroutine has delivered its result.
func (a *App) Wait() {
	a.inflight.Wait()
}

// Close aborts the in-flight request, if any.
func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

func (a *App) insertRune(r rune) {
	s := a.State
	s.InputFocused = true
	pos := min(max(s.Cursor, 0), len(s.Input))
	text := string(r)
	s.Input = s.Input[:pos] + text + s.Input[pos:]
	s.Cursor = pos + len(text)
	if s.Palette.Visible {
		a.syncPaletteQuery()
	}
}

// backspace deletes the rune before the cursor. While the palette is open
// the leading "/" at offset 0 cannot be removed.
func (a *App) backspace() {
	s := a.State
	floor := 0
	if s.Palette.Visible {
		floor = 1
	}
	cursor := min(max(s.Cursor, 0), len(s.Input))
	if cursor <= floor {
		return
	}
	_, size := utf8.DecodeLastRuneInString(s.Input[:cursor])
	prev := cursor - size
	if prev >= floor {
		s.Input = s.Input[:prev] + s.Input[cursor:]
		s.Cursor = prev
	}
	if s.Palette.Visible {
		a.syncPaletteQuery()
	}
}

func (a *App) syncPaletteQuery() {
	s := a.State
	query := ""
	if len(s.Input) > 0 && (len(s.Input) == 1 || utf8.RuneStart(s.Input[1])) {
		query = s.Input[1:]
	}
	s.Palette.Query = query
	palette.Update(&s.Palette)
}

func (a *App) paletteMove(delta int) {
	p := &a.State.Palette
	n := len(p.Filtered)
	if n == 0 {
		return
	}
	p.Selected = ((p.Selected+delta)%n + n) % n
}

// acceptSelection copies the highlighted command into the input line.
func (a *App) acceptSelection() bool {
	s := a.State
	cmd, ok := s.Palette.SelectedCommand()
	if !ok {
		return false
	}
	s.Input = cmd.Name
	s.Cursor = len(s.Input)
	s.Palette.Visible = false
	return true
}

func (a *App) submit() {
	s := a.State
	raw := strings.TrimSpace(s.Input)
	if raw == "" {
		return
	}

	if s.Palette.Visible && len(s.Palette.Filtered) > 0 {
		a.acceptSelection()
		return
	}

	if s.Loading {
		return
	}

	s.Palette.Visible = false
	s.Input = ""
	s.Cursor = 0
	s.InputFocused = false

	command := commands.Normalize(raw)
	if n := len(s.History); n == 0 || s.History[n-1] != raw {
		s.History = append(s.History, raw)
	}
	s.HistoryIndex = len(s.History)

	s.Chat.Append(state.NewMessage(state.RoleUser, command))

	if commands.IsQuit(command) {
		s.Chat.Append(state.NewMessage(state.RoleAgent, GoodbyeMessage))
		a.ShouldQuit = true
		return
	}

	s.Loading = true
	s.Chat.StreamingContent = ""
	a.spawn(commands.ChatMessage(command))
}

// spawn starts the one background request. The goroutine only touches its
// captured values and the results channel.
func (a *App) spawn(message string) {
	requestID := logging.NewRequestID()
	ctx, cancel := context.WithTimeout(logging.WithRequestID(context.Background(), requestID), a.opts.RequestTimeout)
	a.cancel = cancel

	gateway := a.opts.Gateway
	conversationID := a.opts.ConversationID
	generation := a.generation
	results := a.results
	logger := a.logger

	logger.Info(ctx, "chat request started", logging.Field("generation", generation))

	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		defer cancel()

		var text string
		resp, err := gateway.Chat(ctx, message, conversationID)
		if err != nil {
			logger.Error(ctx, "chat request failed", err)
			text = fmt.Sprintf("Error: %v", err)
		} else {
			text = resp.Text()
		}
		results <- Result{Generation: generation, RequestID: requestID, Text: text}
	}()
}

// cancelRequest stops waiting for the in-flight reply. Its result is
// discarded when it arrives.
func (a *App) cancelRequest() {
	s := a.State
	if s.Loading {
		a.logger.Info(context.Background(), "chat request cancelled", logging.Field("generation", a.generation))
	}
	s.Loading = false
	s.Chat.StreamingContent = ""
	a.generation++
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

func (a *App) copyLastReply() {
	reply, ok := a.State.Chat.LastByRole(state.RoleAgent)
	if !ok {
		a.State.Chat.Append(state.NewMessage(state.RoleSystem, "Nothing to copy yet."))
		return
	}
	if err := a.opts.Clipboard(reply.Content); err != nil {
		a.logger.Warn(context.Background(), "clipboard write failed", logging.Field("error", err.Error()))
		a.State.Chat.Append(state.NewMessage(state.RoleSystem, "Copy failed: "+err.Error()))
		return
	}
	a.State.Chat.Append(state.NewMessage(state.RoleSystem, "Copied last reply to clipboard."))
}

func (a *App) historyUp() {
	s := a.State
	if s.Palette.Visible || len(s.History) == 0 || s.HistoryIndex == 0 {
		return
	}
	s.HistoryIndex = min(s.HistoryIndex, len(s.History)) - 1
	s.Input = s.History[s.HistoryIndex]
	s.Cursor = len(s.Input)
}

func (a *App) historyDown() {
	s := a.State
	if s.Palette.Visible || s.HistoryIndex >= len(s.History) {
		return
	}
	s.HistoryIndex++
	if s.HistoryIndex >= len(s.History) {
		s.Input = ""
	} else {
		s.Input = s.History[s.HistoryIndex]
	}
	s.Cursor = len(s.Input)
}
