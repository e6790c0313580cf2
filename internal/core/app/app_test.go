package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/asynkron/openx/internal/backend"
	"github.com/asynkron/openx/internal/core/action"
	"github.com/asynkron/openx/internal/core/state"
)

type chatCall struct {
	message        string
	conversationID string
}

type fakeGateway struct {
	mu       sync.Mutex
	healthy  bool
	tools    []backend.Tool
	toolsErr error
	calls    []chatCall
	reply    backend.ChatResponse
	err      error
	// release, when set, holds every Chat call until closed or the context ends.
	release chan struct{}
}

func (f *fakeGateway) Health(context.Context) bool { return f.healthy }

func (f *fakeGateway) ListTools(context.Context) ([]backend.Tool, error) {
	return f.tools, f.toolsErr
}

func (f *fakeGateway) Chat(ctx context.Context, message, conversationID string) (backend.ChatResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, chatCall{message: message, conversationID: conversationID})
	release := f.release
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return backend.ChatResponse{}, ctx.Err()
		}
	}
	return f.reply, f.err
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestApp(t *testing.T, gw *fakeGateway) *App {
	t.Helper()
	a, err := New(Options{Gateway: gw, ConversationID: "tui-test"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func typeText(a *App, text string) {
	for _, r := range text {
		a.Dispatch(action.Insert(r))
	}
}

func submitAndSettle(t *testing.T, a *App, text string) {
	t.Helper()
	typeText(a, text)
	a.Dispatch(action.New(action.Submit))
	a.Wait()
	a.PollResults()
}

func lastMessage(t *testing.T, a *App) state.Message {
	t.Helper()
	msgs := a.State.Chat.Messages
	if len(msgs) == 0 {
		t.Fatalf("expected at least one message")
	}
	return msgs[len(msgs)-1]
}

func TestNewValidatesOptions(t *testing.T) {
	t.Parallel()

	if _, err := New(Options{}); err == nil {
		t.Fatalf("expected error without gateway")
	}

	a, err := New(Options{Gateway: &fakeGateway{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(a.ConversationID(), "tui-") || len(a.ConversationID()) <= len("tui-") {
		t.Fatalf("expected generated tui-<uuid> id, got %q", a.ConversationID())
	}
	if a.opts.RequestTimeout != DefaultRequestTimeout {
		t.Fatalf("expected default timeout, got %s", a.opts.RequestTimeout)
	}
}

func TestBootstrapMergesBackendTools(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		healthy: true,
		tools: []backend.Tool{
			{Name: "/help", Description: "backend help"},
			{Name: "search_code", Description: "Search code"},
		},
	}
	a := newTestApp(t, gw)
	a.Bootstrap(context.Background())

	if !a.Connected {
		t.Fatalf("expected connected after healthy probe")
	}
	if len(a.State.Chat.Messages) != 1 || a.State.Chat.Messages[0].Content != WelcomeMessage {
		t.Fatalf("expected welcome message, got %+v", a.State.Chat.Messages)
	}
	cmds := a.State.Palette.Commands
	if len(cmds) != 32 {
		t.Fatalf("expected 31 builtins plus one tool, got %d", len(cmds))
	}
	if cmds[0].Description != "Show help and available commands" {
		t.Fatalf("builtin /help must win collision, got %+v", cmds[0])
	}
	if cmds[31].Name != "search_code" {
		t.Fatalf("expected backend tool appended last, got %+v", cmds[31])
	}
	if len(a.State.Palette.Filtered) != len(cmds) {
		t.Fatalf("expected identity filter after bootstrap")
	}
}

func TestBootstrapSurvivesBackendDown(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, &fakeGateway{toolsErr: errors.New("connection refused")})
	a.Bootstrap(context.Background())

	if a.Connected {
		t.Fatalf("expected disconnected")
	}
	if len(a.State.Palette.Commands) != 31 {
		t.Fatalf("expected builtins only, got %d", len(a.State.Palette.Commands))
	}
}

func TestInsertAndBackspaceHandleMultibyteRunes(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, &fakeGateway{})
	typeText(a, "héllo")
	if a.State.Input != "héllo" || a.State.Cursor != len("héllo") {
		t.Fatalf("unexpected input %q cursor %d", a.State.Input, a.State.Cursor)
	}
	if !a.State.InputFocused {
		t.Fatalf("typing must focus the input")
	}

	for i := 0; i < 4; i++ {
		a.Dispatch(action.New(action.Backspace))
	}
	if a.State.Input != "h" || a.State.Cursor != 1 {
		t.Fatalf("expected \"h\" after deleting four runes, got %q cursor %d", a.State.Input, a.State.Cursor)
	}

	a.State.Cursor = 0
	a.Dispatch(action.Insert('€'))
	if a.State.Input != "€h" || a.State.Cursor != len("€") {
		t.Fatalf("expected insert at cursor, got %q cursor %d", a.State.Input, a.State.Cursor)
	}

	a.Dispatch(action.New(action.Backspace))
	a.Dispatch(action.New(action.Backspace))
	if a.State.Input != "h" || a.State.Cursor != 0 {
		t.Fatalf("backspace at offset 0 must be a no-op, got %q cursor %d", a.State.Input, a.State.Cursor)
	}
}

func TestPaletteSlashIsProtected(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, &fakeGateway{})
	a.Bootstrap(context.Background())

	a.Dispatch(action.New(action.PaletteShow))
	if !a.State.Palette.Visible || a.State.Input != "/" || a.State.Cursor != 1 {
		t.Fatalf("unexpected palette open state %+v", a.State)
	}

	typeText(a, "re")
	if a.State.Palette.Query != "re" {
		t.Fatalf("expected query \"re\", got %q", a.State.Palette.Query)
	}

	for i := 0; i < 5; i++ {
		a.Dispatch(action.New(action.Backspace))
	}
	if a.State.Input != "/" || a.State.Cursor != 1 {
		t.Fatalf("leading slash must survive, got %q cursor %d", a.State.Input, a.State.Cursor)
	}
	if a.State.Palette.Query != "" || len(a.State.Palette.Filtered) != len(a.State.Palette.Commands) {
		t.Fatalf("expected empty query with identity filter")
	}
}

func TestPaletteNavigationWraps(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, &fakeGateway{})
	a.Bootstrap(context.Background())
	a.Dispatch(action.New(action.PaletteShow))

	n := len(a.State.Palette.Filtered)
	a.Dispatch(action.New(action.PaletteUp))
	if a.State.Palette.Selected != n-1 {
		t.Fatalf("expected wrap to %d, got %d", n-1, a.State.Palette.Selected)
	}
	a.Dispatch(action.New(action.PaletteDown))
	if a.State.Palette.Selected != 0 {
		t.Fatalf("expected wrap to 0, got %d", a.State.Palette.Selected)
	}

	typeText(a, "zzzzqqq")
	if len(a.State.Palette.Filtered) != 0 {
		t.Fatalf("expected no matches")
	}
	a.Dispatch(action.New(action.PaletteDown))
	a.Dispatch(action.New(action.PaletteUp))
	if a.State.Palette.Selected != 0 {
		t.Fatalf("navigation on empty list must be a no-op")
	}
	a.Dispatch(action.New(action.PaletteSelect))
	if !a.State.Palette.Visible {
		t.Fatalf("select without a match must keep the palette open")
	}
}

func TestHelpFlowEndToEnd(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{reply: backend.ChatResponse{Response: "Here is the help."}}
	a := newTestApp(t, gw)
	a.Bootstrap(context.Background())

	a.Dispatch(action.New(action.PaletteShow))
	typeText(a, "help")

	p := &a.State.Palette
	if len(p.Filtered) == 0 || p.Commands[p.Filtered[0]].Name != "/help" || p.Selected != 0 {
		t.Fatalf("expected /help ranked first and selected, got %+v", p.Filtered)
	}

	a.Dispatch(action.New(action.Submit))
	if a.State.Input != "/help" || a.State.Cursor != len("/help") || a.State.Palette.Visible {
		t.Fatalf("expected /help copied into input with palette closed, got %+v", a.State)
	}
	if gw.callCount() != 0 {
		t.Fatalf("picking a palette entry must not send a request")
	}

	a.Dispatch(action.New(action.Submit))
	if !a.State.Loading {
		t.Fatalf("expected loading after submit")
	}
	if msg := lastMessage(t, a); msg.Role != state.RoleUser || msg.Content != "help" {
		t.Fatalf("expected normalized user message, got %+v", msg)
	}
	if a.State.Input != "" || a.State.Cursor != 0 || a.State.InputFocused {
		t.Fatalf("expected cleared, unfocused input")
	}

	a.Wait()
	if applied := a.PollResults(); applied != 1 {
		t.Fatalf("expected one result, got %d", applied)
	}
	if a.State.Loading {
		t.Fatalf("expected loading cleared")
	}
	if msg := lastMessage(t, a); msg.Role != state.RoleAgent || msg.Content != "Here is the help." {
		t.Fatalf("unexpected reply %+v", msg)
	}
	if gw.calls[0].message != "help" || gw.calls[0].conversationID != "tui-test" {
		t.Fatalf("unexpected gateway call %+v", gw.calls[0])
	}
	wantScroll := max(a.State.Chat.TotalLines(true)-10, 0)
	if a.State.Chat.Scroll != wantScroll {
		t.Fatalf("expected auto-scroll to %d, got %d", wantScroll, a.State.Chat.Scroll)
	}
}

func TestSubmitIsSingleFlight(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{release: make(chan struct{}), reply: backend.ChatResponse{Response: "done"}}
	a := newTestApp(t, gw)

	typeText(a, "first")
	a.Dispatch(action.New(action.Submit))
	typeText(a, "second")
	a.Dispatch(action.New(action.Submit))

	if a.State.Input != "second" {
		t.Fatalf("blocked submit must keep the draft, got %q", a.State.Input)
	}
	if len(a.State.History) != 1 {
		t.Fatalf("blocked submit must not touch history, got %v", a.State.History)
	}

	close(gw.release)
	a.Wait()
	a.PollResults()

	if gw.callCount() != 1 {
		t.Fatalf("expected exactly one request, got %d", gw.callCount())
	}
	if a.State.Loading {
		t.Fatalf("expected idle after result")
	}
}

func TestQuitIsLocal(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"quit", "exit", "/exit", "  QUIT  "} {
		gw := &fakeGateway{}
		a := newTestApp(t, gw)
		typeText(a, input)
		a.Dispatch(action.New(action.Submit))

		if strings.TrimSpace(input) == "QUIT" {
			// Plain text is not lower-cased, so this is an ordinary chat message.
			a.Wait()
			if a.ShouldQuit || gw.callCount() != 1 {
				t.Fatalf("%q must be sent to the agent", input)
			}
			continue
		}

		if !a.ShouldQuit {
			t.Fatalf("%q: expected quit", input)
		}
		if gw.callCount() != 0 {
			t.Fatalf("%q: quit must not reach the gateway", input)
		}
		if msg := lastMessage(t, a); msg.Role != state.RoleAgent || msg.Content != GoodbyeMessage {
			t.Fatalf("%q: expected goodbye, got %+v", input, msg)
		}
		if a.State.Loading {
			t.Fatalf("%q: quit must not start loading", input)
		}
	}
}

func TestTransportErrorBecomesOneAgentMessage(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{err: errors.New("dial tcp: connection refused")}
	a := newTestApp(t, gw)

	before := len(a.State.Chat.Messages)
	submitAndSettle(t, a, "hello")

	agentMsgs := 0
	for _, msg := range a.State.Chat.Messages[before:] {
		if msg.Role == state.RoleAgent {
			agentMsgs++
			if msg.Content != "Error: dial tcp: connection refused" {
				t.Fatalf("unexpected error text %q", msg.Content)
			}
		}
	}
	if agentMsgs != 1 {
		t.Fatalf("expected exactly one agent message, got %d", agentMsgs)
	}
	if a.State.Loading {
		t.Fatalf("expected loading cleared after failure")
	}
}

func TestBackendErrorFieldWins(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{reply: backend.ChatResponse{Response: "ignored", Error: "tool crashed"}}
	a := newTestApp(t, gw)
	submitAndSettle(t, a, "/chat do it")

	if gw.calls[0].message != "do it" {
		t.Fatalf("expected chat prefix stripped, got %q", gw.calls[0].message)
	}
	if msg := lastMessage(t, a); msg.Content != "tool crashed" {
		t.Fatalf("expected backend error text, got %q", msg.Content)
	}

	gw.reply = backend.ChatResponse{}
	submitAndSettle(t, a, "again")
	if msg := lastMessage(t, a); msg.Content != backend.NoResponse {
		t.Fatalf("expected placeholder, got %q", msg.Content)
	}
}

func TestCancelDropsStaleResult(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{release: make(chan struct{}), reply: backend.ChatResponse{Response: "late"}}
	a := newTestApp(t, gw)

	typeText(a, "slow question")
	a.Dispatch(action.New(action.Submit))
	a.State.Chat.StreamingContent = "partial"
	a.Dispatch(action.New(action.CancelStreaming))

	if a.State.Loading || a.State.Chat.StreamingContent != "" {
		t.Fatalf("cancel must clear loading and streaming content")
	}

	a.Wait()
	if applied := a.PollResults(); applied != 0 {
		t.Fatalf("stale result must be dropped, applied %d", applied)
	}
	for _, msg := range a.State.Chat.Messages {
		if msg.Role == state.RoleAgent {
			t.Fatalf("unexpected agent message %+v", msg)
		}
	}

	close(gw.release)
	submitAndSettle(t, a, "fast question")
	if msg := lastMessage(t, a); msg.Role != state.RoleAgent || msg.Content != "late" {
		t.Fatalf("expected reply to the new request, got %+v", msg)
	}
}

func TestHistoryNavigation(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, &fakeGateway{reply: backend.ChatResponse{Response: "ok"}})
	submitAndSettle(t, a, "one")
	submitAndSettle(t, a, "one")
	submitAndSettle(t, a, "two")

	if got := a.State.History; len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("expected adjacent duplicates collapsed, got %v", got)
	}
	if a.State.HistoryIndex != 2 {
		t.Fatalf("expected index at draft slot, got %d", a.State.HistoryIndex)
	}

	steps := []struct {
		act   action.Kind
		input string
		index int
	}{
		{action.HistoryUp, "two", 1},
		{action.HistoryUp, "one", 0},
		{action.HistoryUp, "one", 0},
		{action.HistoryDown, "two", 1},
		{action.HistoryDown, "", 2},
		{action.HistoryDown, "", 2},
	}
	for i, step := range steps {
		a.Dispatch(action.New(step.act))
		if a.State.Input != step.input || a.State.HistoryIndex != step.index || a.State.Cursor != len(step.input) {
			t.Fatalf("step %d: got input %q index %d cursor %d", i, a.State.Input, a.State.HistoryIndex, a.State.Cursor)
		}
	}

	a.Dispatch(action.New(action.PaletteShow))
	a.Dispatch(action.New(action.HistoryUp))
	if a.State.Input != "/" {
		t.Fatalf("history must be frozen while the palette is open, got %q", a.State.Input)
	}
}

func TestChatScroll(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, &fakeGateway{})
	for i := 0; i < 30; i++ {
		a.State.Chat.Append(state.NewMessage(state.RoleSystem, "line"))
	}

	a.Dispatch(action.New(action.ChatScrollPageUp))
	if a.State.Chat.Scroll != 0 {
		t.Fatalf("page up must saturate at 0, got %d", a.State.Chat.Scroll)
	}
	a.Dispatch(action.New(action.ChatScrollPageDown))
	a.Dispatch(action.New(action.ChatScrollPageDown))
	if a.State.Chat.Scroll != 20 {
		t.Fatalf("expected 20, got %d", a.State.Chat.Scroll)
	}
	a.Dispatch(action.New(action.ChatScrollPageUp))
	if a.State.Chat.Scroll != 10 {
		t.Fatalf("expected 10, got %d", a.State.Chat.Scroll)
	}
	a.Dispatch(action.New(action.ChatScrollBottom))
	if a.State.Chat.Scroll != 10 {
		t.Fatalf("expected 30-20=10, got %d", a.State.Chat.Scroll)
	}
	a.Dispatch(action.New(action.ChatScrollTop))
	if a.State.Chat.Scroll != 0 {
		t.Fatalf("expected top, got %d", a.State.Chat.Scroll)
	}

	short := newTestApp(t, &fakeGateway{})
	short.Dispatch(action.New(action.ChatScrollBottom))
	if short.State.Chat.Scroll != 0 {
		t.Fatalf("bottom on a short transcript must saturate at 0")
	}
}

func TestClearAndUnfocus(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, &fakeGateway{})
	a.Dispatch(action.New(action.PaletteShow))
	typeText(a, "he")
	a.Dispatch(action.New(action.ClearInput))
	if a.State.Input != "" || a.State.Cursor != 0 || a.State.InputFocused || a.State.Palette.Visible {
		t.Fatalf("unexpected state after clear %+v", a.State)
	}

	typeText(a, "x")
	a.Dispatch(action.New(action.UnfocusInput))
	if a.State.InputFocused || a.State.Input != "x" {
		t.Fatalf("unfocus must keep the buffer")
	}
	if !a.InputHasFocus() {
		t.Fatalf("non-empty buffer still owns keystrokes")
	}

	a.Dispatch(action.New(action.Quit))
	if !a.ShouldQuit {
		t.Fatalf("expected quit flag")
	}
}

func TestSubmitIgnoresBlankInput(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	a := newTestApp(t, gw)
	typeText(a, "   ")
	a.Dispatch(action.New(action.Submit))

	if a.State.Input != "   " || len(a.State.Chat.Messages) != 0 || a.State.Loading {
		t.Fatalf("blank submit must be a no-op, got %+v", a.State)
	}
}

func TestSubmitWithEmptyPaletteSendsCommand(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{reply: backend.ChatResponse{Response: "?"}}
	a := newTestApp(t, gw)
	a.Bootstrap(context.Background())
	a.Dispatch(action.New(action.PaletteShow))
	typeText(a, "zzzzqqq")
	a.Dispatch(action.New(action.Submit))
	a.Wait()

	if gw.callCount() != 1 || gw.calls[0].message != "zzzzqqq" {
		t.Fatalf("expected unknown slash command sent without slash, got %+v", gw.calls)
	}
	if a.State.Palette.Visible {
		t.Fatalf("expected palette closed after send")
	}
}

func TestCopyLastReply(t *testing.T) {
	t.Parallel()

	var copied string
	clipErr := error(nil)
	a, err := New(Options{
		Gateway: &fakeGateway{},
		Clipboard: func(text string) error {
			copied = text
			return clipErr
		},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	a.Dispatch(action.New(action.CopyLastReply))
	if msg := lastMessage(t, a); msg.Role != state.RoleSystem || msg.Content != "Nothing to copy yet." {
		t.Fatalf("unexpected message %+v", msg)
	}

	a.State.Chat.Append(state.NewMessage(state.RoleAgent, "the answer"))
	a.Dispatch(action.New(action.CopyLastReply))
	if copied != "the answer" {
		t.Fatalf("expected reply copied, got %q", copied)
	}
	if msg := lastMessage(t, a); msg.Content != "Copied last reply to clipboard." {
		t.Fatalf("unexpected confirmation %+v", msg)
	}

	clipErr = errors.New("no clipboard utility")
	a.Dispatch(action.New(action.CopyLastReply))
	if msg := lastMessage(t, a); msg.Content != "Copy failed: no clipboard utility" {
		t.Fatalf("unexpected failure message %+v", msg)
	}
}

func TestAdvanceTicksAndPolls(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, &fakeGateway{reply: backend.ChatResponse{Response: "hi"}})
	typeText(a, "hey")
	a.Dispatch(action.New(action.Submit))
	a.Wait()

	if applied := a.Advance(); applied != 1 || a.Tick != 1 {
		t.Fatalf("expected one result on first tick, got applied=%d tick=%d", applied, a.Tick)
	}
	if applied := a.Advance(); applied != 0 || a.Tick != 2 {
		t.Fatalf("expected nothing on second tick, got applied=%d tick=%d", applied, a.Tick)
	}
}
