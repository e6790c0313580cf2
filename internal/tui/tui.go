// Package tui renders the session with bubbletea. It owns no decisions: key
// presses go through the key mapper to the dispatcher, and every frame reads
// the resulting state.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	glam "github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/asynkron/openx/internal/core/app"
	"github.com/asynkron/openx/internal/core/keymap"
	"github.com/asynkron/openx/internal/logging"
	"github.com/asynkron/openx/internal/workspace"
)

// TickInterval paces result polling and the spinner.
const TickInterval = 80 * time.Millisecond

type tickMsg time.Time
type branchMsg string

// Options configures the program.
type Options struct {
	Workspace *workspace.Context
	Version   string
	Logger    logging.Logger
}

type model struct {
	app    *app.App
	keys   keymap.KeyMap
	ws     *workspace.Context
	logger logging.Logger

	vp        viewport.Model
	help      help.Model
	glam      *glam.TermRenderer
	glamWidth int
	styles    styles

	// rendered holds one block per transcript message at cacheWidth.
	// Messages are append-only, so only new ones are rendered.
	rendered   []string
	cacheWidth int
	renders    int
	content    string

	width   int
	height  int
	ready   bool
	branch  string
	version string
}

func newModel(a *app.App, opts Options) *model {
	st := defaultStyles()

	h := help.New()
	h.ShortSeparator = " "
	h.Styles.ShortKey = st.pillKey
	h.Styles.ShortDesc = st.pillDesc
	h.Styles.ShortSeparator = st.muted

	version := opts.Version
	if version == "" {
		version = "dev"
	}
	logger := opts.Logger
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}

	m := &model{
		app:     a,
		keys:    keymap.DefaultKeyMap(),
		ws:      opts.Workspace,
		logger:  logger,
		vp:      viewport.New(80, 20),
		help:    h,
		styles:  st,
		version: version,
	}
	_ = m.rebuildRenderer(80)
	return m
}

func tick() tea.Cmd {
	return tea.Tick(TickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *model) loadBranch() tea.Cmd {
	ws := m.ws
	if ws == nil {
		return nil
	}
	return func() tea.Msg {
		return branchMsg(ws.Branch(context.Background()))
	}
}

// rebuildRenderer recreates the Glamour renderer with the given wrap width.
func (m *model) rebuildRenderer(wrap int) error {
	if wrap < 10 {
		wrap = 10
	}
	if m.glam != nil && m.glamWidth == wrap {
		return nil
	}
	r, err := glam.NewTermRenderer(
		glam.WithStylePath("dark"), // fixed style to avoid OSC queries
		glam.WithWordWrap(wrap),
	)
	if err != nil {
		return err
	}
	m.glam = r
	m.glamWidth = wrap
	return nil
}

// recalcLayout sizes the transcript viewport to whatever the fixed chrome leaves.
func (m *model) recalcLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	chrome := headerHeight + inputHeight + statusHeight + m.paletteHeight() + 2
	if m.app.State.Loading {
		chrome++
	}
	m.vp.Width = max(m.width-2, 1)
	m.vp.Height = max(m.height-chrome, 3)
	if err := m.rebuildRenderer(m.vp.Width - len(agentLabel) - 2); err != nil {
		m.logger.Warn(context.Background(), "markdown renderer unavailable", logging.Field("error", err.Error()))
	}
}

// refresh recomposes the viewport and applies the requested scroll offset.
// SetYOffset clamps to the rendered content, so scroll never overshoots.
func (m *model) refresh() {
	m.recalcLayout()
	if content := m.renderTranscript(m.vp.Width); content != m.content {
		m.content = content
		m.vp.SetContent(content)
	}
	m.vp.SetYOffset(m.app.State.Chat.Scroll)
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(tick(), m.loadBranch())
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.refresh()
		return m, nil

	case tickMsg:
		m.app.Advance()
		if m.app.ShouldQuit {
			return m, tea.Quit
		}
		m.refresh()
		return m, tick()

	case branchMsg:
		m.branch = string(msg)
		return m, nil

	case tea.KeyMsg:
		st := m.app.State
		for _, ev := range translateKey(msg) {
			act, ok := m.keys.Map(ev, st.Palette.Visible, m.app.InputHasFocus(), st.Input == "")
			if !ok {
				continue
			}
			m.app.Dispatch(act)
			if m.app.ShouldQuit {
				return m, tea.Quit
			}
		}
		m.refresh()
		return m, nil
	}
	return m, nil
}

func (m *model) View() string {
	if !m.ready {
		return "Initializing…"
	}
	parts := []string{
		m.renderHeader(),
		m.styles.border.Render(m.vp.View()),
	}
	if m.app.State.Palette.Visible {
		parts = append(parts, m.renderPalette())
	}
	parts = append(parts, m.renderInput(), m.renderStatus())
	return strings.Join(parts, "\n")
}

// Run bootstraps the session and drives it until the user quits or ctx ends.
func Run(ctx context.Context, a *app.App, opts Options) error {
	// Prevent OSC background color queries from contaminating stdin by
	// explicitly setting color profile and background for lipgloss/termenv.
	lipgloss.SetColorProfile(termenv.TrueColor)
	lipgloss.SetHasDarkBackground(true)

	a.Bootstrap(ctx)
	defer a.Close()

	p := tea.NewProgram(newModel(a, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil && errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
