package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"

	"github.com/asynkron/openx/internal/core/state"
	"github.com/asynkron/openx/internal/workspace"
)

const (
	headerHeight  = 4 // two content lines plus border
	inputHeight   = 3 // one content line plus border
	statusHeight  = 1
	paletteRows   = 8
	paletteNameW  = 18
	messageGap    = 1
	agentLabel    = "OpenX"
	userLabel     = "You"
	emptyChatHint = "Ask anything.  /  command palette · Enter to send"
	inputHint     = "Type a message, or / for commands"
)

var spinnerFrames = spinner.MiniDot.Frames

func (m *model) spinnerFrame() string {
	return spinnerFrames[m.app.Tick%len(spinnerFrames)]
}

func (m *model) renderHeader() string {
	inner := max(m.width-4, 10)

	title := "⚡ " + m.styles.title.Render("OpenX ") + m.styles.version.Render("(v"+m.version+")")
	hint := m.styles.muted.Render("/help")
	pad := max(inner-lipgloss.Width(title)-lipgloss.Width(hint), 1)
	line1 := title + strings.Repeat(" ", pad) + hint

	label := "directory: "
	dir := "—"
	if m.ws != nil {
		dir = m.ws.ShortPath(inner - runewidth.StringWidth(label))
	}
	line2 := m.styles.dim.Render(label) + m.styles.agentLabel.Render(dir)

	return m.styles.header.Width(inner + 2).Render(line1 + "\n" + line2)
}

// renderTranscript composes the transcript at width. Message blocks come
// from the cache; only the loading line is rebuilt every frame.
func (m *model) renderTranscript(width int) string {
	chat := &m.app.State.Chat
	m.syncRendered(width)
	var out []string

	for i, block := range m.rendered {
		if i > 0 {
			for g := 0; g < messageGap; g++ {
				out = append(out, "")
			}
		}
		out = append(out, block)
	}

	if m.app.State.Loading {
		if len(out) > 0 {
			out = append(out, "")
		}
		if chat.StreamingContent != "" {
			out = append(out, m.styles.agentLabel.Render(agentLabel+" ")+m.styles.body.Render(chat.StreamingContent))
		} else {
			out = append(out, m.styles.agentLabel.Render(agentLabel+" ")+
				m.styles.spinner.Render(" "+m.spinnerFrame()+" ")+
				m.styles.body.Render("Thinking…"))
		}
	}

	if len(out) == 0 {
		return m.styles.body.Render(emptyChatHint)
	}
	return strings.Join(out, "\n")
}

// syncRendered drops the cache on a width change and renders messages
// appended since the last frame.
func (m *model) syncRendered(width int) {
	msgs := m.app.State.Chat.Messages
	if width != m.cacheWidth || len(m.rendered) > len(msgs) {
		m.rendered = m.rendered[:0]
		m.cacheWidth = width
	}
	for i := len(m.rendered); i < len(msgs); i++ {
		m.rendered = append(m.rendered, m.renderMessage(msgs[i], width))
		m.renders++
	}
}

func (m *model) renderMessage(msg state.Message, width int) string {
	switch msg.Role {
	case state.RoleUser:
		return indentBlock(m.styles.userLabel.Render(userLabel+" "), len(userLabel)+1,
			m.styles.body.Render(wordwrap.String(msg.Content, max(width-len(userLabel)-1, 10))))
	case state.RoleAgent:
		return indentBlock(m.styles.agentLabel.Render(agentLabel+" "), len(agentLabel)+1,
			m.renderMarkdown(msg.Content))
	default:
		return m.styles.system.Render(wordwrap.String(msg.Content, max(width, 10)))
	}
}

// indentBlock prefixes the first line with label and indents the rest so
// continuation lines align with the text.
func indentBlock(label string, labelWidth int, body string) string {
	lines := strings.Split(body, "\n")
	pad := strings.Repeat(" ", labelWidth)
	for i := range lines {
		if i == 0 {
			lines[i] = label + lines[i]
		} else {
			lines[i] = pad + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

func (m *model) renderMarkdown(text string) string {
	if m.glam == nil {
		return m.styles.body.Render(text)
	}
	rendered, err := m.glam.Render(text)
	if err != nil {
		return m.styles.body.Render(text)
	}
	return strings.Trim(rendered, "\n")
}

func (m *model) renderInput() string {
	inner := max(m.width-2, 4)
	s := m.app.State
	prompt := m.styles.prompt.Render("› ")
	avail := max(inner-runewidth.StringWidth("› ")-1, 1)

	if s.Input == "" && !s.InputFocused {
		return m.styles.input.Width(inner).Render(prompt + m.styles.placeholder.Render(inputHint))
	}

	cursor := min(max(s.Cursor, 0), len(s.Input))
	before, after := s.Input[:cursor], s.Input[cursor:]
	before = workspace.TruncateLeft(before, avail)

	under := " "
	rest := ""
	if after != "" {
		r, size := firstRune(after)
		under, rest = r, after[size:]
	}
	restWidth := max(avail-runewidth.StringWidth(before)-runewidth.StringWidth(under), 0)
	rest = runewidth.Truncate(rest, restWidth, "…")

	line := prompt + m.styles.body.Render(before) + m.styles.cursor.Render(under) + m.styles.body.Render(rest)
	block := m.styles.input.Width(inner).Render(line)
	if s.Loading {
		bar := renderThinkingBar(inner, m.app.Tick)
		block = lipgloss.JoinVertical(lipgloss.Left, bar, block)
	}
	return block
}

func firstRune(s string) (string, int) {
	for i := range s {
		if i > 0 {
			return s[:i], i
		}
	}
	return s, len(s)
}

func (m *model) paletteHeight() int {
	p := &m.app.State.Palette
	if !p.Visible {
		return 0
	}
	return max(min(len(p.Filtered), paletteRows), 1) + 2
}

func (m *model) renderPalette() string {
	p := &m.app.State.Palette
	inner := max(m.width-2, 10)
	if len(p.Filtered) == 0 {
		return m.styles.paletteBox.Width(inner).Render(m.styles.muted.Render("No matching commands"))
	}

	start := 0
	if p.Selected >= paletteRows {
		start = p.Selected - paletteRows + 1
	}
	end := min(start+paletteRows, len(p.Filtered))

	rows := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		cmd := p.Commands[p.Filtered[i]]
		name := runewidth.FillRight(runewidth.Truncate(cmd.Name, paletteNameW, "…"), paletteNameW)
		desc := runewidth.Truncate(cmd.Description, max(inner-paletteNameW-3, 1), "…")
		if i == p.Selected {
			rows = append(rows, m.styles.paletteSel.Width(inner).Render(" "+name+" "+desc))
			continue
		}
		rows = append(rows, " "+m.styles.paletteName.Render(name)+" "+m.styles.dim.Render(desc))
	}
	return m.styles.paletteBox.Width(inner).Render(strings.Join(rows, "\n"))
}

func (m *model) renderStatus() string {
	var left strings.Builder
	if m.app.Connected {
		left.WriteString(m.styles.connected.Render(" ● "))
	} else {
		left.WriteString(m.styles.offline.Render(" ● "))
	}
	if m.branch != "" && m.branch != workspace.NoGit {
		left.WriteString(m.styles.branch.Render(" " + m.branch + " "))
		left.WriteString(m.styles.muted.Render("│"))
	}
	if m.app.State.Loading {
		left.WriteString(m.styles.spinner.Render(fmt.Sprintf(" %s ", m.spinnerFrame())))
		left.WriteString(m.styles.dim.Render("Thinking… "))
	} else {
		left.WriteString(m.styles.muted.Render(" Ready "))
	}

	bindings := m.keys.IdleHelp()
	switch {
	case m.app.State.Palette.Visible:
		bindings = m.keys.PaletteHelp()
	case m.app.InputHasFocus():
		bindings = m.keys.FocusedHelp()
	}
	right := m.help.ShortHelpView(bindings)

	pad := max(m.width-lipgloss.Width(left.String())-lipgloss.Width(right), 0)
	return m.styles.status.Render(left.String() + strings.Repeat(" ", pad) + right)
}
