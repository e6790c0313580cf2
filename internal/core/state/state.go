// Package state holds the client's mutable session model. Only the dispatcher
// in package app writes to it; renderers read it once per frame.
package state

import (
	"strings"
	"time"
)

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

// Message is one immutable transcript entry.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// NewMessage stamps a message with the current time.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, Timestamp: time.Now()}
}

// ChatState is the append-only transcript plus its scroll offset.
type ChatState struct {
	Messages         []Message
	Scroll           int
	StreamingContent string
}

// Append adds a message to the end of the transcript.
func (c *ChatState) Append(msg Message) {
	c.Messages = append(c.Messages, msg)
}

// TotalLines estimates how many display lines the transcript occupies.
// Every message counts at least one line; gap adds one separator line per message.
func (c *ChatState) TotalLines(gap bool) int {
	total := 0
	for _, msg := range c.Messages {
		total += max(lineCount(msg.Content), 1)
		if gap {
			total++
		}
	}
	return total
}

// LastByRole returns the newest message with the given role.
func (c *ChatState) LastByRole(role Role) (Message, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == role {
			return c.Messages[i], true
		}
	}
	return Message{}, false
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

// CommandEntry is one palette command. Name is its identity.
type CommandEntry struct {
	Name        string
	Description string
}

// PaletteState is the command palette overlay.
//
// Filtered holds indices into Commands in display order and is always
// recomputed from Query, never patched. Selected indexes into Filtered.
type PaletteState struct {
	Visible  bool
	Query    string
	Commands []CommandEntry
	Filtered []int
	Selected int
}

// SelectedCommand returns the highlighted entry, if any.
func (p *PaletteState) SelectedCommand() (CommandEntry, bool) {
	if p.Selected < 0 || p.Selected >= len(p.Filtered) {
		return CommandEntry{}, false
	}
	idx := p.Filtered[p.Selected]
	if idx < 0 || idx >= len(p.Commands) {
		return CommandEntry{}, false
	}
	return p.Commands[idx], true
}

// AppState is the root of the session model.
type AppState struct {
	Chat ChatState

	// Input is the line being edited; Cursor is a byte offset on a rune boundary.
	Input  string
	Cursor int

	// History is ordered oldest first. HistoryIndex == len(History) means a fresh draft.
	History      []string
	HistoryIndex int

	Palette      PaletteState
	Loading      bool
	InputFocused bool
}

// New returns an empty session.
func New() *AppState {
	return &AppState{}
}

// InputHasFocus reports whether keystrokes belong to the input line.
func (s *AppState) InputHasFocus() bool {
	return s.InputFocused || s.Input != ""
}
