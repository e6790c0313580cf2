// Package keymap turns key events into actions.
//
// The mapping is pure: it looks only at the event and three context flags
// (palette open, input focused, input empty) and never at earlier events.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/asynkron/openx/internal/core/action"
)

// KeyMap declares every binding the client recognizes. Help text doubles as
// the status bar legend.
type KeyMap struct {
	Cancel    key.Binding
	Clear     key.Binding
	Copy      key.Binding
	Escape    key.Binding
	Submit    key.Binding
	Backspace key.Binding
	Up        key.Binding
	Down      key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	Scroll    key.Binding
	Select    key.Binding
	Quit      key.Binding
	Top       key.Binding
	Bottom    key.Binding
	Palette   key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Cancel:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("Ctrl+C", "cancel")),
		Clear:     key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("Ctrl+L", "clear")),
		Copy:      key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("Ctrl+Y", "copy reply")),
		Escape:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("Esc", "unfocus")),
		Submit:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("Enter", "send")),
		Backspace: key.NewBinding(key.WithKeys("backspace")),
		Up:        key.NewBinding(key.WithKeys("up")),
		Down:      key.NewBinding(key.WithKeys("down")),
		PageUp:    key.NewBinding(key.WithKeys("pgup")),
		PageDown:  key.NewBinding(key.WithKeys("pgdown")),
		Scroll:    key.NewBinding(key.WithKeys("pgup", "pgdown"), key.WithHelp("PgUp/Dn", "scroll")),
		Select:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("Tab", "select")),
		Quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		Top:       key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "top")),
		Bottom:    key.NewBinding(key.WithKeys("G"), key.WithHelp("G", "bottom")),
		Palette:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "commands")),
	}
}

// FocusedHelp lists the legend shown while the user is typing.
func (k KeyMap) FocusedHelp() []key.Binding {
	return []key.Binding{k.Escape, k.Submit, k.Cancel}
}

// IdleHelp lists the legend shown while the input is unfocused.
func (k KeyMap) IdleHelp() []key.Binding {
	return []key.Binding{k.Palette, k.Scroll, k.Quit}
}

// PaletteHelp lists the legend shown while the palette is open.
func (k KeyMap) PaletteHelp() []key.Binding {
	return []key.Binding{k.Select, k.Submit, k.Escape}
}

var defaultKeyMap = DefaultKeyMap()

// Map resolves ev with the default bindings.
func Map(ev Event, paletteVisible, inputHasFocus, inputEmpty bool) (action.Action, bool) {
	return defaultKeyMap.Map(ev, paletteVisible, inputHasFocus, inputEmpty)
}

// Map resolves ev to an action. The second return is false when the event
// should be ignored.
func (k KeyMap) Map(ev Event, paletteVisible, inputHasFocus, inputEmpty bool) (action.Action, bool) {
	if ev.Kind == Release {
		return action.Action{}, false
	}

	// Control chords win over everything and never produce text.
	if ev.Mods.Has(ModCtrl) {
		switch {
		case key.Matches(ev, k.Cancel):
			return action.New(action.CancelStreaming), true
		case key.Matches(ev, k.Clear):
			return action.New(action.ClearInput), true
		case key.Matches(ev, k.Copy):
			return action.New(action.CopyLastReply), true
		}
		return action.Action{}, false
	}

	switch {
	case key.Matches(ev, k.Escape):
		switch {
		case paletteVisible:
			return action.New(action.PaletteHide), true
		case inputHasFocus:
			return action.New(action.UnfocusInput), true
		default:
			return action.New(action.Quit), true
		}
	case key.Matches(ev, k.Submit):
		return action.New(action.Submit), true
	case key.Matches(ev, k.Backspace):
		return action.New(action.Backspace), true
	case key.Matches(ev, k.Up, k.PageUp):
		return vertical(paletteVisible, inputEmpty, action.PaletteUp, action.ChatScrollPageUp, action.HistoryUp), true
	case key.Matches(ev, k.Down, k.PageDown):
		return vertical(paletteVisible, inputEmpty, action.PaletteDown, action.ChatScrollPageDown, action.HistoryDown), true
	case paletteVisible && key.Matches(ev, k.Select):
		return action.New(action.PaletteSelect), true
	}

	if !paletteVisible && !inputHasFocus {
		switch {
		case key.Matches(ev, k.Quit):
			return action.New(action.Quit), true
		case key.Matches(ev, k.Top):
			return action.New(action.ChatScrollTop), true
		case key.Matches(ev, k.Bottom):
			return action.New(action.ChatScrollBottom), true
		case key.Matches(ev, k.Palette):
			return action.New(action.PaletteShow), true
		}
	}

	if ev.Code == CodeRune && !ev.Mods.Has(ModSuper) {
		return action.Insert(ev.Rune), true
	}
	return action.Action{}, false
}

// vertical routes the same physical key to the palette, the transcript or
// the input history depending on what the user is doing.
func vertical(paletteVisible, inputEmpty bool, palette, scroll, history action.Kind) action.Action {
	switch {
	case paletteVisible:
		return action.New(palette)
	case inputEmpty:
		return action.New(scroll)
	default:
		return action.New(history)
	}
}
