package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/asynkron/openx/internal/core/keymap"
)

// translateKey converts a bubbletea key message into terminal-neutral
// events. A paste or a burst of runes yields one event per rune.
func translateKey(msg tea.KeyMsg) []keymap.Event {
	var mods keymap.Modifier
	if msg.Alt {
		mods |= keymap.ModAlt
	}

	switch msg.Type {
	case tea.KeyRunes:
		events := make([]keymap.Event, 0, len(msg.Runes))
		for _, r := range msg.Runes {
			if msg.Paste && (r == '\n' || r == '\r' || r == '\t') {
				r = ' '
			}
			events = append(events, keymap.Rune(r, mods))
		}
		return events
	case tea.KeySpace:
		return []keymap.Event{keymap.Rune(' ', mods)}
	case tea.KeyEnter:
		return []keymap.Event{keymap.Key(keymap.CodeEnter, mods)}
	case tea.KeyEsc:
		return []keymap.Event{keymap.Key(keymap.CodeEsc, mods)}
	case tea.KeyBackspace, tea.KeyCtrlH:
		return []keymap.Event{keymap.Key(keymap.CodeBackspace, mods)}
	case tea.KeyTab:
		return []keymap.Event{keymap.Key(keymap.CodeTab, mods)}
	case tea.KeyShiftTab:
		return []keymap.Event{keymap.Key(keymap.CodeTab, mods|keymap.ModShift)}
	case tea.KeyUp:
		return []keymap.Event{keymap.Key(keymap.CodeUp, mods)}
	case tea.KeyDown:
		return []keymap.Event{keymap.Key(keymap.CodeDown, mods)}
	case tea.KeyPgUp:
		return []keymap.Event{keymap.Key(keymap.CodePgUp, mods)}
	case tea.KeyPgDown:
		return []keymap.Event{keymap.Key(keymap.CodePgDown, mods)}
	case tea.KeyCtrlUp:
		return []keymap.Event{keymap.Key(keymap.CodeUp, mods|keymap.ModCtrl)}
	case tea.KeyCtrlDown:
		return []keymap.Event{keymap.Key(keymap.CodeDown, mods|keymap.ModCtrl)}
	}

	if msg.Type >= tea.KeyCtrlA && msg.Type <= tea.KeyCtrlZ {
		r := 'a' + rune(msg.Type-tea.KeyCtrlA)
		return []keymap.Event{keymap.Rune(r, mods|keymap.ModCtrl)}
	}
	return []keymap.Event{keymap.Key(keymap.CodeOther, mods)}
}
