package keymap

import "strings"

// EventKind distinguishes key presses from auto-repeat and release.
type EventKind int

const (
	Press EventKind = iota
	Repeat
	Release
)

// Code identifies the physical key of an event.
type Code int

const (
	CodeOther Code = iota
	CodeRune
	CodeEnter
	CodeEsc
	CodeBackspace
	CodeTab
	CodeUp
	CodeDown
	CodePgUp
	CodePgDown
)

var codeNames = map[Code]string{
	CodeEnter:     "enter",
	CodeEsc:       "esc",
	CodeBackspace: "backspace",
	CodeTab:       "tab",
	CodeUp:        "up",
	CodeDown:      "down",
	CodePgUp:      "pgup",
	CodePgDown:    "pgdown",
}

// Modifier is a bit set of held modifier keys.
type Modifier uint8

const (
	ModShift Modifier = 1 << iota
	ModCtrl
	ModAlt
	ModSuper
)

// Has reports whether every bit of m2 is set in m.
func (m Modifier) Has(m2 Modifier) bool {
	return m&m2 == m2
}

// Event is a terminal key event, independent of the terminal library.
type Event struct {
	Kind EventKind
	Code Code
	Rune rune
	Mods Modifier
}

// Key builds a press event for a named key.
func Key(code Code, mods Modifier) Event {
	return Event{Kind: Press, Code: code, Mods: mods}
}

// Rune builds a press event for a printable character.
func Rune(r rune, mods Modifier) Event {
	return Event{Kind: Press, Code: CodeRune, Rune: r, Mods: mods}
}

// String renders the event the way bubbletea names keys ("ctrl+c", "alt+x",
// "pgup", "G"), so bubbles/key bindings can match it directly. Shift is
// folded into the rune for characters and spelled out for named keys.
func (e Event) String() string {
	var b strings.Builder
	if e.Mods.Has(ModSuper) {
		b.WriteString("super+")
	}
	if e.Mods.Has(ModAlt) {
		b.WriteString("alt+")
	}
	if e.Mods.Has(ModCtrl) {
		b.WriteString("ctrl+")
	}
	switch e.Code {
	case CodeRune:
		b.WriteRune(e.Rune)
	case CodeOther:
		b.WriteString("unknown")
	default:
		if e.Mods.Has(ModShift) {
			b.WriteString("shift+")
		}
		b.WriteString(codeNames[e.Code])
	}
	return b.String()
}
