// Package action defines the closed set of intents the dispatcher consumes.
package action

import "fmt"

// Kind identifies a user or system intent.
type Kind string

const (
	Quit            Kind = "quit"             // End the session
	UnfocusInput    Kind = "unfocus_input"    // Leave the input line without clearing it
	InsertChar      Kind = "insert_char"      // Insert Action.Rune at the cursor
	Backspace       Kind = "backspace"        // Delete the rune before the cursor
	ClearInput      Kind = "clear_input"      // Empty the input line and close the palette
	Submit          Kind = "submit"           // Send the input line (or pick the palette entry)
	CancelStreaming Kind = "cancel_streaming" // Stop waiting for the in-flight reply
	CopyLastReply   Kind = "copy_last_reply"  // Copy the newest agent reply to the clipboard

	ChatScrollPageUp   Kind = "chat_scroll_page_up"
	ChatScrollPageDown Kind = "chat_scroll_page_down"
	ChatScrollTop      Kind = "chat_scroll_top"
	ChatScrollBottom   Kind = "chat_scroll_bottom"

	HistoryUp   Kind = "history_up"
	HistoryDown Kind = "history_down"

	PaletteShow   Kind = "palette_show"
	PaletteHide   Kind = "palette_hide"
	PaletteUp     Kind = "palette_up"
	PaletteDown   Kind = "palette_down"
	PaletteSelect Kind = "palette_select"
)

// Action is a single intent. Rune is only meaningful for InsertChar.
type Action struct {
	Kind Kind
	Rune rune
}

// New returns an action without a payload.
func New(kind Kind) Action {
	return Action{Kind: kind}
}

// Insert returns an InsertChar action carrying r.
func Insert(r rune) Action {
	return Action{Kind: InsertChar, Rune: r}
}

func (a Action) String() string {
	if a.Kind == InsertChar {
		return fmt.Sprintf("%s(%q)", a.Kind, a.Rune)
	}
	return string(a.Kind)
}
