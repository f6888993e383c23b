package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the chat view key bindings.
type KeyMap struct {
	Send       key.Binding
	Newline    key.Binding // Handled by the composer.
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Quit       key.Binding
}

// DefaultKeyMap submits on Enter. Terminals cannot tell Shift+Enter from
// Enter, so Alt+Enter inserts a newline and Ctrl+S stands in for a send
// button.
var DefaultKeyMap = KeyMap{
	Send: key.NewBinding(
		key.WithKeys("enter", "ctrl+s"),
		key.WithHelp("enter/ctrl+s", "send"),
	),
	Newline: key.NewBinding(
		key.WithKeys("alt+enter"),
		key.WithHelp("alt+enter", "newline"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("pgup", "scroll up"),
	),
	ScrollDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("pgdn", "scroll down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("esc", "quit"),
	),
}
