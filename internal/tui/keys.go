package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the bug tracker TUI. Which bindings
// apply depends on the focused region.
type KeyMap struct {
	// Form and edit regions.
	Submit     key.Binding
	NextField  key.Binding
	PrevField  key.Binding
	StatusNext key.Binding
	StatusPrev key.Binding
	Cancel     key.Binding

	// List region.
	Up     key.Binding
	Down   key.Binding
	Edit   key.Binding
	Delete key.Binding
	NewBug key.Binding
	Reload key.Binding
	Quit   key.Binding

	ForceQuit key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "submit"),
	),
	NextField: key.NewBinding(
		key.WithKeys("tab", "down"),
		key.WithHelp("tab", "next field"),
	),
	PrevField: key.NewBinding(
		key.WithKeys("shift+tab", "up"),
		key.WithHelp("shift+tab", "prev field"),
	),
	StatusNext: key.NewBinding(
		key.WithKeys("right"),
		key.WithHelp("→", "next status"),
	),
	StatusPrev: key.NewBinding(
		key.WithKeys("left"),
		key.WithHelp("←", "prev status"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	Edit: key.NewBinding(
		key.WithKeys("e", "enter"),
		key.WithHelp("e", "edit"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "delete"),
	),
	NewBug: key.NewBinding(
		key.WithKeys("n", "tab"),
		key.WithHelp("n", "report bug"),
	),
	Reload: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reload"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "quit"),
	),
	ForceQuit: key.NewBinding(
		key.WithKeys("ctrl+c"),
	),
}
