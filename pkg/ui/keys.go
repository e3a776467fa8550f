// Package ui provides the Bubble Tea TUI for the arbitrage bot.
package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keybindings for the TUI.
type KeyMap struct {
	Quit       key.Binding
	Clear      key.Binding
	ClearError key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
}

// DefaultKeyMap returns the default keybindings, matching the dashboard's
// Update switch.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear opportunities"),
		),
		ClearError: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "clear errors"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
	}
}

// ShortHelp returns keybindings to be shown in the help line.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Clear, k.ScrollUp, k.ScrollDown, k.ClearError}
}
