package tui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	Ask     key.Binding
	Dismiss key.Binding
	Act     key.Binding
	Quit    key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Ask:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "ask")),
		Dismiss: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "dismiss")),
		Act:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Ask, k.Dismiss, k.Act, k.Quit}
}
