package ui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	SubmitMessage key.Binding
	ScrollUp      key.Binding
	ScrollDown    key.Binding
	Help          key.Binding
	Quit          key.Binding
}

var DefaultKeyMap = KeyMap{
	SubmitMessage: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
	ScrollUp:      key.NewBinding(key.WithKeys("pgup", "shift+up"), key.WithHelp("pgup", "scroll up")),
	ScrollDown:    key.NewBinding(key.WithKeys("pgdown", "shift+down"), key.WithHelp("pgdown", "scroll down")),
	Help:          key.NewBinding(key.WithKeys("f1"), key.WithHelp("f1", "commands")),
	Quit:          key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.SubmitMessage, k.ScrollUp, k.ScrollDown, k.Help, k.Quit}
}

func (k *KeyMap) updateKeyBindings(busy bool) {
	k.SubmitMessage.SetEnabled(!busy)
}
