package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Start      key.Binding
	Pause      key.Binding
	Stop       key.Binding
	Reset      key.Binding
	Work       key.Binding
	ShortBreak key.Binding
	LongBreak  key.Binding
	Quit       key.Binding
}

var keys = keyMap{
	Start: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "start"),
	),
	Pause: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "pause"),
	),
	Stop: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "stop"),
	),
	Reset: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reset"),
	),
	Work: key.NewBinding(
		key.WithKeys("1"),
		key.WithHelp("1", "work"),
	),
	ShortBreak: key.NewBinding(
		key.WithKeys("2"),
		key.WithHelp("2", "short break"),
	),
	LongBreak: key.NewBinding(
		key.WithKeys("3"),
		key.WithHelp("3", "long break"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k keyMap) running() []key.Binding {
	return []key.Binding{k.Pause, k.Stop, k.Reset, k.Quit}
}

func (k keyMap) idle() []key.Binding {
	return []key.Binding{k.Start, k.Reset, k.Work, k.ShortBreak, k.LongBreak, k.Quit}
}
