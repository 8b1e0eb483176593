package main

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the player's key bindings. It implements help.KeyMap.
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Left    key.Binding
	Right   key.Binding
	FlingUp key.Binding
	FlingDn key.Binding
	ZoomIn  key.Binding
	ZoomOut key.Binding
	Tap     key.Binding
	Input   key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
		Left: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "scroll left"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "scroll right"),
		),
		FlingUp: key.NewBinding(
			key.WithKeys("pgup", "F"),
			key.WithHelp("pgup/F", "fling up"),
		),
		FlingDn: key.NewBinding(
			key.WithKeys("pgdown", "f"),
			key.WithHelp("pgdn/f", "fling down"),
		),
		ZoomIn: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "zoom in"),
		),
		ZoomOut: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "zoom out"),
		),
		Tap: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "tap center"),
		),
		Input: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "toggle input"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more keys"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.ZoomIn, k.ZoomOut, k.Tap, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.FlingUp, k.FlingDn, k.ZoomIn, k.ZoomOut},
		{k.Tap, k.Input, k.Help, k.Quit},
	}
}
