package dashboard

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Flashlight key.Binding
	Help       key.Binding
	Quit       key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Flashlight, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Flashlight},
		{k.Help, k.Quit},
	}
}

func newKeyMap(canWrite bool) keyMap {
	k := keyMap{
		Flashlight: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "cycle flashlight"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
	k.Flashlight.SetEnabled(canWrite)
	return k
}
