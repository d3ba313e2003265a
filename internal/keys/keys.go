package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings of the status view.
type KeyMap struct {
	// Sync runs a drain pass now.
	Sync key.Binding

	// Pull refreshes the task cache from the server.
	Pull key.Binding

	Quit key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Sync: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "sync now"),
		),
		Pull: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh tasks"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the help line.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Sync, k.Pull, k.Quit}
}

// FullHelp returns the bindings grouped for the expanded help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
