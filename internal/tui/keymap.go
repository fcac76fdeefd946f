package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/session"
)

// KeyMap is the dashboard's key bindings. It implements help.KeyMap.
type KeyMap struct {
	Connect    key.Binding
	Replay     key.Binding
	Pause      key.Binding
	Cancel     key.Binding
	MorePlates key.Binding
	LessPlates key.Binding
	Follow     key.Binding
	Help       key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Connect:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "connect")),
		Replay:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "replay")),
		Pause:      key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pause")),
		Cancel:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "cancel")),
		MorePlates: key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "plate")),
		LessPlates: key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "plate")),
		Follow:     key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "follow log")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Connect, k.Replay, k.Pause, k.Cancel, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Connect, k.Replay, k.Pause, k.Cancel},
		{k.MorePlates, k.LessPlates, k.Follow},
		{k.Help, k.Quit},
	}
}

// forState enables only the bindings that do something in the given
// session. Disabled bindings drop out of the help view.
func (k KeyMap) forState(st session.State, canPause bool) KeyMap {
	idle := st == session.Idle
	replay := st.IsReplay()

	k.Connect.SetEnabled(idle || st == session.Live)
	if st == session.Live {
		k.Connect.SetHelp("c", "disconnect")
	}
	k.Replay.SetEnabled(idle)
	k.Pause.SetEnabled(replay && canPause)
	if st == session.ReplayPaused {
		k.Pause.SetHelp("space", "resume")
	}
	k.Cancel.SetEnabled(replay)
	k.MorePlates.SetEnabled(idle)
	k.LessPlates.SetEnabled(idle)
	return k
}
