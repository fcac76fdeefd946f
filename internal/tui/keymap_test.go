package tui

import (
	"testing"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/session"
)

func TestDefaultKeyMap_Matches(t *testing.T) {
	k := DefaultKeyMap()
	tests := []struct {
		msg     tea.KeyMsg
		binding key.Binding
	}{
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")}, k.Connect},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")}, k.Replay},
		{tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}, k.Pause},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")}, k.Cancel},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("+")}, k.MorePlates},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("-")}, k.LessPlates},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}, k.Quit},
		{tea.KeyMsg{Type: tea.KeyCtrlC}, k.Quit},
	}
	for _, tt := range tests {
		if !key.Matches(tt.msg, tt.binding) {
			t.Errorf("%q does not match %v", tt.msg.String(), tt.binding.Keys())
		}
	}
}

func TestKeyMap_ForState(t *testing.T) {
	tests := []struct {
		state    session.State
		canPause bool
		enabled  map[string]bool
	}{
		{session.Idle, true, map[string]bool{"connect": true, "replay": true, "pause": false, "cancel": false, "plates": true}},
		{session.Live, true, map[string]bool{"connect": true, "replay": false, "pause": false, "cancel": false, "plates": false}},
		{session.Replay, true, map[string]bool{"connect": false, "replay": false, "pause": true, "cancel": true, "plates": false}},
		{session.ReplayPaused, false, map[string]bool{"connect": false, "replay": false, "pause": false, "cancel": true, "plates": false}},
	}
	for _, tt := range tests {
		t.Run(tt.state.Label(), func(t *testing.T) {
			k := DefaultKeyMap().forState(tt.state, tt.canPause)
			got := map[string]bool{
				"connect": k.Connect.Enabled(),
				"replay":  k.Replay.Enabled(),
				"pause":   k.Pause.Enabled(),
				"cancel":  k.Cancel.Enabled(),
				"plates":  k.MorePlates.Enabled() && k.LessPlates.Enabled(),
			}
			for name, want := range tt.enabled {
				if got[name] != want {
					t.Errorf("%s enabled = %v, want %v", name, got[name], want)
				}
			}
		})
	}
}

func TestKeyMap_ForStateHelpText(t *testing.T) {
	if h := DefaultKeyMap().forState(session.Live, true).Connect.Help(); h.Desc != "disconnect" {
		t.Errorf("live connect help = %q", h.Desc)
	}
	if h := DefaultKeyMap().forState(session.ReplayPaused, true).Pause.Help(); h.Desc != "resume" {
		t.Errorf("paused pause help = %q", h.Desc)
	}
	k := DefaultKeyMap()
	_ = k.forState(session.Live, true)
	if h := k.Connect.Help(); h.Desc != "connect" || !k.Replay.Enabled() {
		t.Error("forState must not modify its receiver")
	}
}

func TestKeyMap_HelpGroups(t *testing.T) {
	k := DefaultKeyMap()
	if len(k.ShortHelp()) == 0 {
		t.Error("ShortHelp is empty")
	}
	n := 0
	for _, col := range k.FullHelp() {
		n += len(col)
	}
	if n != 9 {
		t.Errorf("FullHelp lists %d bindings, want 9", n)
	}
}
