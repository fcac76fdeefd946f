package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/reading"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/session"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/stream"
)

type fakeController struct {
	mu     sync.Mutex
	calls  []string
	plates int
	path   string
	err    error
}

func (f *fakeController) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeController) ToggleConnection(context.Context) error { return f.record("connect") }
func (f *fakeController) StartReplay(_ context.Context, path string) error {
	f.path = path
	return f.record("replay")
}
func (f *fakeController) TogglePause(context.Context) error  { return f.record("pause") }
func (f *fakeController) CancelReplay(context.Context) error { return f.record("cancel") }
func (f *fakeController) SetPlates(n int) error {
	f.plates = n
	return f.record("plates")
}
func (f *fakeController) SourceName() string    { return "sim" }
func (f *fakeController) RecordingPath() string { return "" }

func newTestModel(t *testing.T) (Model, *stream.Store, *fakeController) {
	t.Helper()
	st := stream.New(stream.Params{Plates: 2, Capacity: 20})
	feed := NewFeed()
	st.Subscribe(feed.Observe)
	ctrl := &fakeController{}
	m := New(context.Background(), st, ctrl, feed, Options{Precision: 1, ReplayFile: "run.jsonl"})
	return m, st, ctrl
}

func keyMsg(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNew_Defaults(t *testing.T) {
	m, _, _ := newTestModel(t)
	if m.width != 80 || m.height != 24 {
		t.Errorf("default size = %dx%d", m.width, m.height)
	}
	if m.Snapshot().State != session.Idle || m.Snapshot().Params.Plates != 2 {
		t.Errorf("initial snapshot = %+v", m.Snapshot())
	}
	if m.source != "sim" {
		t.Errorf("source = %q", m.source)
	}
	if m.Init() == nil {
		t.Error("Init() should return a command")
	}
}

func TestUpdate_WindowSize(t *testing.T) {
	m, _, _ := newTestModel(t)
	updated, cmd := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	if cmd != nil {
		t.Error("WindowSizeMsg should return nil cmd")
	}
	um := updated.(Model)
	if um.width != 120 || um.layout.Chart.Width != 84 {
		t.Errorf("layout not recalculated: %+v", um.layout)
	}
}

func TestUpdate_StoreChange(t *testing.T) {
	m, st, _ := newTestModel(t)
	st.Apply(session.EventConnect)
	st.Ingest(reading.Reading{Timestamp: 1, Temperatures: []float64{95, 80}})
	st.Ingest(reading.Reading{Timestamp: 2, Temperatures: []float64{96, 81}})

	msg := waitForChange(context.Background(), m.feed)()
	changed, ok := msg.(storeChangedMsg)
	if !ok {
		t.Fatalf("msg = %T", msg)
	}
	updated, cmd := m.Update(changed)
	if cmd == nil {
		t.Error("store change should re-arm the listener")
	}
	um := updated.(Model)
	snap := um.Snapshot()
	if snap.State != session.Live || len(snap.Readings) != 2 {
		t.Errorf("snapshot not refreshed: state=%v readings=%d", snap.State, len(snap.Readings))
	}
	if um.events.Lines() != 1 {
		t.Errorf("event log lines = %d, want 1", um.events.Lines())
	}
}

func TestWaitForChange_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if msg := waitForChange(ctx, NewFeed())(); msg != nil {
		t.Errorf("cancelled wait = %T, want nil", msg)
	}
}

func TestHandleKey_Commands(t *testing.T) {
	tests := []struct {
		key  string
		call string
	}{
		{"c", "connect"},
		{"r", "replay"},
		{" ", "pause"},
		{"x", "cancel"},
		{"+", "plates"},
	}
	for _, tt := range tests {
		t.Run(tt.call, func(t *testing.T) {
			m, _, ctrl := newTestModel(t)
			_, cmd := m.Update(keyMsg(tt.key))
			if cmd == nil {
				t.Fatal("expected a command")
			}
			done, ok := cmd().(commandDoneMsg)
			if !ok || done.err != nil {
				t.Fatalf("cmd() = %+v", done)
			}
			if len(ctrl.calls) != 1 || ctrl.calls[0] != tt.call {
				t.Errorf("calls = %v, want [%s]", ctrl.calls, tt.call)
			}
		})
	}
}

func TestHandleKey_PlatesAndReplayArgs(t *testing.T) {
	m, _, ctrl := newTestModel(t)
	_, cmd := m.Update(keyMsg("-"))
	cmd()
	if ctrl.plates != 1 {
		t.Errorf("SetPlates(%d), want 1", ctrl.plates)
	}
	_, cmd = m.Update(keyMsg("r"))
	cmd()
	if ctrl.path != "run.jsonl" {
		t.Errorf("StartReplay path = %q", ctrl.path)
	}
}

func TestCommandError_ShowsStatus(t *testing.T) {
	m, _, ctrl := newTestModel(t)
	ctrl.err = errors.New("not allowed")
	_, cmd := m.Update(keyMsg("x"))
	updated, _ := m.Update(cmd())
	um := updated.(Model)
	if um.status != "cancel: not allowed" {
		t.Errorf("status = %q", um.status)
	}
	if um.events.Lines() != 1 {
		t.Errorf("error should be logged, lines = %d", um.events.Lines())
	}

	ctrl.err = nil
	_, cmd = um.Update(keyMsg("c"))
	updated, _ = um.Update(cmd())
	if updated.(Model).status != "" {
		t.Error("status should clear after a successful command")
	}
}

func TestHandleKey_Quit(t *testing.T) {
	m, _, _ := newTestModel(t)
	_, cmd := m.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestHandleKey_HelpAndFollow(t *testing.T) {
	m, _, _ := newTestModel(t)
	updated, _ := m.Update(keyMsg("?"))
	um := updated.(Model)
	if !um.help.ShowAll {
		t.Error("? should expand help")
	}
	updated, _ = um.Update(keyMsg("f"))
	if updated.(Model).events.Following() {
		t.Error("f should toggle follow off")
	}
}

func TestView_TooSmall(t *testing.T) {
	m, _, _ := newTestModel(t)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 40, Height: 10})
	if !strings.Contains(updated.(Model).View(), "Terminal too small") {
		t.Error("expected too-small message")
	}
}

func TestView_Idle(t *testing.T) {
	m, _, _ := newTestModel(t)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	view := updated.(Model).View()
	for _, want := range []string{"colmon", "IDLE", "Column", "Plate 1", "Plate 2", "0.0 °C", "no data", "Temperature"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
	if strings.Contains(view, "%") {
		t.Error("progress bar should only show during replay")
	}
}

func TestView_Replay(t *testing.T) {
	m, st, _ := newTestModel(t)
	st.Apply(session.EventStartReplay)
	for i := 0; i < 3; i++ {
		st.Ingest(reading.Reading{
			Timestamp:          float64(i * 15),
			Temperatures:       []float64{97.5, 78.6},
			Compositions:       []float64{0.01, 0.76},
			CompletionFraction: float64(i+1) * 25,
		})
	}
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	updated, _ = updated.(Model).Update(storeChangedMsg{})
	view := updated.(Model).View()
	for _, want := range []string{"REPLAY", "78.6 °C", "97.5 °C", "0.76", "75.0%", "elapsed: 00:30", "00:30"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}
