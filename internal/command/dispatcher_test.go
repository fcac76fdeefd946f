package command

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/reading"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/session"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/source"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/store"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/stream"
)

type fixture struct {
	d     *Dispatcher
	store *stream.Store
	pump  *source.Pump
	dir   string
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	dir := t.TempDir()
	pump := source.NewPump(zerolog.Nop())
	st := stream.New(stream.Params{Plates: 3, Capacity: 50}, stream.WithCanceller(pump))
	cfg := Config{
		Live: func(plates int) (source.Source, error) {
			sim := source.NewSimulator(source.DefaultSimulatorConfig(10, 100, 101))
			return source.NewLive(sim, source.LiveConfig{UnitID: 10, BottomAddress: 100, TopAddress: 101, Plates: plates}), nil
		},
		PollInterval:   time.Millisecond,
		ReplayInterval: time.Millisecond,
		RecordDir:      dir,
		Retention:      5,
		Logger:         zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	d := New(st, pump, cfg)
	t.Cleanup(func() { _ = d.Shutdown(context.Background()) })
	return &fixture{d: d, store: st, pump: pump, dir: dir}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func writeRecording(t *testing.T, dir string, n int) string {
	t.Helper()
	rec, err := store.NewJSONL(dir)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		if err := rec.Append(reading.Reading{Timestamp: float64(i), Temperatures: []float64{90, 80}, Compositions: []float64{0.05, 0.5}}); err != nil {
			t.Fatal(err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
	return rec.Path()
}

func TestConnectDisconnect(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if err := f.d.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	if f.store.State() != session.Live {
		t.Fatalf("State = %v, want Live", f.store.State())
	}
	waitFor(t, "readings", func() bool { return f.store.Len() >= 3 })

	snap := f.store.Snapshot()
	if got := len(snap.Latest.Temperatures); got != 3 {
		t.Errorf("plates in reading = %d, want 3", got)
	}
	recPath := f.d.RecordingPath()
	if recPath == "" {
		t.Fatal("live session not recorded")
	}
	if err := f.d.Connect(ctx); !errors.Is(err, ErrIllegal) {
		t.Errorf("second Connect err = %v, want ErrIllegal", err)
	}

	if err := f.d.Disconnect(ctx); err != nil {
		t.Fatal(err)
	}
	if f.store.State() != session.Idle || f.store.Len() != 0 {
		t.Errorf("after Disconnect state=%v len=%d", f.store.State(), f.store.Len())
	}
	if f.pump.Running() || f.d.RecordingPath() != "" {
		t.Error("pump or recording still active after Disconnect")
	}

	readings, err := store.LoadFile(recPath, zerolog.Nop())
	if err != nil || len(readings) < 3 {
		t.Errorf("recording has %d readings, err %v", len(readings), err)
	}
}

func TestConnect_LiveFactoryError(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.Live = func(int) (source.Source, error) { return nil, source.ErrNoTransport }
	})
	err := f.d.Connect(context.Background())
	if !errors.Is(err, source.ErrNoTransport) {
		t.Errorf("err = %v, want ErrNoTransport", err)
	}
	if f.store.State() != session.Idle {
		t.Errorf("State = %v, want Idle", f.store.State())
	}
}

func TestDisconnect_WhenIdle(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.d.Disconnect(context.Background()); !errors.Is(err, ErrIllegal) {
		t.Errorf("err = %v, want ErrIllegal", err)
	}
}

func TestReplay_RunsToCompletion(t *testing.T) {
	f := newFixture(t, nil)
	path := writeRecording(t, t.TempDir(), 4)

	if err := f.d.StartReplay(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "completion", func() bool { return f.store.State() == session.ReplayPaused })

	snap := f.store.Snapshot()
	if snap.Progress != 100 || len(snap.Readings) != 4 {
		t.Errorf("progress=%v len=%d, want 100 and 4", snap.Progress, len(snap.Readings))
	}
	if err := f.d.TogglePause(context.Background()); !errors.Is(err, ErrIllegal) {
		t.Errorf("resume after completion err = %v, want ErrIllegal", err)
	}
	if err := f.d.CancelReplay(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.store.State() != session.Idle || f.store.Len() != 0 {
		t.Errorf("after cancel state=%v len=%d", f.store.State(), f.store.Len())
	}
}

func TestReplay_PauseResumeCancel(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.ReplayInterval = 20 * time.Millisecond })
	path := writeRecording(t, t.TempDir(), 200)
	ctx := context.Background()

	if err := f.d.StartReplay(ctx, path); err != nil {
		t.Fatal(err)
	}
	if err := f.d.Connect(ctx); !errors.Is(err, ErrIllegal) {
		t.Errorf("Connect during replay err = %v, want ErrIllegal", err)
	}

	if err := f.d.TogglePause(ctx); err != nil {
		t.Fatal(err)
	}
	if f.store.State() != session.ReplayPaused || !f.pump.Paused() {
		t.Fatalf("state=%v paused=%v", f.store.State(), f.pump.Paused())
	}
	if err := f.d.TogglePause(ctx); err != nil {
		t.Fatal(err)
	}
	if f.store.State() != session.Replay {
		t.Fatalf("State = %v, want Replay", f.store.State())
	}

	if err := f.d.CancelReplay(ctx); err != nil {
		t.Fatal(err)
	}
	if f.store.State() != session.Idle || f.pump.Running() {
		t.Errorf("after cancel state=%v running=%v", f.store.State(), f.pump.Running())
	}
	if err := f.d.CancelReplay(ctx); !errors.Is(err, ErrIllegal) {
		t.Errorf("second cancel err = %v, want ErrIllegal", err)
	}
}

func TestStartReplay_Errors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if err := f.d.StartReplay(ctx, filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("missing file accepted")
	}
	if err := f.d.StartReplay(ctx, ""); !errors.Is(err, store.ErrEmptyRecording) {
		t.Errorf("no recordings err = %v, want ErrEmptyRecording", err)
	}
	if f.store.State() != session.Idle {
		t.Errorf("State = %v, want Idle", f.store.State())
	}
}

func TestStartReplay_NewestRecording(t *testing.T) {
	f := newFixture(t, nil)
	writeRecording(t, f.dir, 3)

	if err := f.d.StartReplay(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "completion", func() bool { return f.store.State() == session.ReplayPaused })
	if f.store.Len() != 3 {
		t.Errorf("Len = %d, want 3", f.store.Len())
	}
}

func TestSourceFailure_FailsStore(t *testing.T) {
	busErr := errors.New("serial: device unplugged")
	f := newFixture(t, func(c *Config) {
		c.Live = func(int) (source.Source, error) { return failingSource{err: busErr}, nil }
	})
	if err := f.d.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "failure", func() bool { return f.store.Snapshot().LastErr != nil })

	if f.store.State() != session.Idle {
		t.Errorf("State = %v, want Idle", f.store.State())
	}
	if !errors.Is(f.store.Snapshot().LastErr, busErr) {
		t.Errorf("LastErr = %v", f.store.Snapshot().LastErr)
	}
	waitFor(t, "recording closed", func() bool { return f.d.RecordingPath() == "" })
}

func TestSetPlates(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.d.SetPlates(5); err != nil {
		t.Fatal(err)
	}
	if got := f.store.Snapshot().Params.Plates; got != 5 {
		t.Errorf("Plates = %d, want 5", got)
	}
	if err := f.d.SetPlates(9); err == nil {
		t.Error("SetPlates(9) accepted")
	}

	if err := f.d.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.d.SetPlates(2); !errors.Is(err, ErrIllegal) {
		t.Errorf("SetPlates while Live err = %v, want ErrIllegal", err)
	}
}

func TestRecording_Disabled(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.RecordDir = "" })
	if err := f.d.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.d.RecordingPath() != "" {
		t.Error("recording opened while disabled")
	}
	entries, _ := os.ReadDir(f.dir)
	if len(entries) != 0 {
		t.Errorf("files written: %d", len(entries))
	}
}

type failingSource struct{ err error }

func (s failingSource) Next(context.Context) (reading.Reading, error) { return reading.Reading{}, s.err }
func (s failingSource) Name() string                                  { return "failing" }

// flakySource delivers one reading and then fails.
type flakySource struct {
	err   error
	pulls int
}

func (s *flakySource) Next(context.Context) (reading.Reading, error) {
	s.pulls++
	if s.pulls > 1 {
		return reading.Reading{}, s.err
	}
	return reading.Reading{Timestamp: 1, Temperatures: []float64{90, 85, 80}}, nil
}
func (s *flakySource) Name() string { return "flaky" }

// delayedFailure connects to a source that fails on its second pull and
// holds the failure report until release is called. handled is closed once
// the dispatcher has seen the report.
func delayedFailure(t *testing.T) (f *fixture, release func(), handled <-chan struct{}) {
	t.Helper()
	busErr := errors.New("bus error")
	connects := 0
	f = newFixture(t, func(c *Config) {
		c.PollInterval = 20 * time.Millisecond
		live := c.Live
		c.Live = func(plates int) (source.Source, error) {
			connects++
			if connects == 1 {
				return &flakySource{err: busErr}, nil
			}
			return live(plates)
		}
	})

	gate := make(chan struct{})
	reported := make(chan struct{})
	done := make(chan struct{})
	var once sync.Once
	onError := f.pump.OnError
	f.pump.OnError = func(run source.RunID, err error) {
		once.Do(func() {
			close(reported)
			<-gate
			onError(run, err)
			close(done)
		})
	}

	if err := f.d.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case <-reported:
	case <-time.After(2 * time.Second):
		t.Fatal("source failure not reported")
	}
	if f.pump.Running() {
		t.Fatal("pump still running after its source failed")
	}
	return f, func() { close(gate) }, done
}

func TestSourceFailure_LateReportAfterReconnect(t *testing.T) {
	f, release, handled := delayedFailure(t)

	if err := f.d.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if err := f.d.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	release()
	<-handled

	snap := f.store.Snapshot()
	if snap.State != session.Live || snap.LastErr != nil {
		t.Errorf("after late report: state=%v lastErr=%v, want LIVE and no error", snap.State, snap.LastErr)
	}
	if !f.pump.Running() {
		t.Error("new live session's pump stopped")
	}
	if f.d.RecordingPath() == "" {
		t.Error("new session's recording was closed")
	}
	if err := f.d.Disconnect(context.Background()); err != nil {
		t.Errorf("Disconnect after late report: %v", err)
	}
}

func TestSourceFailure_LateReportAfterDisconnect(t *testing.T) {
	f, release, handled := delayedFailure(t)

	if err := f.d.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	var changes []stream.Change
	unsub := f.store.Subscribe(func(ch stream.Change) { changes = append(changes, ch) })
	defer unsub()

	release()
	<-handled

	if len(changes) != 0 {
		t.Errorf("late report produced changes: %+v", changes)
	}
	if err := f.store.Snapshot().LastErr; err != nil {
		t.Errorf("LastErr = %v, want nil", err)
	}
}
