// Package command turns user requests (connect, replay, pause, cancel) into
// coordinated calls on the reading pump and the stream store.
package command

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/config"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/reading"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/session"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/source"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/store"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/stream"
)

// ErrIllegal is returned when a command is not allowed in the current
// session state. Nothing is changed.
var ErrIllegal = errors.New("command: not allowed in current state")

// LiveFactory builds the live source for a session with the given plate count.
type LiveFactory func(plates int) (source.Source, error)

// Loader reads a recording for replay.
type Loader func(path string) ([]reading.Reading, error)

// Config wires a Dispatcher.
type Config struct {
	Live           LiveFactory
	Load           Loader
	PollInterval   time.Duration
	ReplayInterval time.Duration

	// RecordDir receives one JSONL recording per live session; empty
	// disables recording.
	RecordDir string
	Retention int

	Logger zerolog.Logger
}

// Dispatcher serializes user commands. Readings and source failures reach it
// from the pump goroutine through the hooks it installs on the pump.
type Dispatcher struct {
	store *stream.Store
	pump  *source.Pump
	cfg   Config
	log   zerolog.Logger

	mu  sync.Mutex   // serializes commands
	run source.RunID // current pump run, 0 when none; guarded by mu

	recMu sync.Mutex
	rec   *store.JSONL
}

// New creates a Dispatcher and takes over pump's Sink and OnError hooks.
// st should have been created with pump as its canceller.
func New(st *stream.Store, pump *source.Pump, cfg Config) *Dispatcher {
	if cfg.Load == nil {
		log := cfg.Logger
		cfg.Load = func(path string) ([]reading.Reading, error) { return store.LoadFile(path, log) }
	}
	if cfg.Live == nil {
		cfg.Live = func(int) (source.Source, error) { return nil, source.ErrNoTransport }
	}
	d := &Dispatcher{
		store: st,
		pump:  pump,
		cfg:   cfg,
		log:   cfg.Logger.With().Str("component", "command").Logger(),
	}
	pump.Sink = d.deliver
	pump.OnError = d.sourceFailed
	return d
}

// Connect opens the live source and starts polling. ctx bounds the session.
func (d *Dispatcher) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := d.store.Snapshot()
	if !snap.State.CanTransitionTo(session.Live) {
		return illegal("connect", snap.State)
	}

	src, err := d.cfg.Live(snap.Params.Plates)
	if err != nil {
		return fmt.Errorf("command: connect: %w", err)
	}
	d.openRecording()

	if !d.store.Apply(session.EventConnect) {
		d.closeRecording()
		return illegal("connect", d.store.State())
	}
	run, err := d.pump.Start(ctx, src, source.LiveSchedule(d.cfg.PollInterval))
	if err != nil {
		d.store.Fail(err)
		d.closeRecording()
		return fmt.Errorf("command: connect: %w", err)
	}
	d.run = run
	d.log.Info().Str("source", src.Name()).Int("plates", snap.Params.Plates).Msg("connected")
	return nil
}

// Disconnect stops live polling and returns the store to Idle.
func (d *Dispatcher) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if st := d.store.State(); st != session.Live {
		return illegal("disconnect", st)
	}
	d.run = 0
	if err := d.pump.Cancel(ctx); err != nil {
		d.log.Warn().Err(err).Msg("pump did not stop before deadline")
	}
	d.store.Apply(session.EventDisconnect)
	d.closeRecording()
	d.log.Info().Msg("disconnected")
	return nil
}

// ToggleConnection connects when Idle and disconnects when Live.
func (d *Dispatcher) ToggleConnection(ctx context.Context) error {
	if d.store.State() == session.Live {
		return d.Disconnect(ctx)
	}
	return d.Connect(ctx)
}

// StartReplay loads the recording at path and replays it. ctx bounds the
// replay.
func (d *Dispatcher) StartReplay(ctx context.Context, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if st := d.store.State(); !st.CanTransitionTo(session.Replay) {
		return illegal("start replay", st)
	}
	if path == "" {
		latest, err := d.latestRecording()
		if err != nil {
			return err
		}
		path = latest
	}

	readings, err := d.cfg.Load(path)
	if err != nil {
		return fmt.Errorf("command: start replay: %w", err)
	}
	if !d.store.Apply(session.EventStartReplay) {
		return illegal("start replay", d.store.State())
	}
	src := source.NewReplay(filepath.Base(path), readings)
	run, err := d.pump.Start(ctx, src, source.Schedule{Interval: d.cfg.ReplayInterval})
	if err != nil {
		d.store.Fail(err)
		return fmt.Errorf("command: start replay: %w", err)
	}
	d.run = run
	d.log.Info().Str("file", path).Int("readings", len(readings)).Msg("replay started")
	return nil
}

// TogglePause pauses a running replay or resumes a paused one. A replay
// that reached 100% stays paused.
func (d *Dispatcher) TogglePause(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := d.store.Snapshot()
	if snap.Progress >= reading.CompleteFraction {
		return illegal("pause", snap.State)
	}
	switch snap.State {
	case session.Replay:
		if err := d.pump.Pause(); err != nil {
			return fmt.Errorf("command: pause: %w", err)
		}
		d.store.Apply(session.EventPause)
	case session.ReplayPaused:
		if err := d.pump.Resume(); err != nil {
			return fmt.Errorf("command: resume: %w", err)
		}
		d.store.Apply(session.EventResume)
	default:
		return illegal("pause", snap.State)
	}
	return nil
}

// CancelReplay stops the replay and clears the store. The store converges
// to Idle even when stopping the pump fails; that error is returned.
func (d *Dispatcher) CancelReplay(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if st := d.store.State(); !st.IsReplay() {
		return illegal("cancel", st)
	}
	d.run = 0
	if err := d.store.RequestCancel(ctx); err != nil {
		d.log.Warn().Err(err).Msg("replay cancel")
		return fmt.Errorf("command: cancel: %w", err)
	}
	d.log.Info().Msg("replay cancelled")
	return nil
}

// SetPlates changes the plate count for the next session. Only allowed while
// Idle.
func (d *Dispatcher) SetPlates(n int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n < config.MinPlates || n > config.MaxPlates {
		return fmt.Errorf("command: plates must be between %d and %d", config.MinPlates, config.MaxPlates)
	}
	snap := d.store.Snapshot()
	if snap.State != session.Idle {
		return illegal("set plates", snap.State)
	}
	p := snap.Params
	p.Plates = n
	d.store.Reconfigure(p)
	return nil
}

// Shutdown stops any active run and closes the recording.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.run = 0
	err := d.pump.Cancel(ctx)
	d.closeRecording()
	return err
}

// SourceName returns the active source's name, or "" when idle.
func (d *Dispatcher) SourceName() string { return d.pump.SourceName() }

// RecordingPath returns the file the live session is recorded to, or "".
func (d *Dispatcher) RecordingPath() string {
	d.recMu.Lock()
	defer d.recMu.Unlock()
	if d.rec == nil {
		return ""
	}
	return d.rec.Path()
}

func (d *Dispatcher) deliver(r reading.Reading) {
	d.store.Ingest(r)

	d.recMu.Lock()
	defer d.recMu.Unlock()
	if d.rec == nil {
		return
	}
	if err := d.rec.Append(r); err != nil {
		d.log.Error().Err(err).Str("file", d.rec.Path()).Msg("recording stopped")
		_ = d.rec.Close()
		d.rec = nil
	}
}

// sourceFailed handles a pump failure report. The pump reports after its
// run has ended, so a user may already have disconnected or started a new
// session; reports for any run but the current one are dropped.
func (d *Dispatcher) sourceFailed(run source.RunID, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if run != d.run {
		d.log.Debug().Err(err).Uint64("run", uint64(run)).Uint64("current", uint64(d.run)).Msg("dropped failure from finished run")
		return
	}
	d.run = 0
	d.store.Fail(err)
	d.closeRecording()
}

func (d *Dispatcher) openRecording() {
	if d.cfg.RecordDir == "" {
		return
	}
	rec, err := store.NewJSONL(d.cfg.RecordDir)
	if err != nil {
		d.log.Error().Err(err).Msg("recording disabled for this session")
		return
	}
	d.recMu.Lock()
	d.rec = rec
	d.recMu.Unlock()
	d.log.Info().Str("file", rec.Path()).Msg("recording")
}

func (d *Dispatcher) closeRecording() {
	d.recMu.Lock()
	rec := d.rec
	d.rec = nil
	d.recMu.Unlock()
	if rec == nil {
		return
	}

	info := rec.Info()
	if err := rec.Close(); err != nil {
		d.log.Warn().Err(err).Str("file", info.Path).Msg("close recording")
	}
	d.log.Info().Str("file", info.Path).Int("readings", info.Readings).Msg("recording closed")
	if err := store.EnforceRetention(d.cfg.RecordDir, d.cfg.Retention); err != nil {
		d.log.Warn().Err(err).Msg("recording retention")
	}
}

func (d *Dispatcher) latestRecording() (string, error) {
	if d.cfg.RecordDir == "" {
		return "", fmt.Errorf("command: start replay: no file given and recording is disabled")
	}
	sessions, err := store.List(d.cfg.RecordDir)
	if err != nil {
		return "", fmt.Errorf("command: start replay: %w", err)
	}
	for _, s := range sessions {
		if s.Readings > 0 && s.Path != d.RecordingPath() {
			return s.Path, nil
		}
	}
	return "", fmt.Errorf("command: start replay: %w in %s", store.ErrEmptyRecording, d.cfg.RecordDir)
}

func illegal(cmd string, st session.State) error {
	return fmt.Errorf("%w: %s while %s", ErrIllegal, cmd, st.Label())
}
