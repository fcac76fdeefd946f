package source

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/reading"
)

// StallFactor is how many poll intervals a live source may go without a
// reading before the pump reports ErrStalled.
const StallFactor = 3

// Schedule controls one pump run.
type Schedule struct {
	Interval   time.Duration // time between pulls
	StallAfter time.Duration // 0 disables the stall watchdog
}

// LiveSchedule returns the schedule used for live polling: the stall window
// is StallFactor poll intervals.
func LiveSchedule(poll time.Duration) Schedule {
	return Schedule{Interval: poll, StallAfter: StallFactor * poll}
}

// RunID identifies one pump run. IDs start at 1 and are never reused by a
// Pump, so a late error report can be matched to the run that produced it.
type RunID uint64

// Pump pulls readings from a Source on a schedule and hands them to Sink.
// At most one run is active at a time. Set the hooks before the first Start.
type Pump struct {
	// Sink receives every reading, from the pump goroutine.
	Sink func(reading.Reading)
	// OnError receives the error that stopped a run, tagged with that run's
	// ID. It is called after the run is gone, so it may race with a newer
	// Start. Cancellation and ErrExhausted are not reported.
	OnError func(RunID, error)

	log zerolog.Logger

	mu   sync.Mutex
	cur  *pumpRun
	last RunID
}

type pumpRun struct {
	id     RunID
	src    Source
	sched  Schedule
	cancel context.CancelFunc
	done   chan struct{}

	paused  atomic.Bool
	stalled atomic.Bool
	lastAt  atomic.Int64 // unix nanos of the last reading or resume
}

func (r *pumpRun) touch() { r.lastAt.Store(time.Now().UnixNano()) }

func (r *pumpRun) sinceLast() time.Duration {
	return time.Since(time.Unix(0, r.lastAt.Load()))
}

// NewPump creates an idle pump.
func NewPump(log zerolog.Logger) *Pump {
	return &Pump{log: log.With().Str("component", "pump").Logger()}
}

// Start begins pulling from src. The first reading is pulled immediately.
// The run ends when ctx is cancelled, Cancel is called, or the source fails.
func (p *Pump) Start(ctx context.Context, src Source, sched Schedule) (RunID, error) {
	if sched.Interval <= 0 {
		sched.Interval = time.Second
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur != nil {
		return 0, ErrRunning
	}

	p.last++
	runCtx, cancel := context.WithCancel(ctx)
	r := &pumpRun{id: p.last, src: src, sched: sched, cancel: cancel, done: make(chan struct{})}
	r.touch()
	p.cur = r

	p.log.Info().
		Uint64("run", uint64(r.id)).
		Str("source", src.Name()).
		Dur("interval", sched.Interval).
		Dur("stall_after", sched.StallAfter).
		Msg("pump started")

	if sched.StallAfter > 0 {
		go p.watch(runCtx, r)
	}
	go p.run(runCtx, r)
	return r.id, nil
}

// Pause stops pulling readings until Resume. The source stays open.
func (p *Pump) Pause() error {
	r := p.current()
	if r == nil {
		return ErrNotRunning
	}
	r.paused.Store(true)
	return nil
}

// Resume continues a paused run.
func (p *Pump) Resume() error {
	r := p.current()
	if r == nil {
		return ErrNotRunning
	}
	r.touch()
	r.paused.Store(false)
	return nil
}

// Cancel stops the active run and waits for its goroutine to exit or ctx to
// end. Cancelling an idle pump is a no-op. It must not be called from the
// sink.
func (p *Pump) Cancel(ctx context.Context) error {
	p.mu.Lock()
	r := p.cur
	p.cur = nil
	p.mu.Unlock()
	if r == nil {
		return nil
	}

	r.cancel()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a run is active.
func (p *Pump) Running() bool { return p.current() != nil }

// Paused reports whether the active run is paused.
func (p *Pump) Paused() bool {
	r := p.current()
	return r != nil && r.paused.Load()
}

// SourceName returns the active source's name, or "" when idle.
func (p *Pump) SourceName() string {
	if r := p.current(); r != nil {
		return r.src.Name()
	}
	return ""
}

func (p *Pump) current() *pumpRun {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur
}

func (p *Pump) run(ctx context.Context, r *pumpRun) {
	err := p.loop(ctx, r)
	cancelled := ctx.Err() != nil
	r.cancel()

	p.mu.Lock()
	if p.cur == r {
		p.cur = nil
	}
	p.mu.Unlock()
	close(r.done)

	log := p.log.With().Uint64("run", uint64(r.id)).Str("source", r.src.Name()).Logger()
	switch {
	case r.stalled.Load():
		log.Warn().Dur("stall_after", r.sched.StallAfter).Msg("source stalled")
		p.report(r.id, ErrStalled)
	case errors.Is(err, ErrExhausted):
		log.Info().Msg("source exhausted")
	case err == nil || cancelled:
		log.Info().Msg("pump stopped")
	default:
		log.Error().Err(err).Msg("source failed")
		p.report(r.id, err)
	}
}

func (p *Pump) loop(ctx context.Context, r *pumpRun) error {
	ticker := time.NewTicker(r.sched.Interval)
	defer ticker.Stop()

	for {
		if !r.paused.Load() {
			rd, err := r.src.Next(ctx)
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			r.touch()
			if p.Sink != nil {
				p.Sink(rd)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Pump) report(id RunID, err error) {
	if p.OnError != nil {
		p.OnError(id, err)
	}
}

// watch cancels the run when no reading arrives within the stall window.
func (p *Pump) watch(ctx context.Context, r *pumpRun) {
	ticker := time.NewTicker(max(r.sched.StallAfter/4, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.paused.Load() {
				r.touch()
				continue
			}
			if r.sinceLast() >= r.sched.StallAfter {
				r.stalled.Store(true)
				r.cancel()
				return
			}
		}
	}
}
