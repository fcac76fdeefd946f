// Package stream implements the column streaming store: it owns the reading
// history and the session state machine, accepts readings from the upstream
// source and fans changes out to subscribers.
//
// The store serializes its own mutations. Changes are delivered to
// subscribers in apply order, outside the state lock. A subscriber may call
// Snapshot or even mutate the store: the nested change is queued and
// delivered once the current one has reached every subscriber.
package stream

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/history"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/reading"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/session"
)

// Canceller asks the upstream source to stop sending readings.
type Canceller interface {
	Cancel(ctx context.Context) error
}

// CancelFunc adapts a function to the Canceller interface.
type CancelFunc func(ctx context.Context) error

// Cancel calls f(ctx).
func (f CancelFunc) Cancel(ctx context.Context) error { return f(ctx) }

// Params are the per-session settings supplied by configuration.
type Params struct {
	Plates   int // configured plate count
	Capacity int // history window size N
}

// Snapshot is a consistent read of the store. The readings it holds share
// their plate slices with the store and must be treated as read-only.
type Snapshot struct {
	State         session.State
	Progress      float64
	Latest        reading.Reading
	HasLatest     bool
	Readings      []reading.Reading // oldest first, anchor at index 0
	Version       uint64
	Params        Params
	Evictions     uint64
	CancelPending bool
	LastErr       error // most recent failure, cleared at the next session start
}

// Option configures a Store.
type Option func(*Store)

// WithCanceller sets the upstream used by RequestCancel.
func WithCanceller(c Canceller) Option {
	return func(s *Store) { s.canceller = c }
}

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l.With().Str("component", "stream").Logger() }
}

type subscriber struct {
	fn     func(Change)
	active atomic.Bool
}

// Store is the streaming store. Create one per application session with New
// and pass it to whatever owns the event source and the UI binding.
type Store struct {
	mu       sync.RWMutex
	buf      *history.Buffer
	state    session.State
	progress float64
	version  uint64
	params   Params
	lastErr  error

	pending    []Change // applied but not yet delivered, guarded by mu
	delivering bool     // a goroutine is draining pending

	subsMu sync.Mutex
	subs   []*subscriber

	cancelPending atomic.Bool
	canceller     Canceller
	log           zerolog.Logger
}

// New creates an Idle store with an empty history sized by p.Capacity.
func New(p Params, opts ...Option) *Store {
	if p.Capacity <= 0 {
		p.Capacity = history.DefaultCapacity
	}
	s := &Store{
		buf:    history.NewBuffer(p.Capacity),
		state:  session.Idle,
		params: p,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest appends r to the history and updates progress. It never fails:
// readings of any shape are accepted, including while Idle, since in-flight
// readings may still arrive after a cancel was requested. A timestamp lower
// than the latest buffered one starts a new session and clears the history
// first. Reaching 100% progress during Replay pauses the replay and flags the
// change as Completed.
func (s *Store) Ingest(r reading.Reading) {
	r = r.Clone()
	s.mutate(func() (Change, bool) {
		ch := Change{Kind: ChangeIngest, Prev: s.state, Reading: r}

		if latest, ok := s.buf.Latest(); ok && r.Timestamp < latest.Timestamp {
			s.log.Debug().
				Float64("latest", latest.Timestamp).
				Float64("incoming", r.Timestamp).
				Msg("timestamp regressed; starting new session buffer")
			s.buf.Clear()
			s.progress = 0
			ch.Reset = true
		}

		s.buf.Append(r)
		s.progress = clampProgress(r.CompletionFraction)

		if s.state == session.Replay && s.progress >= reading.CompleteFraction {
			if t, ok := session.Next(s.state, session.EventComplete); ok {
				s.state = t.To
				ch.Event = session.EventComplete
				ch.Completed = true
				s.log.Info().Msg("replay complete")
			}
		}

		ch.State = s.state
		ch.Progress = s.progress
		return ch, true
	})
}

// Apply performs the table transition for event e. It reports false, and
// changes nothing, when the pair is not in the table.
func (s *Store) Apply(e session.Event) bool {
	return s.applyEvent(e, nil)
}

// Fail moves the store to Idle from any state, clearing the history, and
// records err as the failure cause.
func (s *Store) Fail(err error) {
	s.applyEvent(session.EventFail, err)
}

// SetSessionState requests a move to target. The transition is resolved
// from the table; targets that are not reachable from the current state by
// a single user event, including the current state itself, are ignored.
// A move that resolves to a cancel goes through RequestCancel so the
// upstream is stopped too.
func (s *Store) SetSessionState(target session.State) bool {
	if t, ok := session.Resolve(s.State(), target); ok && t.On == session.EventCancel {
		_ = s.RequestCancel(context.Background())
		return true
	}

	applied := false
	s.mutate(func() (Change, bool) {
		t, ok := session.Resolve(s.state, target)
		if !ok {
			s.log.Debug().Stringer("from", s.state).Stringer("to", target).Msg("ignored illegal transition")
			return Change{}, false
		}
		applied = true
		return s.transitionLocked(t, nil), true
	})
	return applied
}

// RequestCancel asks the upstream to stop and then converges the store to a
// cleared Idle state, whatever the upstream returned. Ingest keeps working
// while the upstream call is in flight. The upstream error, if any, is
// returned for the caller to report; it is not retried.
func (s *Store) RequestCancel(ctx context.Context) error {
	s.cancelPending.Store(true)
	defer s.cancelPending.Store(false)

	var upErr error
	if s.canceller != nil {
		upErr = s.canceller.Cancel(ctx)
	}

	s.mutate(func() (Change, bool) {
		var e session.Event
		switch s.state {
		case session.Replay, session.ReplayPaused:
			e = session.EventCancel
		case session.Live:
			e = session.EventDisconnect
		default:
			if s.buf.Len() == 0 && s.progress == 0 {
				return Change{}, false
			}
			s.buf.Clear()
			s.progress = 0
			return Change{Kind: ChangeClear, Prev: s.state, State: s.state, Reset: true}, true
		}
		t, _ := session.Next(s.state, e)
		return s.transitionLocked(t, nil), true
	})

	if upErr != nil {
		s.log.Warn().Err(upErr).Msg("upstream cancel failed; local state cleared")
		return fmt.Errorf("stream: upstream cancel: %w", upErr)
	}
	return nil
}

// Reconfigure replaces the session parameters. It is accepted only while
// Idle; a capacity change replaces the history buffer.
func (s *Store) Reconfigure(p Params) bool {
	if p.Capacity <= 0 {
		p.Capacity = history.DefaultCapacity
	}
	applied := false
	s.mutate(func() (Change, bool) {
		if s.state != session.Idle || p == s.params {
			return Change{}, false
		}
		ch := Change{Kind: ChangeReconfigure, Prev: s.state, State: s.state}
		if p.Capacity != s.params.Capacity {
			s.buf = history.NewBuffer(p.Capacity)
			s.progress = 0
			ch.Reset = true
		}
		s.params = p
		applied = true
		return ch, true
	})
	return applied
}

// Subscribe registers fn to be called after every mutation. The returned
// function unsubscribes; calling it more than once is harmless.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	sub := &subscriber{fn: fn}
	sub.active.Store(true)

	s.subsMu.Lock()
	s.subs = append(s.subs, sub)
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			for i, existing := range s.subs {
				if existing == sub {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					break
				}
			}
		})
	}
}

// Snapshot returns a consistent copy of the store's current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest, ok := s.buf.Latest()
	return Snapshot{
		State:         s.state,
		Progress:      s.progress,
		Latest:        latest,
		HasLatest:     ok,
		Readings:      s.buf.All(),
		Version:       s.version,
		Params:        s.params,
		Evictions:     s.buf.Evictions(),
		CancelPending: s.cancelPending.Load(),
		LastErr:       s.lastErr,
	}
}

// State returns the current session state.
func (s *Store) State() session.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Progress returns the last observed completion fraction.
func (s *Store) Progress() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// Len returns the number of buffered readings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf.Len()
}

func (s *Store) applyEvent(e session.Event, cause error) bool {
	applied := false
	s.mutate(func() (Change, bool) {
		t, ok := session.Next(s.state, e)
		if !ok {
			s.log.Debug().Stringer("state", s.state).Stringer("event", e).Msg("ignored illegal event")
			return Change{}, false
		}
		applied = true
		return s.transitionLocked(t, cause), true
	})
	return applied
}

// transitionLocked applies t. Callers hold s.mu.
func (s *Store) transitionLocked(t session.Transition, cause error) Change {
	prev := s.state
	s.state = t.To
	if t.Reset {
		s.buf.Clear()
		s.progress = 0
	}
	switch {
	case t.On == session.EventFail:
		s.lastErr = cause
	case t.Reset && t.To.Active():
		s.lastErr = nil
	}

	ev := s.log.Info()
	if t.On == session.EventFail {
		ev = s.log.Warn().AnErr("cause", cause)
	}
	ev.Stringer("from", prev).Stringer("to", t.To).Stringer("event", t.On).Msg("session transition")

	return Change{
		Kind:      ChangeTransition,
		Prev:      prev,
		State:     t.To,
		Event:     t.On,
		Progress:  s.progress,
		Reset:     t.Reset,
		Completed: t.On == session.EventComplete,
		Err:       cause,
	}
}

// mutate runs fn under the state lock and, if it reports a change, bumps the
// version and queues the change. The first caller to find the queue idle
// delivers it, along with anything queued meanwhile, so a mutation made
// from inside a subscriber returns at once instead of blocking.
func (s *Store) mutate(fn func() (Change, bool)) {
	s.mu.Lock()
	ch, changed := fn()
	if !changed {
		s.mu.Unlock()
		return
	}
	s.version++
	ch.Version = s.version
	s.pending = append(s.pending, ch)
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true
	s.mu.Unlock()

	s.drain()
}

func (s *Store) drain() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.pending = nil
			s.delivering = false
			s.mu.Unlock()
			return
		}
		ch := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		s.notify(ch)
	}
}

func (s *Store) notify(ch Change) {
	s.subsMu.Lock()
	subs := make([]*subscriber, len(s.subs))
	copy(subs, s.subs)
	s.subsMu.Unlock()

	for _, sub := range subs {
		if sub.active.Load() {
			sub.fn(ch)
		}
	}
}

func clampProgress(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > reading.CompleteFraction:
		return reading.CompleteFraction
	default:
		return p
	}
}
