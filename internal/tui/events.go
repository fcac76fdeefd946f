package tui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/session"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/stream"
)

// EventKind classifies an event-log entry.
type EventKind int

const (
	EventInfo EventKind = iota
	EventConnected
	EventReplayStarted
	EventPaused
	EventCompleted
	EventFailed
	EventStopped
	EventReset
	EventCommandError
)

// Event is one line of the dashboard's event log.
type Event struct {
	At      time.Time
	Kind    EventKind
	Message string
}

// maxPending bounds the events queued between two redraws.
const maxPending = 256

// Feed bridges store notifications to the bubbletea program. Observe runs on
// whichever goroutine mutated the store and never blocks: it queues log
// events and pokes a 1-slot wake channel. The program drains the queue and
// re-reads the store snapshot, so bursts of readings cost one redraw.
type Feed struct {
	wake chan struct{}
	now  func() time.Time

	mu      sync.Mutex
	pending []Event
	dropped int
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{wake: make(chan struct{}, 1), now: time.Now}
}

// Observe is a stream.Store subscriber.
func (f *Feed) Observe(ch stream.Change) {
	if evs := eventsFor(ch, f.now()); len(evs) > 0 {
		f.mu.Lock()
		f.pending = append(f.pending, evs...)
		if over := len(f.pending) - maxPending; over > 0 {
			f.pending = f.pending[over:]
			f.dropped += over
		}
		f.mu.Unlock()
	}
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Wake returns the channel signalled after every store change.
func (f *Feed) Wake() <-chan struct{} {
	return f.wake
}

// Drain returns and clears the queued events.
func (f *Feed) Drain() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.pending
	if f.dropped > 0 {
		out = append([]Event{{At: f.now(), Kind: EventInfo, Message: fmt.Sprintf("%d events dropped", f.dropped)}}, out...)
		f.dropped = 0
	}
	f.pending = nil
	return out
}

// eventsFor maps a store change to zero or more log entries. Plain ingests
// produce none.
func eventsFor(ch stream.Change, at time.Time) []Event {
	var out []Event
	add := func(k EventKind, msg string) {
		out = append(out, Event{At: at, Kind: k, Message: msg})
	}

	switch ch.Kind {
	case stream.ChangeIngest:
		if ch.Reset {
			add(EventReset, "timestamp went backwards, history restarted")
		}
		if ch.Completed {
			add(EventCompleted, "replay complete")
		}
	case stream.ChangeTransition:
		switch ch.Event {
		case session.EventConnect:
			add(EventConnected, "connected")
		case session.EventStartReplay:
			add(EventReplayStarted, "replay started")
		case session.EventPause:
			add(EventPaused, "replay paused")
		case session.EventResume:
			add(EventInfo, "replay resumed")
		case session.EventComplete:
			add(EventCompleted, "replay complete")
		case session.EventDisconnect:
			add(EventStopped, "disconnected")
		case session.EventCancel:
			add(EventStopped, "replay cancelled")
		case session.EventFail:
			msg := strings.ToLower(ch.Prev.Label()) + " session failed"
			if ch.Err != nil {
				msg += ": " + ch.Err.Error()
			}
			add(EventFailed, msg)
		}
	case stream.ChangeClear:
		add(EventStopped, "history cleared")
	case stream.ChangeReconfigure:
		add(EventInfo, "column reconfigured")
	}
	return out
}
