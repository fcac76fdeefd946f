package stream

import (
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/reading"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/session"
)

// ChangeKind identifies which mutation produced a Change.
type ChangeKind int

const (
	ChangeIngest      ChangeKind = iota // A reading was appended
	ChangeTransition                    // The session state changed
	ChangeClear                         // The buffer was cleared without a state change
	ChangeReconfigure                   // Session parameters were replaced
)

// String implements fmt.Stringer.
func (k ChangeKind) String() string {
	switch k {
	case ChangeIngest:
		return "ingest"
	case ChangeTransition:
		return "transition"
	case ChangeClear:
		return "clear"
	case ChangeReconfigure:
		return "reconfigure"
	default:
		return "unknown"
	}
}

// Change describes one applied mutation. Subscribers receive exactly one
// Change per mutation, in the order mutations were applied.
type Change struct {
	Kind    ChangeKind
	Version uint64

	Prev  session.State
	State session.State
	Event session.Event // set when Kind == ChangeTransition or Completed

	Progress float64

	// Reading is the appended reading for ChangeIngest.
	Reading reading.Reading

	// Reset is true when the buffer was cleared as part of this change,
	// including a timestamp regression detected on ingest.
	Reset bool

	// Completed is true on the single ingest that moved a replay to
	// ReplayPaused by reaching 100% progress.
	Completed bool

	// Err carries the failure cause for EventFail transitions.
	Err error
}

// Transitioned reports whether the change moved the session to a new state.
func (c Change) Transitioned() bool {
	return c.Prev != c.State
}
