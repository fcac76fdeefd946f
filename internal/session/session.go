// Package session defines the acquisition state machine: which source is
// feeding the column store and which transitions are legal.
package session

// State is the current acquisition mode.
type State int

const (
	Idle         State = iota // No connection, no data
	Live                      // Streaming from the instrument
	Replay                    // Streaming from a recording
	ReplayPaused              // Replay halted mid-stream, buffer retained
)

// Event is a request to change State.
type Event int

const (
	EventConnect     Event = iota // User connects to the instrument
	EventDisconnect               // User disconnects from the instrument
	EventStartReplay              // User starts a file replay
	EventPause                    // User pauses replay
	EventComplete                 // Replay progress reached 100
	EventResume                   // User resumes replay
	EventCancel                   // User cancels replay
	EventFail                     // Upstream connection failure
)

// Transition is one row of the transition table.
type Transition struct {
	From State
	On   Event
	To   State

	// Reset clears the history buffer and progress when the transition is applied.
	Reset bool
}

// transitions is the complete table. Pairs not listed are illegal. EventFail
// is accepted from every state and handled in Next.
var transitions = map[State]map[Event]Transition{
	Idle: {
		EventConnect:     {From: Idle, On: EventConnect, To: Live, Reset: true},
		EventStartReplay: {From: Idle, On: EventStartReplay, To: Replay, Reset: true},
	},
	Live: {
		EventDisconnect: {From: Live, On: EventDisconnect, To: Idle, Reset: true},
	},
	Replay: {
		EventPause:    {From: Replay, On: EventPause, To: ReplayPaused},
		EventComplete: {From: Replay, On: EventComplete, To: ReplayPaused},
		EventCancel:   {From: Replay, On: EventCancel, To: Idle, Reset: true},
	},
	ReplayPaused: {
		EventResume: {From: ReplayPaused, On: EventResume, To: Replay},
		EventCancel: {From: ReplayPaused, On: EventCancel, To: Idle, Reset: true},
	},
}

// Next looks up the transition for event e in state s. The boolean is false
// when the pair is not in the table; callers must then leave state unchanged.
func Next(s State, e Event) (Transition, bool) {
	if e == EventFail && s.Valid() {
		return Transition{From: s, On: EventFail, To: Idle, Reset: true}, true
	}
	t, ok := transitions[s][e]
	return t, ok
}

// targetPriority is the order in which events are tried when resolving a
// requested target state. Complete and Fail carry side effects beyond the
// state change and are never chosen implicitly.
var targetPriority = []Event{
	EventConnect,
	EventStartReplay,
	EventPause,
	EventResume,
	EventDisconnect,
	EventCancel,
}

// Resolve finds the user event that moves s to target. Requesting the
// current state is not a transition.
func Resolve(s, target State) (Transition, bool) {
	if s == target {
		return Transition{}, false
	}
	for _, e := range targetPriority {
		if t, ok := transitions[s][e]; ok && t.To == target {
			return t, true
		}
	}
	return Transition{}, false
}

// CanTransitionTo reports whether some user event moves s to next.
func (s State) CanTransitionTo(next State) bool {
	_, ok := Resolve(s, next)
	return ok
}

// Valid reports whether s is one of the defined states.
func (s State) Valid() bool {
	return s >= Idle && s <= ReplayPaused
}

// Active reports whether a source is attached (any state but Idle).
func (s State) Active() bool {
	return s != Idle && s.Valid()
}

// IsReplay reports whether s belongs to a file replay session.
func (s State) IsReplay() bool {
	return s == Replay || s == ReplayPaused
}

// Label returns a short uppercase label for the state.
func (s State) Label() string {
	switch s {
	case Idle:
		return "IDLE"
	case Live:
		return "LIVE"
	case Replay:
		return "REPLAY"
	case ReplayPaused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

// Symbol returns a single-character symbol representing the state.
func (s State) Symbol() string {
	switch s {
	case Idle:
		return "○"
	case Live:
		return "●"
	case Replay:
		return "▶"
	case ReplayPaused:
		return "⏸"
	default:
		return "?"
	}
}

// String implements fmt.Stringer.
func (s State) String() string {
	return s.Label()
}

// String implements fmt.Stringer.
func (e Event) String() string {
	switch e {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventStartReplay:
		return "start-replay"
	case EventPause:
		return "pause"
	case EventComplete:
		return "complete"
	case EventResume:
		return "resume"
	case EventCancel:
		return "cancel"
	case EventFail:
		return "fail"
	default:
		return "unknown"
	}
}

// States lists every defined state in declaration order.
func States() []State {
	return []State{Idle, Live, Replay, ReplayPaused}
}

// Events lists every defined event in declaration order.
func Events() []Event {
	return []Event{EventConnect, EventDisconnect, EventStartReplay, EventPause, EventComplete, EventResume, EventCancel, EventFail}
}
