package source

import (
	"context"

	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/reading"
)

// Replay serves recorded readings in order, stamping each with its position
// in the recording as the completion fraction.
type Replay struct {
	name     string
	readings []reading.Reading
	next     int
}

// NewReplay creates a replay over readings. name identifies the recording in
// logs and the UI.
func NewReplay(name string, readings []reading.Reading) *Replay {
	return &Replay{name: name, readings: readings}
}

// Name implements Source.
func (r *Replay) Name() string { return r.name }

// Next implements Source. It returns ErrExhausted after the last reading.
func (r *Replay) Next(ctx context.Context) (reading.Reading, error) {
	if err := ctx.Err(); err != nil {
		return reading.Reading{}, err
	}
	if r.next >= len(r.readings) {
		return reading.Reading{}, ErrExhausted
	}
	out := r.readings[r.next].Clone()
	r.next++
	out.CompletionFraction = float64(r.next) / float64(len(r.readings)) * reading.CompleteFraction
	return out, nil
}

// Len returns the number of recorded readings.
func (r *Replay) Len() int { return len(r.readings) }

// Remaining returns how many readings have not been served yet.
func (r *Replay) Remaining() int { return len(r.readings) - r.next }
