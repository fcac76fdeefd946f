// Package source produces column readings: live instrument polling, a
// deterministic simulator for the register transport, recorded replays, and
// the Pump that moves readings from a Source into the stream store.
package source

import (
	"context"
	"errors"

	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/reading"
)

var (
	// ErrExhausted is returned by a replay once every recorded reading has
	// been served.
	ErrExhausted = errors.New("source: no more readings")

	// ErrStalled is reported when a running live source has produced no
	// reading within the stall window.
	ErrStalled = errors.New("source: no reading within stall window")

	// ErrNotRunning is returned by Pump control calls when nothing is running.
	ErrNotRunning = errors.New("source: pump not running")

	// ErrNoTransport is returned when live polling is requested without a
	// register transport for the configured port.
	ErrNoTransport = errors.New("source: no register transport")

	// ErrRunning is returned by Pump.Start while a previous run is active.
	ErrRunning = errors.New("source: pump already running")
)

// Source yields one reading per call. Implementations need not be safe for
// concurrent use; the Pump calls Next from a single goroutine.
type Source interface {
	Next(ctx context.Context) (reading.Reading, error)
	Name() string
}
