// Package store records column sessions to append-only JSONL files and reads
// them back for replay. One recording is opened per live session by the
// command dispatcher and closed when the session ends.
package store

import (
	"errors"
	"time"

	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/reading"
)

// ErrEmptyRecording is returned when a recording holds no usable readings.
var ErrEmptyRecording = errors.New("store: recording has no readings")

// Recorder persists readings to durable storage.
type Recorder interface {
	Append(r reading.Reading) error
	Close() error
}

// SessionInfo summarises one recording file.
type SessionInfo struct {
	ID        string
	Path      string
	StartedAt time.Time // from the file name
	Readings  int
	FirstTS   float64
	LastTS    float64
	Plates    int // widest reading seen
	SizeBytes int64
}

// Duration returns the span between the first and last reading.
func (s SessionInfo) Duration() time.Duration {
	if s.Readings < 2 {
		return 0
	}
	return time.Duration((s.LastTS - s.FirstTS) * float64(time.Second))
}

// summary accumulates SessionInfo counters as readings are appended or read.
type summary struct {
	count   int
	firstTS float64
	lastTS  float64
	plates  int
}

func (s *summary) add(r reading.Reading) {
	if s.count == 0 {
		s.firstTS = r.Timestamp
	}
	s.lastTS = r.Timestamp
	s.count++
	if n := len(r.Temperatures); n > s.plates {
		s.plates = n
	}
}

func (s summary) fill(info *SessionInfo) {
	info.Readings = s.count
	info.FirstTS = s.firstTS
	info.LastTS = s.lastTS
	info.Plates = s.plates
}
