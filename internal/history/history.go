// Package history provides the bounded reading history behind the live
// charts: a fixed time-zero anchor followed by a sliding window of the most
// recent readings.
package history

import "github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/reading"

// DefaultCapacity is the window size used when a non-positive capacity is
// requested. At a one-second cadence it holds four minutes of data.
const DefaultCapacity = 240

// Buffer keeps the first reading of a session as an anchor plus a ring of
// the most recent Capacity readings, so Len never exceeds Capacity+1.
// Eviction drops from the middle: never the anchor, never the newest entry.
//
// The buffer is shape-agnostic. Readings whose plate count differs from
// earlier entries are stored as-is; projections decide how to treat them.
type Buffer struct {
	anchor    reading.Reading
	hasAnchor bool

	ring  []reading.Reading // fixed length == capacity once allocated
	head  int               // index of the oldest windowed entry
	count int               // number of windowed entries

	capacity  int
	evictions uint64
}

// NewBuffer creates an empty buffer with the given window capacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		ring:     make([]reading.Reading, capacity),
		capacity: capacity,
	}
}

// Append adds r as the newest entry. The first reading after creation or
// Clear becomes the anchor. O(1).
func (b *Buffer) Append(r reading.Reading) {
	if !b.hasAnchor {
		b.anchor = r
		b.hasAnchor = true
		return
	}
	if b.count < b.capacity {
		b.ring[(b.head+b.count)%b.capacity] = r
		b.count++
		return
	}
	// Full window: overwrite the oldest windowed entry.
	b.ring[b.head] = r
	b.head = (b.head + 1) % b.capacity
	b.evictions++
}

// Clear empties the buffer, including the anchor. Calling it repeatedly
// leaves the same empty state.
func (b *Buffer) Clear() {
	for i := range b.ring {
		b.ring[i] = reading.Reading{}
	}
	b.anchor = reading.Reading{}
	b.hasAnchor = false
	b.head = 0
	b.count = 0
}

// Latest returns the most recently appended reading, or false if empty.
func (b *Buffer) Latest() (reading.Reading, bool) {
	if !b.hasAnchor {
		return reading.Reading{}, false
	}
	if b.count == 0 {
		return b.anchor, true
	}
	return b.ring[(b.head+b.count-1)%b.capacity], true
}

// Anchor returns the time-zero reading of the current session.
func (b *Buffer) Anchor() (reading.Reading, bool) {
	return b.anchor, b.hasAnchor
}

// All returns the buffered readings oldest first, anchor included. The
// returned slice is a copy; the plate slices inside are shared and must be
// treated as read-only.
func (b *Buffer) All() []reading.Reading {
	if !b.hasAnchor {
		return nil
	}
	out := make([]reading.Reading, 0, b.count+1)
	out = append(out, b.anchor)
	for i := 0; i < b.count; i++ {
		out = append(out, b.ring[(b.head+i)%b.capacity])
	}
	return out
}

// Len returns the number of buffered readings, anchor included.
func (b *Buffer) Len() int {
	if !b.hasAnchor {
		return 0
	}
	return b.count + 1
}

// Capacity returns the window size N. Len is bounded by N+1.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Evictions returns how many readings have been dropped from the window
// over the buffer's lifetime. Clear does not reset it.
func (b *Buffer) Evictions() uint64 {
	return b.evictions
}
