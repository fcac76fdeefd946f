// Package reading defines the timestamped multi-plate sample streamed from
// the column instrument.
package reading

// CompleteFraction is the CompletionFraction value that marks end-of-stream.
const CompleteFraction = 100.0

// Reading is one timestamped sample of the column. Temperatures and
// Compositions are indexed by plate, 0 = bottom.
type Reading struct {
	Timestamp          float64   `json:"timestamp"` // seconds since a monotonic epoch
	Temperatures       []float64 `json:"temperatures"`
	Compositions       []float64 `json:"compositions"`
	CompletionFraction float64   `json:"percentageComplete"` // 0..100, replay only
}

// Temperature returns the temperature at plate i and whether the reading
// carries a value for that plate.
func (r Reading) Temperature(i int) (float64, bool) {
	if i < 0 || i >= len(r.Temperatures) {
		return 0, false
	}
	return r.Temperatures[i], true
}

// Composition returns the composition at plate i and whether the reading
// carries a value for that plate.
func (r Reading) Composition(i int) (float64, bool) {
	if i < 0 || i >= len(r.Compositions) {
		return 0, false
	}
	return r.Compositions[i], true
}

// Complete reports whether the reading marks the end of a replay stream.
func (r Reading) Complete() bool {
	return r.CompletionFraction >= CompleteFraction
}

// Clone returns a deep copy so callers cannot alias the plate slices.
func (r Reading) Clone() Reading {
	c := r
	if r.Temperatures != nil {
		c.Temperatures = append([]float64(nil), r.Temperatures...)
	}
	if r.Compositions != nil {
		c.Compositions = append([]float64(nil), r.Compositions...)
	}
	return c
}
