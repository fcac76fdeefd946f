// Package projection turns buffered readings into chart-ready data: elapsed
// time labels, per-plate series and formatted readouts. Every function is
// pure and safe to call with empty input.
package projection

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/reading"
)

// Point is one sample of a plate series.
type Point struct {
	Label string  `json:"label"` // MM:SS elapsed since the session anchor
	Value float64 `json:"value"` // temperature or composition
}

// Series holds the samples of one plate. Readings that do not carry a value
// for the plate contribute no point.
type Series struct {
	Plate  int     `json:"plate"`
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// Values returns the series values in order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// Last returns the most recent point.
func (s Series) Last() (Point, bool) {
	if len(s.Points) == 0 {
		return Point{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// ElapsedLabel formats ts relative to anchor as MM:SS. Negative elapsed time
// is shown as 00:00. Minutes are not capped, so sessions past an hour read
// as 61:05 and so on.
func ElapsedLabel(anchor, ts float64) string {
	elapsed := ts - anchor
	if elapsed < 0 || math.IsNaN(elapsed) {
		elapsed = 0
	}
	minutes := int64(math.Floor(elapsed / 60))
	seconds := int64(math.Floor(math.Mod(elapsed, 60)))
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// TimeAxis labels every reading with its elapsed time from readings[0].
func TimeAxis(readings []reading.Reading) []string {
	if len(readings) == 0 {
		return []string{}
	}
	anchor := readings[0].Timestamp
	out := make([]string, len(readings))
	for i, r := range readings {
		out[i] = ElapsedLabel(anchor, r.Timestamp)
	}
	return out
}

// PlateSeries projects temperatures into one series per plate. When plates
// is not positive the first reading's shape decides the plate count.
func PlateSeries(readings []reading.Reading, plates int) []Series {
	return project(readings, plates, "Plate", func(r reading.Reading) []float64 { return r.Temperatures })
}

// CompositionSeries projects compositions the same way PlateSeries projects
// temperatures.
func CompositionSeries(readings []reading.Reading, plates int) []Series {
	return project(readings, plates, "Composition", func(r reading.Reading) []float64 { return r.Compositions })
}

func project(readings []reading.Reading, plates int, prefix string, values func(reading.Reading) []float64) []Series {
	if len(readings) == 0 {
		return []Series{}
	}
	if plates <= 0 {
		plates = len(values(readings[0]))
	}
	labels := TimeAxis(readings)

	out := make([]Series, plates)
	for p := range out {
		out[p] = Series{
			Plate:  p,
			Name:   prefix + " " + strconv.Itoa(p+1),
			Points: make([]Point, 0, len(readings)),
		}
	}
	for i, r := range readings {
		vs := values(r)
		for p := 0; p < plates && p < len(vs); p++ {
			out[p].Points = append(out[p].Points, Point{Label: labels[i], Value: vs[p]})
		}
	}
	return out
}

// LatestValue formats the latest reading's temperature at index with
// precision decimals (clamped to 1..2). It returns "0.0" when there is no
// data or the plate is missing.
func LatestValue(readings []reading.Reading, index, precision int) string {
	return latest(readings, index, precision, reading.Reading.Temperature)
}

// LatestComposition is LatestValue over compositions.
func LatestComposition(readings []reading.Reading, index, precision int) string {
	return latest(readings, index, precision, reading.Reading.Composition)
}

func latest(readings []reading.Reading, index, precision int, at func(reading.Reading, int) (float64, bool)) string {
	if len(readings) == 0 {
		return "0.0"
	}
	v, ok := at(readings[len(readings)-1], index)
	if !ok {
		return "0.0"
	}
	return strconv.FormatFloat(v, 'f', clampPrecision(precision), 64)
}

func clampPrecision(p int) int {
	switch {
	case p < 1:
		return 1
	case p > 2:
		return 2
	default:
		return p
	}
}

// IsMajorTick reports whether an axis label should be drawn: labels on the
// minute and half minute.
func IsMajorTick(label string) bool {
	return strings.HasSuffix(label, "00") || strings.HasSuffix(label, "30")
}
