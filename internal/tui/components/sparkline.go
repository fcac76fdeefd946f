package components

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/projection"
)

var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

var (
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	tickStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
)

// Sparkline renders points as one row of block characters scaled to
// [lo, hi]. Only the last width points are shown; shorter series are
// left-padded. A tick mark replaces the block wherever a new major tick
// label begins.
func Sparkline(points []projection.Point, width int, lo, hi float64, color lipgloss.Color) string {
	if width <= 0 {
		return ""
	}
	if len(points) == 0 {
		return dimStyle.Render(strings.Repeat("╌", width))
	}
	if len(points) > width {
		points = points[len(points)-width:]
	}

	span := hi - lo
	if span <= 0 {
		span = 1
	}
	style := lipgloss.NewStyle().Foreground(color)

	var sb strings.Builder
	if pad := width - len(points); pad > 0 {
		sb.WriteString(dimStyle.Render(strings.Repeat("╌", pad)))
	}
	for i, p := range points {
		if majorTick(points, i) {
			sb.WriteString(tickStyle.Render("│"))
			continue
		}
		norm := math.Max(0, math.Min(1, (p.Value-lo)/span))
		idx := int(norm * 7)
		sb.WriteString(style.Render(string(sparkBlocks[idx])))
	}
	return sb.String()
}

// Timeline renders the MM:SS labels under a sparkline of the same points and
// width. Labels that would overlap a previous one are skipped.
func Timeline(points []projection.Point, width int) string {
	if len(points) == 0 || width <= 0 {
		return ""
	}
	if len(points) > width {
		points = points[len(points)-width:]
	}
	pad := width - len(points)

	line := []rune(strings.Repeat(" ", width))
	lastEnd := -1
	for i, p := range points {
		if !majorTick(points, i) {
			continue
		}
		start := max(pad+i-2, 0)
		end := start + len(p.Label)
		if end > width || start <= lastEnd {
			continue
		}
		copy(line[start:], []rune(p.Label))
		lastEnd = end
	}
	return tickStyle.Render(string(line))
}

// Bounds returns a padded [lo, hi] range covering every point of every
// series, or (0, 1) when there are none.
func Bounds(series []projection.Series) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, p := range s.Points {
			lo = math.Min(lo, p.Value)
			hi = math.Max(hi, p.Value)
		}
	}
	if math.IsInf(lo, 0) {
		return 0, 1
	}
	pad := (hi - lo) / 20
	if pad == 0 {
		pad = 0.5
	}
	return lo - pad, hi + pad
}

// majorTick reports whether points[i] opens a new major tick label. Several
// readings can share one label at sub-second replay rates.
func majorTick(points []projection.Point, i int) bool {
	if !projection.IsMajorTick(points[i].Label) {
		return false
	}
	return i == 0 || points[i-1].Label != points[i].Label
}
