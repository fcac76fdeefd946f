package panels

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var barStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6BCB77"))

// CompositionRow is one plate's liquid ethanol mole fraction.
type CompositionRow struct {
	Name     string
	Text     string  // formatted value
	Fraction float64 // 0..1, drives the bar
}

// RenderCompositions lists one row per plate, top plate first, with a bar
// proportional to the fraction.
func RenderCompositions(rows []CompositionRow, width, height int) string {
	if width < 8 || height < 1 {
		return ""
	}
	if len(rows) == 0 {
		return footerStyle.Render("no data")
	}

	nameW := 9
	textW := 6
	barW := width - nameW - textW - 2
	lines := make([]string, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		line := fmt.Sprintf("%-*s%*s", nameW, truncate(r.Name, nameW), textW, r.Text)
		if barW > 0 {
			f := math.Max(0, math.Min(1, r.Fraction))
			if math.IsNaN(f) {
				f = 0
			}
			filled := int(math.Round(f * float64(barW)))
			line += "  " + barStyle.Render(strings.Repeat("█", filled)) + footerStyle.Render(strings.Repeat("░", barW-filled))
		}
		lines = append(lines, line)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}
