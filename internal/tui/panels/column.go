package panels

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	plateStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B9BD5"))
	vapourStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	reboilStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA54F"))
)

// PlateReadout is one plate's formatted temperature.
type PlateReadout struct {
	Name  string
	Value string
}

// RenderColumn draws the column with the top plate first and the reboiler
// at the bottom. plates is ordered bottom to top, as the instrument reports
// them. Rows that do not fit height are dropped from the top.
func RenderColumn(plates []PlateReadout, width, height int) string {
	if width < 8 || height < 1 {
		return ""
	}
	inner := width - 4

	rows := []string{vapourStyle.Render(center("vapour ↑", width))}
	for i := len(plates) - 1; i >= 0; i-- {
		p := plates[i]
		label := fmt.Sprintf("%-*s%*s", inner/2, truncate(p.Name, inner/2), inner-inner/2, truncate(p.Value+" °C", inner-inner/2))
		rows = append(rows, plateStyle.Render("╟ "+label+" ╢"))
	}
	rows = append(rows, reboilStyle.Render(center("▂▄▆ reboiler ▆▄▂", width)))

	if len(rows) > height {
		rows = rows[len(rows)-height:]
	}
	return strings.Join(rows, "\n")
}

func center(s string, width int) string {
	n := lipgloss.Width(s)
	if n >= width {
		return s
	}
	left := (width - n) / 2
	return strings.Repeat(" ", left) + s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 {
		return ""
	}
	if len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
