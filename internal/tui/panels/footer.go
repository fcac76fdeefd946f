package panels

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
)

// FooterProps holds all data needed to render the footer bar.
type FooterProps struct {
	Help   string // pre-rendered key help
	Status string // last command error, shown on the right
}

// RenderFooter renders key help on the left and the status on the right.
func RenderFooter(props FooterProps, width int) string {
	left := props.Help
	right := ""
	if props.Status != "" {
		right = statusStyle.Render(props.Status)
	}

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 2 {
		gap = 2
	}
	return footerStyle.Width(width).MaxHeight(1).Render(left + strings.Repeat(" ", gap) + right)
}
