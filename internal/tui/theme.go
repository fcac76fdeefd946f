package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds accent-color-derived styles for the dashboard.
type Theme struct {
	accentStyle lipgloss.Style // header background
	accentFg    lipgloss.Style
	border      lipgloss.Style
	accentColor lipgloss.Color
}

// NewTheme creates a Theme from a hex accent color string (e.g. "#7D56F4").
// If accentColor is empty, the default accent color is used.
func NewTheme(accentColor string) Theme {
	color := defaultAccentColor
	if accentColor != "" {
		color = accentColor
	}
	c := lipgloss.Color(color)
	return Theme{
		accentStyle: lipgloss.NewStyle().
			Background(c).
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true),
		accentFg: lipgloss.NewStyle().
			Foreground(c),
		border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGray),
		accentColor: c,
	}
}

// AccentHeaderStyle returns the style for the header bar.
func (t Theme) AccentHeaderStyle() lipgloss.Style {
	return t.accentStyle
}

// PanelBorderStyle returns the border style shared by all panels.
func (t Theme) PanelBorderStyle() lipgloss.Style {
	return t.border
}

// Accent returns the configured accent color.
func (t Theme) Accent() lipgloss.Color {
	return t.accentColor
}

// RenderEvent renders one event-log entry as a single terminal line.
func (t Theme) RenderEvent(e Event, width int) string {
	ts := timestampStyle.Render(fmt.Sprintf("[%s]", e.At.Format("15:04:05")))

	text := e.Message
	maxText := width - 13
	if maxText < 20 {
		maxText = 20
	}
	if runes := []rune(text); len(runes) > maxText {
		text = string(runes[:maxText-1]) + "…"
	}

	switch e.Kind {
	case EventConnected:
		return fmt.Sprintf("%s  %s", ts, connectStyle.Render("● "+text))
	case EventReplayStarted:
		return fmt.Sprintf("%s  %s", ts, replayStyle.Render("▶ "+text))
	case EventPaused:
		return fmt.Sprintf("%s  %s", ts, pauseStyle.Render("⏸ "+text))
	case EventCompleted:
		return fmt.Sprintf("%s  %s", ts, resultStyle.Render("✓ "+text))
	case EventFailed, EventCommandError:
		return fmt.Sprintf("%s  %s", ts, errorStyle.Render("✗ "+text))
	case EventReset:
		return fmt.Sprintf("%s  %s", ts, resetStyle.Render("↺ "+text))
	case EventStopped:
		return fmt.Sprintf("%s  %s", ts, t.accentFg.Render("■ "+text))
	default:
		return fmt.Sprintf("%s  %s", ts, infoStyle.Render(text))
	}
}
