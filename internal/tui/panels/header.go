// Package panels renders the fixed panels of the colmon dashboard. Props
// carry plain strings so the package does not import its parent.
package panels

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// HeaderProps holds all data needed to render the header bar.
type HeaderProps struct {
	Source      string // active source name, "" when idle
	StateSymbol string // e.g. "●", "▶", "⏸"
	StateLabel  string // e.g. "LIVE", "IDLE", "PAUSED"
	Plates      int
	Elapsed     string // MM:SS since the session anchor
	Recording   string // path of the live recording, if any
	Clock       time.Time
}

// AbbreviatePath returns a display-friendly path, replacing the home directory
// with "~" and converting backslashes to forward slashes.
func AbbreviatePath(path string) string {
	if path == "" {
		return ""
	}
	if home, err := os.UserHomeDir(); err == nil && strings.HasPrefix(path, home) {
		path = "~" + path[len(home):]
	}
	return strings.ReplaceAll(path, "\\", "/")
}

// RenderHeader renders the header bar. accentStyle is applied to the full
// header width.
func RenderHeader(props HeaderProps, width int, accentStyle lipgloss.Style) string {
	src := props.Source
	if src == "" {
		src = "—"
	}

	parts := []string{"⚗ colmon"}
	if props.StateLabel != "" {
		state := props.StateLabel
		if props.StateSymbol != "" {
			state = props.StateSymbol + " " + state
		}
		parts = append(parts, state)
	}
	parts = append(parts,
		"source: "+src,
		fmt.Sprintf("plates: %d", props.Plates),
	)
	if props.Elapsed != "" {
		parts = append(parts, "elapsed: "+props.Elapsed)
	}
	if props.Recording != "" {
		parts = append(parts, "rec: "+AbbreviatePath(props.Recording))
	}
	if !props.Clock.IsZero() {
		parts = append(parts, props.Clock.Format("15:04:05"))
	}

	return accentStyle.Width(width).MaxHeight(1).Render(strings.Join(parts, "  │  "))
}
