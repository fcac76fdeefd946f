package tui

// Rect represents a rectangular region of the terminal.
type Rect struct {
	X, Y, Width, Height int
}

// Layout holds the computed panel geometry for a given terminal size.
type Layout struct {
	Header, Footer      Rect
	Column, Composition Rect
	Chart, Events       Rect
	TooSmall            bool // true when terminal is below the minimum 80×24
}

// Calculate computes the panel layout for a terminal of the given dimensions.
//
//   - Header: full width, 1 row at top
//   - Footer: full width, 1 row at bottom
//   - Sidebar: 30% of width, clamped to [26, 40]
//   - Column: sidebar width × 60% of body height
//   - Composition: sidebar width × remaining body height
//   - Chart: remaining width × 65% of body height
//   - Events: remaining width × remaining body height
func Calculate(width, height int) Layout {
	if width < 80 || height < 24 {
		return Layout{TooSmall: true}
	}

	bodyH := height - 2

	sidebarW := width * 30 / 100
	if sidebarW < 26 {
		sidebarW = 26
	}
	if sidebarW > 40 {
		sidebarW = 40
	}
	rightW := width - sidebarW

	columnH := bodyH * 60 / 100
	compH := bodyH - columnH

	chartH := bodyH * 65 / 100
	eventsH := bodyH - chartH

	return Layout{
		Header:      Rect{X: 0, Y: 0, Width: width, Height: 1},
		Footer:      Rect{X: 0, Y: height - 1, Width: width, Height: 1},
		Column:      Rect{X: 0, Y: 1, Width: sidebarW, Height: columnH},
		Composition: Rect{X: 0, Y: 1 + columnH, Width: sidebarW, Height: compH},
		Chart:       Rect{X: sidebarW, Y: 1, Width: rightW, Height: chartH},
		Events:      Rect{X: sidebarW, Y: 1 + chartH, Width: rightW, Height: eventsH},
	}
}

// innerDims returns the content dimensions for a panel rect accounting for
// the 1-character border on each side.
func innerDims(r Rect) (w, h int) {
	w = r.Width - 2
	if w < 1 {
		w = 1
	}
	h = r.Height - 2
	if h < 1 {
		h = 1
	}
	return
}
