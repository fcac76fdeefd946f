package tui

import "testing"

func TestCalculate(t *testing.T) {
	tests := []struct {
		name     string
		width    int
		height   int
		sidebarW int
		rightW   int
		columnH  int
		compH    int
		chartH   int
		eventsH  int
	}{
		{
			name:  "80x24 minimum viable",
			width: 80, height: 24,
			sidebarW: 26, // 80*30/100=24, clamped up
			rightW:   54,
			columnH:  13, // 22*60/100
			compH:    9,
			chartH:   14, // 22*65/100
			eventsH:  8,
		},
		{
			name:  "120x40",
			width: 120, height: 40,
			sidebarW: 36,
			rightW:   84,
			columnH:  22,
			compH:    16,
			chartH:   24,
			eventsH:  14,
		},
		{
			name:  "200x60",
			width: 200, height: 60,
			sidebarW: 40, // clamped down
			rightW:   160,
			columnH:  34,
			compH:    24,
			chartH:   37,
			eventsH:  21,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Calculate(tt.width, tt.height)
			if l.TooSmall {
				t.Fatal("unexpected TooSmall")
			}
			if l.Header != (Rect{0, 0, tt.width, 1}) {
				t.Errorf("Header = %+v", l.Header)
			}
			if l.Footer != (Rect{0, tt.height - 1, tt.width, 1}) {
				t.Errorf("Footer = %+v", l.Footer)
			}
			if l.Column != (Rect{0, 1, tt.sidebarW, tt.columnH}) {
				t.Errorf("Column = %+v", l.Column)
			}
			if l.Composition != (Rect{0, 1 + tt.columnH, tt.sidebarW, tt.compH}) {
				t.Errorf("Composition = %+v", l.Composition)
			}
			if l.Chart != (Rect{tt.sidebarW, 1, tt.rightW, tt.chartH}) {
				t.Errorf("Chart = %+v", l.Chart)
			}
			if l.Events != (Rect{tt.sidebarW, 1 + tt.chartH, tt.rightW, tt.eventsH}) {
				t.Errorf("Events = %+v", l.Events)
			}
		})
	}
}

func TestCalculate_TooSmall(t *testing.T) {
	for _, sz := range [][2]int{{79, 24}, {80, 23}, {0, 0}} {
		if l := Calculate(sz[0], sz[1]); !l.TooSmall {
			t.Errorf("Calculate(%d, %d) should be TooSmall", sz[0], sz[1])
		}
	}
}

func TestInnerDims(t *testing.T) {
	w, h := innerDims(Rect{Width: 10, Height: 5})
	if w != 8 || h != 3 {
		t.Errorf("innerDims = %d,%d", w, h)
	}
	w, h = innerDims(Rect{Width: 1, Height: 2})
	if w != 1 || h != 1 {
		t.Errorf("innerDims clamps to 1, got %d,%d", w, h)
	}
}
