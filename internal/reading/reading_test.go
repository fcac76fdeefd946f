package reading

import "testing"

func TestTemperature_OutOfRange(t *testing.T) {
	r := Reading{Temperatures: []float64{78.1, 80.2}}

	if v, ok := r.Temperature(1); !ok || v != 80.2 {
		t.Errorf("Temperature(1) = %v, %v; want 80.2, true", v, ok)
	}
	for _, i := range []int{-1, 2, 10} {
		if _, ok := r.Temperature(i); ok {
			t.Errorf("Temperature(%d) should be absent", i)
		}
	}
}

func TestComposition_Empty(t *testing.T) {
	r := Reading{Temperatures: []float64{78.1}}
	if _, ok := r.Composition(0); ok {
		t.Error("Composition(0) on empty compositions should be absent")
	}
}

func TestComplete(t *testing.T) {
	tests := []struct {
		frac float64
		want bool
	}{
		{0, false},
		{99.9, false},
		{100, true},
		{100.5, true},
	}
	for _, tt := range tests {
		r := Reading{CompletionFraction: tt.frac}
		if got := r.Complete(); got != tt.want {
			t.Errorf("Complete() with %v = %v, want %v", tt.frac, got, tt.want)
		}
	}
}

func TestClone_DoesNotAlias(t *testing.T) {
	orig := Reading{Temperatures: []float64{1, 2}, Compositions: []float64{0.5}}
	c := orig.Clone()
	c.Temperatures[0] = 99
	c.Compositions[0] = 0.1

	if orig.Temperatures[0] != 1 {
		t.Errorf("clone aliased temperatures: orig[0] = %v", orig.Temperatures[0])
	}
	if orig.Compositions[0] != 0.5 {
		t.Errorf("clone aliased compositions: orig[0] = %v", orig.Compositions[0])
	}
}
