package source

import (
	"errors"
	"math"
)

// AtmosphericPressure is the column operating pressure in mmHg.
const AtmosphericPressure = 760.0

const (
	newtonStart    = 0.5
	newtonTol      = 1e-6
	newtonMaxIter  = 1000
	derivativeStep = 1e-7
)

// ErrNoSolution is returned when a temperature lies outside the two-phase
// region of the ethanol-water mixture.
var ErrNoSolution = errors.New("source: no bubble point at temperature")

// antoine holds the coefficients of log10(P[mmHg]) = A - B/(C + T[°C]).
type antoine struct{ a, b, c float64 }

func (k antoine) pressure(t float64) float64 {
	return math.Pow(10, k.a-k.b/(k.c+t))
}

var (
	ethanol = antoine{8.20417, 1642.89, 230.300}
	water   = antoine{8.07131, 1730.63, 233.426}
)

// van Laar constants for ethanol (1) and water (2).
const (
	vanLaar12 = 1.6798
	vanLaar21 = 0.9227
)

func activity(x float64) (g1, g2 float64) {
	x1, x2 := x, 1-x
	d := vanLaar12*x1 + vanLaar21*x2
	g1 = math.Exp(vanLaar12 * math.Pow(vanLaar21*x2/d, 2))
	g2 = math.Exp(vanLaar21 * math.Pow(vanLaar12*x1/d, 2))
	return g1, g2
}

// bubbleResidual is P_bubble(x, t) - P for liquid ethanol mole fraction x.
func bubbleResidual(x, t float64) float64 {
	g1, g2 := activity(x)
	return x*g1*ethanol.pressure(t) + (1-x)*g2*water.pressure(t) - AtmosphericPressure
}

// Composition returns the liquid ethanol mole fraction of a plate at
// temperature t (°C). It solves the bubble-point condition with a Newton
// iteration kept inside the [0, 1] bracket. At or above the boiling point of
// water the liquid is pure water.
func Composition(t float64) (float64, error) {
	lo, hi := 0.0, 1.0
	if math.IsNaN(t) {
		return 0, ErrNoSolution
	}
	if bubbleResidual(lo, t) >= 0 {
		return 0, nil
	}
	if bubbleResidual(hi, t) <= 0 {
		return 0, ErrNoSolution
	}

	x := newtonStart
	for i := 0; i < newtonMaxIter; i++ {
		fx := bubbleResidual(x, t)
		if fx < 0 {
			lo = x
		} else {
			hi = x
		}

		a, b := math.Max(x-derivativeStep, 0), math.Min(x+derivativeStep, 1)
		d := (bubbleResidual(b, t) - bubbleResidual(a, t)) / (b - a)

		next := (lo + hi) / 2
		if d != 0 {
			if n := x - fx/d; n > lo && n < hi {
				next = n
			}
		}
		if math.Abs(next-x) < newtonTol {
			return next, nil
		}
		x = next
	}
	return 0, ErrNoSolution
}

// Compositions maps plate temperatures to compositions. A plate without a
// solution repeats the previous plate's value, or 0 for the first plate.
func Compositions(temps []float64) []float64 {
	out := make([]float64, len(temps))
	prev := 0.0
	for i, t := range temps {
		x, err := Composition(t)
		if err != nil {
			x = prev
		}
		out[i] = x
		prev = x
	}
	return out
}
