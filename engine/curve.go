package engine

import "math"

// Curve shapes the progress of a morph before the linear blend between
// start and target. Every curve is monotonic on [0,1] with f(0)=0 and
// f(1)=1, so a morph always lands exactly on its target value.
type Curve string

const (
	CurveLinear      Curve = "linear"
	CurveExponential Curve = "exponential"
	CurveLogarithmic Curve = "logarithmic"
	CurveSCurve      Curve = "s-curve"
)

// Valid reports whether c names a known curve. An empty curve is treated
// as linear everywhere, so it is valid too.
func (c Curve) Valid() bool {
	switch c {
	case "", CurveLinear, CurveExponential, CurveLogarithmic, CurveSCurve:
		return true
	}
	return false
}

// Apply maps a progress fraction in [0,1] through the curve.
func (c Curve) Apply(p float64) float64 {
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return 1
	}
	switch c {
	case CurveExponential:
		return p * p
	case CurveLogarithmic:
		return math.Sqrt(p)
	case CurveSCurve:
		// 3p^2 - 2p^3, flat at both endpoints
		return 3*p*p - 2*p*p*p
	default:
		return p
	}
}
