package engine

import "testing"

func TestCurveEndpoints(t *testing.T) {
	curves := []Curve{"", CurveLinear, CurveExponential, CurveLogarithmic, CurveSCurve}
	for _, c := range curves {
		if got := c.Apply(0); got != 0 {
			t.Fatalf("%s: Apply(0) = %v, want 0", c, got)
		}
		if got := c.Apply(1); got != 1 {
			t.Fatalf("%s: Apply(1) = %v, want 1", c, got)
		}
	}
}

func TestCurveMonotonic(t *testing.T) {
	curves := []Curve{CurveLinear, CurveExponential, CurveLogarithmic, CurveSCurve}
	const steps = 1000
	for _, c := range curves {
		prev := c.Apply(0)
		for i := 1; i <= steps; i++ {
			p := float64(i) / steps
			v := c.Apply(p)
			if v < prev {
				t.Fatalf("%s: not monotonic at p=%v (%v < %v)", c, p, v, prev)
			}
			if v < 0 || v > 1 {
				t.Fatalf("%s: out of range at p=%v: %v", c, p, v)
			}
			prev = v
		}
	}
}

func TestCurveClampsOutOfRangeProgress(t *testing.T) {
	if got := CurveSCurve.Apply(-0.5); got != 0 {
		t.Fatalf("Apply(-0.5) = %v, want 0", got)
	}
	if got := CurveSCurve.Apply(1.5); got != 1 {
		t.Fatalf("Apply(1.5) = %v, want 1", got)
	}
}

func TestCurveValid(t *testing.T) {
	if !Curve("").Valid() {
		t.Fatal("empty curve should be valid (treated as linear)")
	}
	if Curve("bounce").Valid() {
		t.Fatal("unknown curve should be invalid")
	}
}
