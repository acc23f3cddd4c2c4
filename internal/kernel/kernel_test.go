package kernel

import (
	"math"
	"testing"
)

func TestCubicSplineNormalised(t *testing.T) {
	k := CubicSpline{}
	h := 1.5
	// integrate W over its support with the midpoint rule
	const steps = 10000
	rmax := k.Radius() * h
	dr := rmax / steps
	sum := 0.0
	for i := 0; i < steps; i++ {
		r := (float64(i) + 0.5) * dr
		sum += k.Value(r, h) * 4 * math.Pi * r * r * dr
	}
	if math.Abs(sum-1) > 1e-4 {
		t.Errorf("kernel integral = %v", sum)
	}
}

func TestCubicSplineSupport(t *testing.T) {
	k := CubicSpline{}
	if k.Value(2.0001, 1) != 0 || k.Grad(2.0001, 1) != 0 {
		t.Error("kernel must vanish beyond the support radius")
	}
	if k.Value(1.9999, 1) <= 0 {
		t.Error("kernel must be positive inside the support")
	}
}

func TestCubicSplineGradientMatchesFiniteDifference(t *testing.T) {
	k := CubicSpline{}
	h := 2.0
	for _, r := range []float64{0.3, 0.9, 1.1, 2.5, 3.5} {
		eps := 1e-6
		fd := (k.Value(r+eps, h) - k.Value(r-eps, h)) / (2 * eps)
		got := k.Grad(r, h) * r
		if math.Abs(fd-got) > 1e-5*(math.Abs(fd)+1e-12)+1e-9 {
			t.Errorf("r=%v: grad*r = %v, finite difference = %v", r, got, fd)
		}
	}
}

func TestCubicSplineGradFiniteAtOrigin(t *testing.T) {
	k := CubicSpline{}
	g := k.Grad(0, 1)
	if math.IsInf(g, 0) || math.IsNaN(g) {
		t.Errorf("grad at origin = %v", g)
	}
	if g >= 0 {
		t.Errorf("grad must be negative near origin, got %v", g)
	}
}
