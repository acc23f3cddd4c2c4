package geometry

import (
	"fmt"
	"math"
	"strings"
)

// Interval is a closed range [Lo, Hi]. Either bound may be infinite.
type Interval struct {
	Lo, Hi float64
}

// Unbounded returns the interval covering all reals.
func Unbounded() Interval {
	return Interval{math.Inf(-1), math.Inf(1)}
}

// PositiveRange returns [0, +inf).
func PositiveRange() Interval {
	return Interval{0, math.Inf(1)}
}

func (i Interval) Contains(x float64) bool {
	return x >= i.Lo && x <= i.Hi
}

func (i Interval) Clamp(x float64) float64 {
	return math.Max(i.Lo, math.Min(i.Hi, x))
}

func (i Interval) Size() float64 { return i.Hi - i.Lo }

func (i Interval) IsUnbounded() bool {
	return math.IsInf(i.Lo, -1) && math.IsInf(i.Hi, 1)
}

func (i Interval) String() string {
	return formatBound(i.Lo) + " " + formatBound(i.Hi)
}

func formatBound(x float64) string {
	switch {
	case math.IsInf(x, 1):
		return "infinity"
	case math.IsInf(x, -1):
		return "-infinity"
	default:
		return fmt.Sprintf("%v", x)
	}
}

// ParseBound parses a single interval bound, accepting the literals
// "infinity" and "-infinity".
func ParseBound(s string) (float64, error) {
	switch strings.TrimSpace(s) {
	case "infinity":
		return math.Inf(1), nil
	case "-infinity":
		return math.Inf(-1), nil
	}
	var x float64
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%g", &x); err != nil {
		return 0, fmt.Errorf("invalid interval bound %q", s)
	}
	return x, nil
}

// ClampWithDerivative clamps x to r and zeroes the derivative when the value
// sits on a bound, so that integration does not push it further out.
func ClampWithDerivative(x, dx float64, r Interval) (float64, float64) {
	clamped := r.Clamp(x)
	if clamped != x {
		return clamped, 0
	}
	return x, dx
}
