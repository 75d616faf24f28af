package milestone

import (
	"fmt"
	"math"
)

// =============================================================================
// CURVE - Interval shape over normalized goal time
// =============================================================================

// CurveKind selects how intervals move from the first interval to the last.
// It is a closed set; Apply switches over every member.
type CurveKind int

const (
	// CurveAuto is resolved from the interval model before any math runs.
	CurveAuto CurveKind = iota
	CurveLinear
	// CurvePower eases in: short intervals early, long later (reduce goals).
	CurvePower
	// CurvePowerOut eases out: long intervals early, short later (increase goals).
	CurvePowerOut
	// CurveSigmoid is slow-fast-slow, for smooth blending.
	CurveSigmoid
)

const sigmoidSteepness = 10.0

var (
	sigmoidLow  = rawSigmoid(0)
	sigmoidHigh = rawSigmoid(1)
)

func rawSigmoid(t float64) float64 {
	return 1 / (1 + math.Exp(-sigmoidSteepness*(t-0.5)))
}

// Apply maps t ∈ [0,1] to [0,1]. Apply(0) = 0 and Apply(1) = 1 for every kind.
//
// The logistic curve never reaches its asymptotes (≈0.0067 and ≈0.9933 at
// the endpoints), so the sigmoid is rescaled between its endpoint values to
// hit 0 and 1 exactly.
func (k CurveKind) Apply(t float64) float64 {
	t = clamp01(t)
	switch k {
	case CurveLinear, CurveAuto:
		return t
	case CurvePower:
		return t * t
	case CurvePowerOut:
		return 1 - (1-t)*(1-t)
	case CurveSigmoid:
		return clamp01((rawSigmoid(t) - sigmoidLow) / (sigmoidHigh - sigmoidLow))
	default:
		panic(fmt.Sprintf("milestone: unknown curve kind %d", int(k)))
	}
}

// Valid reports whether k is a member of the closed set.
func (k CurveKind) Valid() bool {
	return k >= CurveAuto && k <= CurveSigmoid
}

func (k CurveKind) String() string {
	switch k {
	case CurveAuto:
		return "auto"
	case CurveLinear:
		return "linear"
	case CurvePower:
		return "power"
	case CurvePowerOut:
		return "powerOut"
	case CurveSigmoid:
		return "sigmoid"
	}
	return fmt.Sprintf("CurveKind(%d)", int(k))
}

// ParseCurveKind parses a curve name. The empty string is CurveAuto.
func ParseCurveKind(s string) (CurveKind, error) {
	switch s {
	case "", "auto":
		return CurveAuto, nil
	case "linear":
		return CurveLinear, nil
	case "power", "ease_in":
		return CurvePower, nil
	case "powerOut", "power_out", "ease_out":
		return CurvePowerOut, nil
	case "sigmoid":
		return CurveSigmoid, nil
	}
	return CurveAuto, &GoalValidationError{Field: "curve", Reason: fmt.Sprintf("unknown curve %q", s)}
}

// ResolveCurve picks the curve for a goal. An explicit curve wins; otherwise
// power when intervals grow (reduce pacing: get harder over time) and
// powerOut when they shrink (increase pacing: get easier as the streak builds).
// Equal intervals give a uniform schedule whatever the curve, so linear is used.
func ResolveCurve(explicit CurveKind, first, last float64) CurveKind {
	if explicit != CurveAuto {
		return explicit
	}
	switch {
	case last > first:
		return CurvePower
	case last < first:
		return CurvePowerOut
	default:
		return CurveLinear
	}
}

func clamp01(t float64) float64 {
	switch {
	case math.IsNaN(t), t < 0:
		return 0
	case t > 1:
		return 1
	}
	return t
}
