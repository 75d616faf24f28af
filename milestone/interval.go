package milestone

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INTERVAL MODEL - Per-event spacing at the start and end of a goal
// =============================================================================

// AverageSamples is the number of uniform samples used to average a curve.
const AverageSamples = 100

// IntervalModel holds the derived interval bounds for a goal.
//
// First is the gap between events at the current amount, Last the gap at the
// goal amount. Reduce goals have First < Last, increase goals First > Last.
type IntervalModel struct {
	First time.Duration
	Last  time.Duration
	Curve CurveKind // always resolved, never CurveAuto
}

// Normalize divides an amount by the chunk size (rounded) when one is set.
func Normalize(amount, chunkSize decimal.Decimal) float64 {
	if chunkSize.IsPositive() {
		v, _ := amount.Div(chunkSize).Round(0).Float64()
		return v
	}
	v, _ := amount.Float64()
	return v
}

// intervalFor returns the per-event interval in milliseconds. Amounts below
// one (including zero) count as one so the division is always defined.
func intervalFor(period time.Duration, amount, chunkSize decimal.Decimal) float64 {
	return durationMs(period) / math.Max(1, Normalize(amount, chunkSize))
}

// FirstInterval is the measurement period divided by the current amount.
func FirstInterval(g GoalSpec) time.Duration {
	return msDuration(intervalFor(g.MeasurementPeriod(), g.CurrentAmount, g.ChunkSize))
}

// LastInterval is the measurement period divided by the goal amount.
func LastInterval(g GoalSpec) time.Duration {
	return msDuration(intervalFor(g.MeasurementPeriod(), g.GoalAmount, g.ChunkSize))
}

// NewIntervalModel derives the interval bounds for a goal and resolves its curve.
func NewIntervalModel(g GoalSpec) IntervalModel {
	first := FirstInterval(g)
	last := LastInterval(g)
	return IntervalModel{
		First: first,
		Last:  last,
		Curve: ResolveCurve(g.Curve, durationMs(first), durationMs(last)),
	}
}

// IntervalAt blends First and Last linearly by normalized goal time t.
// The curve shapes the spacing of a schedule, not this blend.
func (m IntervalModel) IntervalAt(t float64) time.Duration {
	return msDuration(weight(durationMs(m.First), durationMs(m.Last), CurveLinear, t))
}

// Average returns the model's weighted average interval.
func (m IntervalModel) Average() time.Duration {
	return WeightedAverageInterval(m.First, m.Last, m.Curve)
}

// WeightedAverageInterval is the mean of first + (last-first)·curve(t) over
// AverageSamples uniform samples of t in [0,1]. For CurveLinear this equals
// (first+last)/2.
func WeightedAverageInterval(first, last time.Duration, curve CurveKind) time.Duration {
	return msDuration(weightedAverage(durationMs(first), durationMs(last), curve))
}

func weightedAverage(first, last float64, curve CurveKind) float64 {
	var sum float64
	for i := 0; i < AverageSamples; i++ {
		t := float64(i) / float64(AverageSamples-1)
		sum += weight(first, last, curve, t)
	}
	return sum / AverageSamples
}

func weight(first, last float64, curve CurveKind, t float64) float64 {
	return first + (last-first)*curve.Apply(t)
}

// =============================================================================
// MILLISECOND HELPERS
// =============================================================================

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func msDuration(ms float64) time.Duration {
	return time.Duration(math.Round(ms * float64(time.Millisecond)))
}
