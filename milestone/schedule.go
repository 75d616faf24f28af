/*
schedule.go - Baseline milestone placement

PURPOSE:
  Decides HOW MANY milestones a goal gets and WHERE they fall.

  The count comes from interval math: the goal span divided by the
  curve-weighted average interval, so the density matches what the user
  actually does today and wants to do at the end.

  The placement is normalized: each milestone gets a weight (its interval
  on the curve), and positions are the cumulative weight share of the span.
  Weights only control relative spacing, so the schedule always ends
  exactly at the deadline whatever the curve shape.

EXAMPLE:
  Reduce 20/week → 5/week over one week:
    first = 8.4h, last = 33.6h, curve = power
    average ≈ 16.8h → 10 milestones
    gaps grow from ≈8h at the start to ≈33h at the end

SEE ALSO:
  - interval.go: First/last/average intervals
  - reconcile.go: Regenerates the tail of this schedule
*/
package milestone

import (
	"math"
	"time"
)

// Schedule is a baseline milestone schedule for a whole goal span.
type Schedule struct {
	Start      time.Time
	End        time.Time
	Model      IntervalModel
	Total      int
	Milestones []Milestone
}

// TotalMilestones is the goal span divided by the weighted average interval,
// rounded, and never less than one.
func TotalMilestones(g GoalSpec) int {
	return totalMilestones(g.CompletionPeriod(), NewIntervalModel(g))
}

func totalMilestones(span time.Duration, m IntervalModel) int {
	avg := weightedAverage(durationMs(m.First), durationMs(m.Last), m.Curve)
	if !(avg > 0) {
		return 1
	}
	n := int(math.Round(durationMs(span) / avg))
	if n < 1 {
		return 1
	}
	return n
}

// GenerateSchedule builds the baseline schedule over the full goal span.
func GenerateSchedule(g GoalSpec) (*Schedule, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	model := NewIntervalModel(g)
	start, end := g.Start(), g.End()
	total := totalMilestones(g.CompletionPeriod(), model)

	return &Schedule{
		Start:      start,
		End:        end,
		Model:      model,
		Total:      total,
		Milestones: GenerateTimestamps(start, end, total, model.First, model.Last, model.Curve),
	}, nil
}

// GenerateTimestamps places n milestones in (start, end].
//
// Milestone i gets weight first + (last-first)·curve(i/(n-1)) and lands at
// the cumulative weight share of the span. The result is strictly
// increasing, the first milestone is after start and the last is exactly
// end. Timestamps have millisecond resolution, so n is capped at the span
// length in milliseconds. Returns nil when n < 1 or end is not after start.
func GenerateTimestamps(start, end time.Time, n int, first, last time.Duration, curve CurveKind) []Milestone {
	startMs, endMs := start.UnixMilli(), end.UnixMilli()
	span := endMs - startMs
	if n < 1 || span <= 0 {
		return nil
	}
	if int64(n) > span {
		n = int(span)
	}

	f, l := durationMs(first), durationMs(last)
	curve = ResolveCurve(curve, f, l)

	weights := make([]float64, n)
	var sum float64
	for i := range weights {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		w := weight(f, l, curve, t)
		if !(w > 0) {
			w = 1
		}
		weights[i] = w
		sum += w
	}

	stamps := make([]int64, n)
	var cumulative float64
	for i, w := range weights {
		cumulative += w
		stamps[i] = startMs + int64(math.Round(float64(span)*cumulative/sum))
	}
	enforceStrictOrder(stamps, startMs, endMs)

	out := make([]Milestone, n)
	prev := startMs
	for i, ts := range stamps {
		out[i] = Milestone{
			At:       time.UnixMilli(ts).UTC(),
			Index:    i + 1,
			Total:    n,
			Interval: time.Duration(ts-prev) * time.Millisecond,
			Progress: float64(i+1) / float64(n),
			Status:   StatusUpcoming,
		}
		prev = ts
	}
	return out
}

// enforceStrictOrder repairs collisions introduced by millisecond rounding.
// The last stamp is pinned to endMs; with len(stamps) <= endMs-startMs every
// stamp stays after startMs.
func enforceStrictOrder(stamps []int64, startMs, endMs int64) {
	prev := startMs
	for i := range stamps {
		if stamps[i] <= prev {
			stamps[i] = prev + 1
		}
		prev = stamps[i]
	}
	stamps[len(stamps)-1] = endMs
	for i := len(stamps) - 2; i >= 0; i-- {
		if stamps[i] >= stamps[i+1] {
			stamps[i] = stamps[i+1] - 1
		}
	}
}

// reindex renumbers a concatenated milestone list so Index, Total and
// Progress describe the list itself.
func reindex(ms []Milestone) {
	total := len(ms)
	for i := range ms {
		ms[i].Index = i + 1
		ms[i].Total = total
		ms[i].Progress = float64(i+1) / float64(total)
	}
}
