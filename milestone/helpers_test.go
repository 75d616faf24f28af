package milestone_test

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/milestone-engine/milestone"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var created = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

func countGoal(current, goal int64, measurementDays, completionDays float64) milestone.GoalSpec {
	return milestone.GoalSpec{
		ID:                    "goal-1",
		Unit:                  milestone.UnitCount,
		CurrentAmount:         decimal.NewFromInt(current),
		GoalAmount:            decimal.NewFromInt(goal),
		MeasurementPeriodDays: measurementDays,
		CompletionPeriodDays:  completionDays,
		CreatedAt:             created,
	}
}

// scenarioA: cut from 20/week to 5/week within a week.
func scenarioA() milestone.GoalSpec {
	return countGoal(20, 5, 7, 7)
}

// scenarioD: grow from 2/week to 14/week over four weeks.
func scenarioD() milestone.GoalSpec {
	return countGoal(2, 14, 7, 28)
}

func action(at time.Time) milestone.ActionRecord {
	return milestone.ActionRecord{
		ID:           at.Format(time.RFC3339Nano),
		TimestampSec: float64(at.UnixMilli()) / 1000,
		Type:         "did_it",
	}
}

// actionsEvery logs n actions, one every step, starting at from.
func actionsEvery(from time.Time, step time.Duration, n int) []milestone.ActionRecord {
	out := make([]milestone.ActionRecord, n)
	for i := range out {
		out[i] = action(from.Add(time.Duration(i) * step))
	}
	return out
}

func passedBy(ms []milestone.Milestone, now time.Time) int {
	n := 0
	for _, m := range ms {
		if !m.At.After(now) {
			n++
		}
	}
	return n
}
