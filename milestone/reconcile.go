/*
reconcile.go - Self-correcting schedule tail

PURPOSE:
  The baseline schedule is the plan. Once time has passed and actions are
  logged, the remaining part of the schedule should reflect what actually
  happened. Each relevant action consumes one milestone slot:
    - Reduce goals: an action is usage against the allowance
    - Increase goals: an action is progress earned

PROCESS:
  1. Generate the baseline for the full goal span
  2. Boundary = last baseline milestone at or before now (or goal start)
  3. actionCount = relevant actions since goal start
  4. remaining = max(0, total - actionCount)
  5. remaining == 0 or now >= end: nothing left to schedule
  6. Otherwise regenerate [boundary, end] with `remaining` milestones,
     starting from first/last blended by the elapsed fraction of the goal
  7. Result = baseline milestones up to the boundary + fresh tail

  Acting faster than planned compresses or stretches the tail, but the
  schedule never runs past the original deadline.

IDEMPOTENCE:
  Reconcile is a pure function. The same (goal, actions, now) always gives
  the same result, so callers may recompute on every render.

SEE ALSO:
  - schedule.go: GenerateTimestamps used for both baseline and tail
  - status.go: Annotates the reconciled list
*/
package milestone

import "time"

// Reconciliation is a baseline schedule with its tail rebuilt from now.
type Reconciliation struct {
	Baseline *Schedule

	// Milestones is the reconciled list: past baseline milestones followed by
	// the regenerated tail. Index/Total/Progress describe this list.
	Milestones []Milestone

	// TotalMilestones is the baseline count derived from the interval model.
	TotalMilestones int

	ActionCount            int
	MilestonesPassedByTime int
	Remaining              int

	// Boundary is the last baseline milestone at or before now, or the goal start.
	Boundary time.Time

	// CurrentInterval blends the first and last intervals by elapsed time; the tail starts from it.
	CurrentInterval time.Duration

	// Exhausted is true when actions have used up every milestone slot.
	Exhausted bool

	// Complete is true once now has reached the goal deadline.
	Complete bool
}

// Reconcile rebuilds the unconsumed tail of g's schedule from the actions
// logged up to now.
func Reconcile(g GoalSpec, actions []ActionRecord, now time.Time) (*Reconciliation, error) {
	baseline, err := GenerateSchedule(g)
	if err != nil {
		return nil, err
	}
	return reconcile(baseline, RelevantActionTimes(g, actions, now), now), nil
}

func reconcile(baseline *Schedule, actionTimes []time.Time, now time.Time) *Reconciliation {
	passed := 0
	boundary := baseline.Start
	for _, m := range baseline.Milestones {
		if !m.IsPast(now) {
			break
		}
		passed++
		boundary = m.At
	}

	actionCount := len(actionTimes)
	remaining := baseline.Total - actionCount
	if remaining < 0 {
		remaining = 0
	}

	r := &Reconciliation{
		Baseline:               baseline,
		TotalMilestones:        baseline.Total,
		ActionCount:            actionCount,
		MilestonesPassedByTime: passed,
		Remaining:              remaining,
		Boundary:               boundary,
		CurrentInterval:        baseline.Model.IntervalAt(elapsedFraction(baseline.Start, baseline.End, now)),
		Exhausted:              remaining == 0,
		Complete:               !now.Before(baseline.End),
	}

	ms := make([]Milestone, 0, passed+remaining)
	ms = append(ms, baseline.Milestones[:passed]...)
	if !r.Exhausted && !r.Complete {
		tail := GenerateTimestamps(boundary, baseline.End, remaining,
			r.CurrentInterval, baseline.Model.Last, baseline.Model.Curve)
		ms = append(ms, tail...)
	}
	reindex(ms)
	r.Milestones = ms
	return r
}

func elapsedFraction(start, end, now time.Time) float64 {
	span := end.Sub(start)
	if span <= 0 {
		return 1
	}
	return clamp01(float64(now.Sub(start)) / float64(span))
}
