/*
status.go - Milestone and track status evaluation

PURPOSE:
  Annotates a reconciled schedule: every past milestone is marked completed
  or missed, future ones stay upcoming, and the overall pace is summarized
  as on-track, behind or ahead.

MILESTONE STATUS (past milestones only):
  actionsBeforeThis = relevant actions at or before the milestone
  Reduce:   completed if actionsBeforeThis <= Index (stayed within allowance)
  Increase: completed if actionsBeforeThis >= Index (met required progress)

TRACK STATUS:
  Reduce:   diff = actionCount - milestonesPassedByTime
  Increase: diff = milestonesPassedByTime - actionCount
  diff > 0 → behind(diff), diff < 0 → ahead(|diff|), 0 → on-track

  Terminal states take precedence:
  - Reduce goal with more actions than milestones → exceeded
  - Reduce goal past its deadline within allowance → completed
  - Increase goal with every milestone earned → completed

GOAL LIFECYCLE:
  active → {on-track, behind, ahead} → completed | exceeded
  active → abandoned (set by the goal collaborator, never by the engine)
*/
package milestone

import "time"

// =============================================================================
// TRACK STATUS
// =============================================================================

type TrackState string

const (
	TrackOnTrack  TrackState = "on_track"
	TrackBehind   TrackState = "behind"
	TrackAhead    TrackState = "ahead"
	TrackExceeded TrackState = "exceeded"
	TrackComplete TrackState = "completed"
)

// Terminal reports whether the state ends the goal.
func (s TrackState) Terminal() bool {
	return s == TrackExceeded || s == TrackComplete
}

// TrackStatus summarizes pace. Count is how many milestones behind/ahead,
// or for exceeded how many actions over the allowance.
type TrackStatus struct {
	State TrackState
	Count int
}

// GoalState is the lifecycle state of a goal as stored by collaborators.
type GoalState string

const (
	GoalActive    GoalState = "active"
	GoalCompleted GoalState = "completed"
	GoalExceeded  GoalState = "exceeded"
	GoalAbandoned GoalState = "abandoned"
)

// GoalStateFor maps a terminal track state to the goal state it implies.
// Non-terminal states keep the goal active.
func GoalStateFor(s TrackState) GoalState {
	switch s {
	case TrackExceeded:
		return GoalExceeded
	case TrackComplete:
		return GoalCompleted
	}
	return GoalActive
}

// EvaluateTrack classifies pace from the action count and the number of
// milestones already passed by time.
func EvaluateTrack(dir Direction, actionCount, passed, total int, complete bool) TrackStatus {
	var diff int
	switch dir {
	case DirectionIncrease:
		if actionCount >= total {
			return TrackStatus{State: TrackComplete}
		}
		diff = passed - actionCount
	default:
		if actionCount > total {
			return TrackStatus{State: TrackExceeded, Count: actionCount - total}
		}
		if complete || actionCount == total {
			return TrackStatus{State: TrackComplete}
		}
		diff = actionCount - passed
	}

	switch {
	case diff > 0:
		return TrackStatus{State: TrackBehind, Count: diff}
	case diff < 0:
		return TrackStatus{State: TrackAhead, Count: -diff}
	}
	return TrackStatus{State: TrackOnTrack}
}

// MarkMilestones sets Status on every milestone: past ones completed or
// missed by direction, future ones upcoming. actionTimes must be sorted.
func MarkMilestones(ms []Milestone, dir Direction, actionTimes []time.Time, now time.Time) {
	for i := range ms {
		m := &ms[i]
		if !m.IsPast(now) {
			m.Status = StatusUpcoming
			continue
		}
		before := countAtOrBefore(actionTimes, m.At)
		ok := before <= m.Index
		if dir == DirectionIncrease {
			ok = before > m.Index
		}
		if ok {
			m.Status = StatusCompleted
		} else {
			m.Status = StatusMissed
		}
	}
}

// =============================================================================
// EVALUATION - The whole pipeline
// =============================================================================

// Evaluation is everything a rendering layer needs for one goal at one instant.
type Evaluation struct {
	GoalID    string
	Direction Direction
	Now       time.Time

	Milestones []Milestone
	Track      TrackStatus

	TotalMilestones        int
	ActionCount            int
	MilestonesPassedByTime int
	Remaining              int

	Model           IntervalModel
	CurrentInterval time.Duration
	Exhausted       bool
	Complete        bool
}

// Evaluate runs the full pipeline: baseline, reconciliation, statuses and summary.
// The only error is an invalid goal.
func Evaluate(g GoalSpec, actions []ActionRecord, now time.Time) (*Evaluation, error) {
	baseline, err := GenerateSchedule(g)
	if err != nil {
		return nil, err
	}
	times := RelevantActionTimes(g, actions, now)
	r := reconcile(baseline, times, now)
	dir := g.ResolvedDirection()

	// The regenerated tail stays upcoming; only milestones passed on the
	// baseline are judged.
	MarkMilestones(r.Milestones[:r.MilestonesPassedByTime], dir, times, now)

	return &Evaluation{
		GoalID:                 g.ID,
		Direction:              dir,
		Now:                    now,
		Milestones:             r.Milestones,
		Track:                  EvaluateTrack(dir, r.ActionCount, r.MilestonesPassedByTime, r.TotalMilestones, r.Complete),
		TotalMilestones:        r.TotalMilestones,
		ActionCount:            r.ActionCount,
		MilestonesPassedByTime: r.MilestonesPassedByTime,
		Remaining:              r.Remaining,
		Model:                  baseline.Model,
		CurrentInterval:        r.CurrentInterval,
		Exhausted:              r.Exhausted,
		Complete:               r.Complete,
	}, nil
}

// State is the goal lifecycle state this evaluation implies.
func (e *Evaluation) State() GoalState {
	return GoalStateFor(e.Track.State)
}
