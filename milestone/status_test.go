package milestone_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/milestone-engine/milestone"
)

// =============================================================================
// SCENARIOS
// =============================================================================

func TestEvaluate_ScenarioB_NothingYet_OnTrack(t *testing.T) {
	// GIVEN: A fresh goal, no actions
	// WHEN: Evaluated at the creation instant
	// THEN: Nothing passed, on track, every milestone upcoming

	ev, err := milestone.Evaluate(scenarioA(), nil, created)
	require.NoError(t, err)

	assert.Equal(t, 0, ev.MilestonesPassedByTime)
	assert.Equal(t, 0, ev.ActionCount)
	assert.Equal(t, milestone.TrackStatus{State: milestone.TrackOnTrack}, ev.Track)
	assert.Equal(t, milestone.GoalActive, ev.State())
	assert.Equal(t, 10, ev.TotalMilestones)
	for _, m := range ev.Milestones {
		assert.Equal(t, milestone.StatusUpcoming, m.Status)
	}
}

func TestEvaluate_ScenarioC_ReduceGoalExceeded(t *testing.T) {
	// GIVEN: Reduce goal with 10 milestones
	// WHEN: 12 actions are logged in the first day
	// THEN: Exceeded by 2, distinct from plain "behind", nothing remaining

	now := created.Add(24 * time.Hour)
	ev, err := milestone.Evaluate(scenarioA(), actionsEvery(created.Add(time.Minute), time.Hour, 12), now)
	require.NoError(t, err)

	assert.Equal(t, milestone.TrackStatus{State: milestone.TrackExceeded, Count: 2}, ev.Track)
	assert.Equal(t, 0, ev.Remaining)
	assert.True(t, ev.Exhausted)
	assert.Equal(t, milestone.GoalExceeded, ev.State())
	assert.True(t, ev.Track.State.Terminal())
}

func TestEvaluate_ScenarioD_IncreaseGoalAhead(t *testing.T) {
	// GIVEN: Increase goal one week in
	// WHEN: Three more actions than milestones passed
	// THEN: ahead(3)

	g := scenarioD()
	now := created.Add(7 * 24 * time.Hour)
	baseline, err := milestone.GenerateSchedule(g)
	require.NoError(t, err)
	passed := passedBy(baseline.Milestones, now)

	ev, err := milestone.Evaluate(g, actionsEvery(created.Add(time.Hour), time.Hour, passed+3), now)
	require.NoError(t, err)

	assert.Equal(t, milestone.DirectionIncrease, ev.Direction)
	assert.Equal(t, passed, ev.MilestonesPassedByTime)
	assert.Equal(t, milestone.TrackStatus{State: milestone.TrackAhead, Count: 3}, ev.Track)
}

func TestEvaluate_ReduceGoalBehind(t *testing.T) {
	g := scenarioA()
	now := created.Add(24 * time.Hour)
	baseline, err := milestone.GenerateSchedule(g)
	require.NoError(t, err)
	passed := passedBy(baseline.Milestones, now)

	ev, err := milestone.Evaluate(g, actionsEvery(created.Add(time.Hour), time.Hour, passed+4), now)
	require.NoError(t, err)

	assert.Equal(t, milestone.TrackStatus{State: milestone.TrackBehind, Count: 4}, ev.Track)
}

func TestEvaluate_ReduceGoalAhead(t *testing.T) {
	g := scenarioA()
	now := created.Add(48 * time.Hour)

	ev, err := milestone.Evaluate(g, actionsEvery(created.Add(time.Hour), time.Hour, 1), now)
	require.NoError(t, err)

	require.Greater(t, ev.MilestonesPassedByTime, 1)
	assert.Equal(t, milestone.TrackAhead, ev.Track.State)
	assert.Equal(t, ev.MilestonesPassedByTime-1, ev.Track.Count)
}

func TestEvaluate_IncreaseGoalBehind(t *testing.T) {
	g := scenarioD()
	now := created.Add(14 * 24 * time.Hour)

	ev, err := milestone.Evaluate(g, nil, now)
	require.NoError(t, err)

	assert.Equal(t, milestone.TrackBehind, ev.Track.State)
	assert.Equal(t, ev.MilestonesPassedByTime, ev.Track.Count)
	for _, m := range ev.Milestones[:ev.MilestonesPassedByTime] {
		assert.Equal(t, milestone.StatusMissed, m.Status)
	}
}

func TestEvaluate_IncreaseGoalCompleted(t *testing.T) {
	g := scenarioD()
	now := created.Add(10 * 24 * time.Hour)
	total := milestone.TotalMilestones(g)

	ev, err := milestone.Evaluate(g, actionsEvery(created.Add(time.Hour), 2*time.Hour, total), now)
	require.NoError(t, err)

	assert.Equal(t, milestone.TrackComplete, ev.Track.State)
	assert.Equal(t, milestone.GoalCompleted, ev.State())
}

func TestEvaluate_ReduceGoalPastDeadlineWithinAllowance_Completed(t *testing.T) {
	g := scenarioA()
	now := g.End().Add(time.Minute)

	ev, err := milestone.Evaluate(g, actionsEvery(created.Add(time.Hour), 20*time.Hour, 6), now)
	require.NoError(t, err)

	assert.True(t, ev.Complete)
	assert.Equal(t, milestone.TrackComplete, ev.Track.State)
	assert.Len(t, ev.Milestones, ev.TotalMilestones)
}

func TestEvaluate_ReduceGoalAllowanceUsedUp_Completed(t *testing.T) {
	// GIVEN: Reduce goal with 10 milestones, one day in
	// WHEN: Exactly 10 actions are logged
	// THEN: Nothing remains, the goal is completed rather than exceeded

	now := created.Add(24 * time.Hour)
	ev, err := milestone.Evaluate(scenarioA(), actionsEvery(created.Add(time.Minute), time.Hour, 10), now)
	require.NoError(t, err)

	assert.Equal(t, 0, ev.Remaining)
	assert.Equal(t, milestone.TrackStatus{State: milestone.TrackComplete}, ev.Track)
	assert.Equal(t, milestone.GoalCompleted, ev.State())
}

func TestEvaluate_Idempotent(t *testing.T) {
	g := scenarioD()
	now := created.Add(11*24*time.Hour + 3*time.Hour)
	actions := actionsEvery(created.Add(30*time.Minute), 17*time.Hour, 9)

	a, err := milestone.Evaluate(g, actions, now)
	require.NoError(t, err)
	b, err := milestone.Evaluate(g, actions, now)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestEvaluate_TailStaysUpcoming(t *testing.T) {
	g := scenarioA()
	now := created.Add(30 * time.Hour)

	ev, err := milestone.Evaluate(g, actionsEvery(created.Add(time.Hour), 10*time.Hour, 3), now)
	require.NoError(t, err)

	for _, m := range ev.Milestones[ev.MilestonesPassedByTime:] {
		assert.Equal(t, milestone.StatusUpcoming, m.Status)
	}
}

func TestEvaluate_InvalidGoal(t *testing.T) {
	g := scenarioA()
	g.Unit = ""

	ev, err := milestone.Evaluate(g, nil, created)
	assert.Nil(t, ev)
	assert.ErrorIs(t, err, milestone.ErrInvalidGoal)
}

// =============================================================================
// MILESTONE STATUS
// =============================================================================

func TestMarkMilestones(t *testing.T) {
	// Milestones at 10h, 20h, 30h; two actions at 2h and 3h; now = 25h.
	build := func() []milestone.Milestone {
		return []milestone.Milestone{
			{At: created.Add(10 * time.Hour), Index: 1, Total: 3},
			{At: created.Add(20 * time.Hour), Index: 2, Total: 3},
			{At: created.Add(30 * time.Hour), Index: 3, Total: 3},
		}
	}
	actions := []time.Time{created.Add(2 * time.Hour), created.Add(3 * time.Hour)}
	now := created.Add(25 * time.Hour)

	t.Run("reduce", func(t *testing.T) {
		ms := build()
		milestone.MarkMilestones(ms, milestone.DirectionReduce, actions, now)

		// Two uses before the first allowance slot: over. One slot later: fine.
		assert.Equal(t, milestone.StatusMissed, ms[0].Status)
		assert.Equal(t, milestone.StatusCompleted, ms[1].Status)
		assert.Equal(t, milestone.StatusUpcoming, ms[2].Status)
	})

	t.Run("increase", func(t *testing.T) {
		ms := build()
		milestone.MarkMilestones(ms, milestone.DirectionIncrease, actions, now)

		// Two actions beat the first milestone but only match the second.
		assert.Equal(t, milestone.StatusCompleted, ms[0].Status)
		assert.Equal(t, milestone.StatusMissed, ms[1].Status)
		assert.Equal(t, milestone.StatusUpcoming, ms[2].Status)
	})

	t.Run("increase needs more actions than the index", func(t *testing.T) {
		// GIVEN: One increase milestone (index 1) already passed
		// WHEN: Exactly one action was logged before it
		// THEN: It is missed; a second action completes it

		one := []milestone.Milestone{{At: created.Add(10 * time.Hour), Index: 1, Total: 1}}
		milestone.MarkMilestones(one, milestone.DirectionIncrease, actions[:1], now)
		assert.Equal(t, milestone.StatusMissed, one[0].Status)

		milestone.MarkMilestones(one, milestone.DirectionIncrease, actions, now)
		assert.Equal(t, milestone.StatusCompleted, one[0].Status)
	})

	t.Run("increase falls short", func(t *testing.T) {
		ms := build()
		milestone.MarkMilestones(ms, milestone.DirectionIncrease, actions[:1], created.Add(40*time.Hour))

		assert.Equal(t, milestone.StatusMissed, ms[0].Status)
		assert.Equal(t, milestone.StatusMissed, ms[1].Status)
		assert.Equal(t, milestone.StatusMissed, ms[2].Status)
	})
}

func TestEvaluateTrack(t *testing.T) {
	cases := []struct {
		name     string
		dir      milestone.Direction
		actions  int
		passed   int
		total    int
		complete bool
		want     milestone.TrackStatus
	}{
		{"reduce on track", milestone.DirectionReduce, 3, 3, 10, false, milestone.TrackStatus{State: milestone.TrackOnTrack}},
		{"reduce behind", milestone.DirectionReduce, 5, 3, 10, false, milestone.TrackStatus{State: milestone.TrackBehind, Count: 2}},
		{"reduce ahead", milestone.DirectionReduce, 1, 3, 10, false, milestone.TrackStatus{State: milestone.TrackAhead, Count: 2}},
		{"reduce at allowance", milestone.DirectionReduce, 10, 4, 10, false, milestone.TrackStatus{State: milestone.TrackComplete}},
		{"reduce exceeded", milestone.DirectionReduce, 13, 4, 10, false, milestone.TrackStatus{State: milestone.TrackExceeded, Count: 3}},
		{"reduce exceeded after deadline", milestone.DirectionReduce, 11, 10, 10, true, milestone.TrackStatus{State: milestone.TrackExceeded, Count: 1}},
		{"reduce done", milestone.DirectionReduce, 8, 10, 10, true, milestone.TrackStatus{State: milestone.TrackComplete}},
		{"increase on track", milestone.DirectionIncrease, 4, 4, 10, false, milestone.TrackStatus{State: milestone.TrackOnTrack}},
		{"increase behind", milestone.DirectionIncrease, 1, 4, 10, false, milestone.TrackStatus{State: milestone.TrackBehind, Count: 3}},
		{"increase ahead", milestone.DirectionIncrease, 7, 4, 10, false, milestone.TrackStatus{State: milestone.TrackAhead, Count: 3}},
		{"increase done", milestone.DirectionIncrease, 10, 6, 10, false, milestone.TrackStatus{State: milestone.TrackComplete}},
		{"increase short at deadline", milestone.DirectionIncrease, 6, 10, 10, true, milestone.TrackStatus{State: milestone.TrackBehind, Count: 4}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := milestone.EvaluateTrack(c.dir, c.actions, c.passed, c.total, c.complete)
			assert.Equal(t, c.want, got)
		})
	}
}

// =============================================================================
// NEXT MILESTONE
// =============================================================================

func TestNextMilestone(t *testing.T) {
	g := scenarioA()

	ev, err := milestone.Evaluate(g, nil, created)
	require.NoError(t, err)

	next, wait, ok := milestone.NextMilestone(ev, created)
	require.True(t, ok)
	assert.Equal(t, ev.Milestones[0], next)
	assert.Equal(t, next.At.Sub(created), wait)

	// Derived from the same reconciled list mid-way through.
	now := created.Add(30 * time.Hour)
	ev, err = milestone.Evaluate(g, actionsEvery(created.Add(time.Hour), 10*time.Hour, 3), now)
	require.NoError(t, err)
	next, _, ok = milestone.NextMilestone(ev, now)
	require.True(t, ok)
	assert.True(t, next.At.After(now))
	assert.Equal(t, milestone.StatusUpcoming, next.Status)

	// Nothing after the deadline.
	late := g.End().Add(time.Hour)
	ev, err = milestone.Evaluate(g, nil, late)
	require.NoError(t, err)
	_, _, ok = milestone.NextMilestone(ev, late)
	assert.False(t, ok)

	_, _, ok = milestone.NextMilestone(nil, late)
	assert.False(t, ok)
}
