package milestone_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/milestone-engine/milestone"
)

func TestReconcile_Idempotent(t *testing.T) {
	g := scenarioD()
	now := created.Add(9*24*time.Hour + 5*time.Hour)
	actions := actionsEvery(created.Add(time.Hour), 20*time.Hour, 7)

	r1, err := milestone.Reconcile(g, actions, now)
	require.NoError(t, err)
	r2, err := milestone.Reconcile(g, actions, now)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
}

func TestReconcile_BeforeAnythingHappens_MatchesBaseline(t *testing.T) {
	// GIVEN: No actions, evaluated at the goal's creation instant
	// THEN: The reconciled schedule is the baseline

	g := scenarioA()
	baseline, err := milestone.GenerateSchedule(g)
	require.NoError(t, err)

	r, err := milestone.Reconcile(g, nil, created)
	require.NoError(t, err)

	assert.Equal(t, 0, r.MilestonesPassedByTime)
	assert.Equal(t, 0, r.ActionCount)
	assert.Equal(t, baseline.Total, r.Remaining)
	assert.Equal(t, created, r.Boundary)
	assert.Equal(t, baseline.Model.First, r.CurrentInterval)
	assert.Equal(t, baseline.Milestones, r.Milestones)
}

func TestReconcile_KeepsPastBaselineAndRebuildsTail(t *testing.T) {
	g := scenarioA()
	now := created.Add(30 * time.Hour)
	actions := actionsEvery(created.Add(time.Hour), 6*time.Hour, 4)

	baseline, err := milestone.GenerateSchedule(g)
	require.NoError(t, err)
	passed := passedBy(baseline.Milestones, now)
	require.Greater(t, passed, 0)

	r, err := milestone.Reconcile(g, actions, now)
	require.NoError(t, err)

	assert.Equal(t, passed, r.MilestonesPassedByTime)
	assert.Equal(t, 4, r.ActionCount)
	assert.Equal(t, baseline.Total-4, r.Remaining)
	assert.Equal(t, baseline.Milestones[passed-1].At, r.Boundary)
	require.Len(t, r.Milestones, passed+r.Remaining)

	for i := 0; i < passed; i++ {
		assert.Equal(t, baseline.Milestones[i].At, r.Milestones[i].At)
	}
	// Tail starts after the boundary and ends on the original deadline.
	assert.True(t, r.Milestones[passed].At.After(r.Boundary))
	assert.Equal(t, g.End(), r.Milestones[len(r.Milestones)-1].At)

	// The list is renumbered as a whole.
	for i, m := range r.Milestones {
		assert.Equal(t, i+1, m.Index)
		assert.Equal(t, len(r.Milestones), m.Total)
		if i > 0 {
			assert.True(t, m.At.After(r.Milestones[i-1].At))
			assert.Greater(t, m.Progress, r.Milestones[i-1].Progress)
		}
	}
}

func TestReconcile_CurrentIntervalBlendsByElapsedTime(t *testing.T) {
	g := scenarioD()
	now := created.Add(7 * 24 * time.Hour) // a quarter of the way in

	r, err := milestone.Reconcile(g, nil, now)
	require.NoError(t, err)

	// 84h to 12h at t=0.25: 84 - 72·0.25 = 66h
	assert.Equal(t, 66*time.Hour, r.CurrentInterval)
}

func TestReconcile_PastDeadline_NoTail(t *testing.T) {
	g := scenarioA()
	now := g.End().Add(time.Hour)

	r, err := milestone.Reconcile(g, actionsEvery(created.Add(time.Hour), 10*time.Hour, 3), now)
	require.NoError(t, err)

	assert.True(t, r.Complete)
	assert.Equal(t, r.TotalMilestones, r.MilestonesPassedByTime)
	assert.Len(t, r.Milestones, r.TotalMilestones)
}

func TestReconcile_ScenarioC_AllSlotsConsumed(t *testing.T) {
	// GIVEN: Reduce goal with 10 milestones, 12 actions in the first day
	// THEN: Nothing is left to schedule

	g := scenarioA()
	now := created.Add(24 * time.Hour)

	r, err := milestone.Reconcile(g, actionsEvery(created.Add(time.Minute), time.Hour, 12), now)
	require.NoError(t, err)

	assert.Equal(t, 12, r.ActionCount)
	assert.Equal(t, 0, r.Remaining)
	assert.True(t, r.Exhausted)
	assert.False(t, r.Complete)
	assert.Len(t, r.Milestones, r.MilestonesPassedByTime)
}

func TestReconcile_ScenarioD_AheadGetsBreathingRoom(t *testing.T) {
	// GIVEN: Increase goal, evaluated at many points in time
	// WHEN: Actions run 1 to 3 ahead of the milestones passed
	// THEN: The next interval is longer than the baseline's next interval

	g := scenarioD()
	baseline, err := milestone.GenerateSchedule(g)
	require.NoError(t, err)

	checked := 0
	for h := 24; h <= 27*24; h += 7 {
		now := created.Add(time.Duration(h) * time.Hour)
		passed := passedBy(baseline.Milestones, now)
		for k := 1; k <= 3; k++ {
			if passed+k >= baseline.Total || passed >= len(baseline.Milestones) {
				continue
			}
			actions := actionsEvery(created.Add(time.Minute), time.Minute, passed+k)
			r, err := milestone.Reconcile(g, actions, now)
			require.NoError(t, err)
			require.Greater(t, len(r.Milestones), passed, "h=%d k=%d", h, k)

			assert.Greater(t, r.Milestones[passed].Interval, baseline.Milestones[passed].Interval,
				"h=%d k=%d", h, k)
			checked++
		}
	}
	assert.Greater(t, checked, 50)
}

func TestReconcile_BehindCompressesReduceAllowance(t *testing.T) {
	// Reduce goal: using more than planned leaves fewer, sparser slots.
	g := scenarioA()
	now := created.Add(30 * time.Hour)

	onPlan, err := milestone.Reconcile(g, actionsEvery(created.Add(time.Hour), 10*time.Hour, 3), now)
	require.NoError(t, err)
	over, err := milestone.Reconcile(g, actionsEvery(created.Add(time.Hour), time.Hour, 7), now)
	require.NoError(t, err)

	assert.Less(t, over.Remaining, onPlan.Remaining)
	p := over.MilestonesPassedByTime
	assert.Greater(t, over.Milestones[p].Interval, onPlan.Milestones[p].Interval)
}

// =============================================================================
// ACTION FILTERING
// =============================================================================

func TestRelevantActionTimes_FiltersMalformedAndIrrelevant(t *testing.T) {
	g := scenarioA()
	g.ActionType = "did_it"
	now := created.Add(48 * time.Hour)

	good := action(created.Add(2 * time.Hour))
	early := action(created.Add(-time.Hour))
	late := action(now.Add(time.Minute))
	wrongType := action(created.Add(3 * time.Hour))
	wrongType.Type = "craved"
	missing := milestone.ActionRecord{ID: "no-timestamp", Type: "did_it"}
	nan := action(created.Add(time.Hour))
	nan.TimestampSec = math.NaN()
	inf := action(created.Add(time.Hour))
	inf.TimestampSec = math.Inf(1)
	atStart := action(created)
	atNow := action(now)

	got := milestone.RelevantActionTimes(g,
		[]milestone.ActionRecord{atNow, good, early, late, wrongType, missing, nan, inf, atStart}, now)

	assert.Equal(t, []time.Time{created, created.Add(2 * time.Hour), now}, got)
}

func TestRelevantActionTimes_UnitPayload(t *testing.T) {
	now := created.Add(24 * time.Hour)
	minutes := 25 * 60.0
	zero := 0.0

	withDuration := action(created.Add(time.Hour))
	withDuration.DurationSec = &minutes
	zeroDuration := action(created.Add(2 * time.Hour))
	zeroDuration.DurationSec = &zero
	bare := action(created.Add(3 * time.Hour))

	actions := []milestone.ActionRecord{withDuration, zeroDuration, bare}

	g := scenarioA()
	assert.Len(t, milestone.RelevantActionTimes(g, actions, now), 3)

	g.Unit = milestone.UnitDuration
	assert.Equal(t, []time.Time{created.Add(time.Hour)}, milestone.RelevantActionTimes(g, actions, now))

	g.Unit = milestone.UnitCurrency
	assert.Empty(t, milestone.RelevantActionTimes(g, actions, now))
}
