package factory_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/milestone-engine/factory"
	"github.com/warp/milestone-engine/milestone"
)

var now = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func newFactory() *factory.GoalFactory {
	f := factory.NewGoalFactory()
	f.Now = func() time.Time { return now }
	return f
}

// =============================================================================
// GOALS
// =============================================================================

func TestParseGoal_Full(t *testing.T) {
	doc := `{
		"id": "coffee",
		"name": "Fewer coffees",
		"unit": "count",
		"current_amount": 20,
		"goal_amount": "5",
		"measurement_period_days": 7,
		"completion_period_days": 28,
		"created_at": "2025-03-01T08:00:00Z",
		"curve": "sigmoid",
		"action_type": "coffee"
	}`

	g, err := newFactory().ParseGoal([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "coffee", g.ID)
	assert.Equal(t, milestone.UnitCount, g.Unit)
	assert.True(t, g.CurrentAmount.Equal(decimal.NewFromInt(20)))
	assert.True(t, g.GoalAmount.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, 28.0, g.CompletionPeriodDays)
	assert.Equal(t, time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC), g.CreatedAt)
	assert.Equal(t, milestone.CurveSigmoid, g.Curve)
	assert.Equal(t, milestone.DirectionReduce, g.Direction)
	assert.Equal(t, "coffee", g.ActionType)
}

func TestParseGoal_Defaults(t *testing.T) {
	// GIVEN: A minimal goal document
	// WHEN: Parsed
	// THEN: count unit, weekly measurement, created now, direction derived

	g, err := newFactory().ParseGoal([]byte(`{"id":"run","current_amount":2,"goal_amount":14,"completion_period_days":28}`))
	require.NoError(t, err)

	assert.Equal(t, milestone.UnitCount, g.Unit)
	assert.Equal(t, 7.0, g.MeasurementPeriodDays)
	assert.Equal(t, now, g.CreatedAt)
	assert.Equal(t, milestone.CurveAuto, g.Curve)
	assert.Equal(t, milestone.DirectionIncrease, g.Direction)
	assert.True(t, g.ChunkSize.IsZero())
}

func TestParseGoal_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad json":          `{"id":`,
		"bad unit":          `{"id":"x","unit":"steps","current_amount":1,"goal_amount":2,"completion_period_days":3}`,
		"bad curve":         `{"id":"x","curve":"zigzag","current_amount":1,"goal_amount":2,"completion_period_days":3}`,
		"bad created_at":    `{"id":"x","created_at":"yesterday","current_amount":1,"goal_amount":2,"completion_period_days":3}`,
		"no completion":     `{"id":"x","current_amount":1,"goal_amount":2}`,
		"negative amount":   `{"id":"x","current_amount":-1,"goal_amount":2,"completion_period_days":3}`,
		"unknown direction": `{"id":"x","direction":"up","current_amount":1,"goal_amount":2,"completion_period_days":3}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			g, err := newFactory().ParseGoal([]byte(doc))
			assert.Nil(t, g)
			assert.Error(t, err)
		})
	}

	_, err := newFactory().ParseGoal([]byte(`{"id":"x","curve":"zigzag","current_amount":1,"goal_amount":2,"completion_period_days":3}`))
	assert.ErrorIs(t, err, milestone.ErrInvalidGoal)
}

func TestToJSON_RoundTripsThroughParse(t *testing.T) {
	f := newFactory()
	g, err := f.ParseGoal([]byte(`{"id":"focus","unit":"duration","current_amount":60,"goal_amount":300,"chunk_size":30,"completion_period_days":14,"curve":"powerOut"}`))
	require.NoError(t, err)

	doc, err := f.MarshalGoal(*g, "Deep work")
	require.NoError(t, err)

	var gj factory.GoalJSON
	require.NoError(t, json.Unmarshal([]byte(doc), &gj))
	assert.Equal(t, "Deep work", gj.Name)
	assert.Equal(t, "powerOut", gj.Curve)
	assert.Equal(t, "increase", gj.Direction)

	again, err := f.ParseGoal([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, g.CreatedAt, again.CreatedAt)
	assert.Equal(t, g.Curve, again.Curve)
	assert.True(t, g.ChunkSize.Equal(again.ChunkSize))
	assert.Equal(t, milestone.TotalMilestones(*g), milestone.TotalMilestones(*again))
}

// =============================================================================
// ACTION LOG
// =============================================================================

func TestParseActions_DropsMalformedRecords(t *testing.T) {
	doc := `[
		{"id": "a", "timestamp": 1741000000.5, "type": "coffee"},
		{"id": "b", "timestamp": "1741000100", "type": "coffee"},
		{"id": "c", "timestamp": "2025-03-03T10:00:00Z"},
		{"id": "d", "timestamp": "not a time"},
		{"id": "e"},
		{"id": "f", "timestamp": null},
		{"id": "g", "timestamp": -5},
		{"id": "h", "timestamp": 1741000200, "amount": "2.5", "duration_sec": 90},
		"garbage"
	]`

	actions, dropped, err := factory.ParseActions([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 5, dropped)

	ids := make([]string, len(actions))
	for i, a := range actions {
		ids[i] = a.ID
	}
	assert.Equal(t, []string{"a", "b", "c", "h"}, ids)

	assert.Equal(t, 1741000000.5, actions[0].TimestampSec)
	assert.Equal(t, 1741000100.0, actions[1].TimestampSec)
	assert.Equal(t, float64(time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC).Unix()), actions[2].TimestampSec)
	require.NotNil(t, actions[3].Amount)
	assert.True(t, actions[3].Amount.Equal(decimal.RequireFromString("2.5")))
	require.NotNil(t, actions[3].DurationSec)
	assert.Equal(t, 90.0, *actions[3].DurationSec)
}

func TestParseActions_NotAnArray(t *testing.T) {
	_, _, err := factory.ParseActions([]byte(`{"timestamp": 1}`))
	assert.Error(t, err)
}

func TestActionJSON_RoundTrip(t *testing.T) {
	a := milestone.ActionRecord{ID: "x", TimestampSec: 1741000000.25, Type: "coffee"}
	back, ok := factory.FromActionJSON(factory.ToActionJSON(a))
	require.True(t, ok)
	assert.Equal(t, a, back)
}
