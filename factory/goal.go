/*
Package factory provides JSON to Go goal conversion.

PURPOSE:
  Converts JSON goal definitions into milestone.GoalSpec values, and raw
  action-log JSON into milestone.ActionRecord slices. The API, the CLI and
  the stores all exchange goals in this one document format.

JSON SCHEMA:
  {
    "id": "coffee",
    "name": "Fewer coffees",
    "unit": "count",
    "current_amount": "20",
    "goal_amount": "5",
    "measurement_period_days": 7,
    "completion_period_days": 28,
    "chunk_size": "0",
    "created_at": "2025-03-03T09:00:00Z",
    "curve": "auto",
    "direction": "reduce",
    "action_type": "coffee"
  }

  Amounts accept JSON numbers or strings (shopspring/decimal).

DEFAULTS:
  - unit:                    count
  - measurement_period_days: 7
  - created_at:              now (factory clock)
  - curve:                   auto (derived from the interval direction)
  - direction:               derived from the amounts

ACTION LOG DECODING:
  ParseActions is lenient per record: an entry whose timestamp is missing,
  non-numeric or non-finite is dropped and counted, never fatal. Only a
  document that isn't a JSON array is an error.

USAGE:
  f := factory.NewGoalFactory()
  goal, err := f.ParseGoal(jsonBytes)

  actions, dropped, err := factory.ParseActions(logBytes)
  ev, err := milestone.Evaluate(*goal, actions, time.Now())

SEE ALSO:
  - milestone/types.go: GoalSpec and ActionRecord
  - store/store.go: GoalRecord.ConfigJSON holds a GoalJSON document
*/
package factory

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/milestone-engine/milestone"
)

// DefaultMeasurementPeriodDays is used when a goal omits the field.
const DefaultMeasurementPeriodDays = 7

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// GoalJSON is the JSON representation of a goal.
type GoalJSON struct {
	ID                    string           `json:"id"`
	Name                  string           `json:"name,omitempty"`
	Unit                  string           `json:"unit,omitempty"`
	CurrentAmount         decimal.Decimal  `json:"current_amount"`
	GoalAmount            decimal.Decimal  `json:"goal_amount"`
	MeasurementPeriodDays float64          `json:"measurement_period_days,omitempty"`
	CompletionPeriodDays  float64          `json:"completion_period_days"`
	ChunkSize             *decimal.Decimal `json:"chunk_size,omitempty"`
	CreatedAt             string           `json:"created_at,omitempty"` // RFC3339
	Curve                 string           `json:"curve,omitempty"`      // auto, linear, power, powerOut, sigmoid
	Direction             string           `json:"direction,omitempty"`  // reduce, increase
	ActionType            string           `json:"action_type,omitempty"`
}

// ActionJSON is one entry of an action log document. Timestamp is Unix
// seconds (number or numeric string) or an RFC3339 string.
type ActionJSON struct {
	ID          string           `json:"id,omitempty"`
	Timestamp   json.RawMessage  `json:"timestamp"`
	Type        string           `json:"type,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	DurationSec *float64         `json:"duration_sec,omitempty"`
}

// =============================================================================
// GOAL FACTORY
// =============================================================================

// GoalFactory converts JSON goals to milestone.GoalSpec.
type GoalFactory struct {
	// Now supplies created_at when a document omits it.
	Now func() time.Time
}

// NewGoalFactory creates a new goal factory.
func NewGoalFactory() *GoalFactory {
	return &GoalFactory{Now: time.Now}
}

// ParseGoal decodes and validates a goal document.
func (f *GoalFactory) ParseGoal(data []byte) (*milestone.GoalSpec, error) {
	var gj GoalJSON
	if err := json.Unmarshal(data, &gj); err != nil {
		return nil, fmt.Errorf("invalid goal JSON: %w", err)
	}
	return f.FromJSON(gj)
}

// FromJSON converts a GoalJSON to a GoalSpec, applying defaults, and
// validates the result.
func (f *GoalFactory) FromJSON(gj GoalJSON) (*milestone.GoalSpec, error) {
	g := milestone.GoalSpec{
		ID:                    gj.ID,
		Unit:                  milestone.Unit(gj.Unit),
		CurrentAmount:         gj.CurrentAmount,
		GoalAmount:            gj.GoalAmount,
		MeasurementPeriodDays: gj.MeasurementPeriodDays,
		CompletionPeriodDays:  gj.CompletionPeriodDays,
		Direction:             milestone.Direction(gj.Direction),
		ActionType:            gj.ActionType,
	}
	if g.Unit == "" {
		g.Unit = milestone.UnitCount
	}
	if g.MeasurementPeriodDays == 0 {
		g.MeasurementPeriodDays = DefaultMeasurementPeriodDays
	}
	if gj.ChunkSize != nil {
		g.ChunkSize = *gj.ChunkSize
	}

	if gj.CreatedAt == "" {
		g.CreatedAt = f.Now().UTC()
	} else {
		t, err := time.Parse(time.RFC3339, gj.CreatedAt)
		if err != nil {
			return nil, &milestone.GoalValidationError{Field: "created_at", Reason: "must be RFC3339"}
		}
		g.CreatedAt = t.UTC()
	}

	curve, err := milestone.ParseCurveKind(gj.Curve)
	if err != nil {
		return nil, err
	}
	g.Curve = curve

	if g.Direction == "" {
		g.Direction = milestone.DirectionFor(g.CurrentAmount, g.GoalAmount)
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// ToJSON converts a GoalSpec back to its JSON document. name is carried
// alongside since GoalSpec doesn't hold it.
func (f *GoalFactory) ToJSON(g milestone.GoalSpec, name string) GoalJSON {
	gj := GoalJSON{
		ID:                    g.ID,
		Name:                  name,
		Unit:                  string(g.Unit),
		CurrentAmount:         g.CurrentAmount,
		GoalAmount:            g.GoalAmount,
		MeasurementPeriodDays: g.MeasurementPeriodDays,
		CompletionPeriodDays:  g.CompletionPeriodDays,
		CreatedAt:             g.CreatedAt.UTC().Format(time.RFC3339),
		Curve:                 g.Curve.String(),
		Direction:             string(g.ResolvedDirection()),
		ActionType:            g.ActionType,
	}
	if !g.ChunkSize.IsZero() {
		chunk := g.ChunkSize
		gj.ChunkSize = &chunk
	}
	return gj
}

// MarshalGoal is ToJSON followed by json.Marshal.
func (f *GoalFactory) MarshalGoal(g milestone.GoalSpec, name string) (string, error) {
	data, err := json.Marshal(f.ToJSON(g, name))
	if err != nil {
		return "", fmt.Errorf("failed to encode goal: %w", err)
	}
	return string(data), nil
}

// =============================================================================
// ACTION LOG
// =============================================================================

// ParseActions decodes an action log document. Records with a malformed
// timestamp are dropped; dropped reports how many.
func ParseActions(data []byte) (actions []milestone.ActionRecord, dropped int, err error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("invalid action log JSON: %w", err)
	}

	actions = make([]milestone.ActionRecord, 0, len(raw))
	for _, r := range raw {
		var aj ActionJSON
		if err := json.Unmarshal(r, &aj); err != nil {
			dropped++
			continue
		}
		a, ok := FromActionJSON(aj)
		if !ok {
			dropped++
			continue
		}
		actions = append(actions, a)
	}
	return actions, dropped, nil
}

// FromActionJSON converts one entry. ok is false when the timestamp is
// unusable.
func FromActionJSON(aj ActionJSON) (milestone.ActionRecord, bool) {
	ts, ok := parseTimestamp(aj.Timestamp)
	if !ok {
		return milestone.ActionRecord{}, false
	}
	a := milestone.ActionRecord{
		ID:           aj.ID,
		TimestampSec: ts,
		Type:         aj.Type,
		Amount:       aj.Amount,
		DurationSec:  aj.DurationSec,
	}
	if !a.ValidTimestamp() {
		return milestone.ActionRecord{}, false
	}
	return a, true
}

// ToActionJSON is the inverse of FromActionJSON.
func ToActionJSON(a milestone.ActionRecord) ActionJSON {
	return ActionJSON{
		ID:          a.ID,
		Timestamp:   json.RawMessage(strconv.FormatFloat(a.TimestampSec, 'f', -1, 64)),
		Type:        a.Type,
		Amount:      a.Amount,
		DurationSec: a.DurationSec,
	}
}

func parseTimestamp(raw json.RawMessage) (float64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, false
	}

	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, false
		}
		if t, err := time.Parse(time.RFC3339, str); err == nil {
			return float64(t.UnixMilli()) / 1000, true
		}
		s = str
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
