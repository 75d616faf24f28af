/*
Package milestone provides the behavioral goal milestone scheduling engine.

PURPOSE:
  Turns a behavior-change goal ("I do this 20 times a week now, I want to
  get down to 5 a week within a month") into a concrete sequence of
  checkpoint timestamps, and reconciles that sequence against the actions
  the user actually logged to say whether they are on track, ahead or
  behind.

KEY CONCEPTS IN THIS FILE (types.go):
  - GoalSpec: The goal being scheduled (read-only input)
  - Milestone: A single scheduled checkpoint (output value)
  - ActionRecord: A logged user action (read-only input)
  - Unit / Direction: What is measured and which way it should move

PIPELINE:
  goal ──► IntervalModel ──► GenerateSchedule (baseline)
                                   │
  actions, now ───────────────► Reconcile (tail regenerated from now)
                                   │
                                   ▼
                               Evaluate (statuses + track summary)

DESIGN PRINCIPLES:
  1. Pure: every exported operation is a function of (goal, actions, now)
  2. No I/O, no locks, no package-level mutable state
  3. Explicit curve: CurveKind is resolved once and threaded through
  4. Expected edge cases are states, not errors

USAGE:
  goal := milestone.GoalSpec{
      Unit:                  milestone.UnitCount,
      CurrentAmount:         decimal.NewFromInt(20),
      GoalAmount:            decimal.NewFromInt(5),
      MeasurementPeriodDays: 7,
      CompletionPeriodDays:  28,
      CreatedAt:             created,
  }
  ev, err := milestone.Evaluate(goal, actions, time.Now())

SEE ALSO:
  - curve.go: Interval shape functions
  - interval.go: First/last/average interval derivation
  - schedule.go: Baseline milestone placement
  - reconcile.go: Tail regeneration against logged actions
  - status.go: Milestone and track status evaluation
*/
package milestone

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// UNIT & DIRECTION
// =============================================================================

// Unit is what a goal's amounts are measured in.
type Unit string

const (
	UnitCount    Unit = "count"
	UnitDuration Unit = "duration"
	UnitCurrency Unit = "currency"
)

// Valid reports whether u is one of the known units.
func (u Unit) Valid() bool {
	switch u {
	case UnitCount, UnitDuration, UnitCurrency:
		return true
	}
	return false
}

// Direction says whether the user wants to do less or more of something.
type Direction string

const (
	DirectionReduce   Direction = "reduce"   // goal < current: milestones are an allowance
	DirectionIncrease Direction = "increase" // goal > current: milestones are required progress
)

// DirectionFor derives the direction from the two amounts.
// Equal amounts count as reduce (hold the line).
func DirectionFor(current, goal decimal.Decimal) Direction {
	if goal.GreaterThan(current) {
		return DirectionIncrease
	}
	return DirectionReduce
}

// =============================================================================
// GOAL SPEC - Input owned by the goal collaborator
// =============================================================================

const day = 24 * time.Hour

// GoalSpec is a goal as the engine sees it. The engine never mutates it.
type GoalSpec struct {
	ID   string
	Unit Unit

	// Amounts per MeasurementPeriodDays.
	CurrentAmount decimal.Decimal
	GoalAmount    decimal.Decimal

	MeasurementPeriodDays float64
	CompletionPeriodDays  float64

	// ChunkSize divides the amounts before interval math ("minutes" → "sessions").
	// Zero means no chunking.
	ChunkSize decimal.Decimal

	CreatedAt time.Time

	// Direction is derived from the amounts when empty.
	Direction Direction

	// Curve shapes the interval progression. CurveAuto picks one from the
	// interval model (see ResolveCurve).
	Curve CurveKind

	// ActionType restricts which logged actions count toward this goal.
	// Empty means every action type.
	ActionType string
}

// ResolvedDirection returns Direction, deriving it from the amounts when unset.
func (g GoalSpec) ResolvedDirection() Direction {
	if g.Direction == "" {
		return DirectionFor(g.CurrentAmount, g.GoalAmount)
	}
	return g.Direction
}

// MeasurementPeriod returns the measurement period as a duration.
func (g GoalSpec) MeasurementPeriod() time.Duration {
	return daysToDuration(g.MeasurementPeriodDays)
}

// CompletionPeriod returns the full goal span as a duration.
func (g GoalSpec) CompletionPeriod() time.Duration {
	return daysToDuration(g.CompletionPeriodDays)
}

// Start is the goal start instant truncated to millisecond precision.
func (g GoalSpec) Start() time.Time {
	return time.UnixMilli(g.CreatedAt.UnixMilli()).UTC()
}

// End is the goal deadline.
func (g GoalSpec) End() time.Time {
	return g.Start().Add(g.CompletionPeriod())
}

// Validate checks the invariants the engine relies on.
func (g GoalSpec) Validate() error {
	switch {
	case !g.Unit.Valid():
		return &GoalValidationError{Field: "unit", Reason: "must be count, duration or currency"}
	case g.CurrentAmount.IsNegative():
		return &GoalValidationError{Field: "current_amount", Reason: "must not be negative"}
	case g.GoalAmount.IsNegative():
		return &GoalValidationError{Field: "goal_amount", Reason: "must not be negative"}
	case g.ChunkSize.IsNegative():
		return &GoalValidationError{Field: "chunk_size", Reason: "must not be negative"}
	case !(g.MeasurementPeriodDays > 0) || math.IsInf(g.MeasurementPeriodDays, 0):
		return &GoalValidationError{Field: "measurement_period_days", Reason: "must be positive"}
	case !(g.CompletionPeriodDays > 0) || math.IsInf(g.CompletionPeriodDays, 0):
		return &GoalValidationError{Field: "completion_period_days", Reason: "must be positive"}
	case g.MeasurementPeriodDays >= MaxPeriodDays:
		return &GoalValidationError{Field: "measurement_period_days", Reason: fmt.Sprintf("too long (max %.0f days)", MaxPeriodDays)}
	case g.CompletionPeriodDays >= MaxPeriodDays:
		return &GoalValidationError{Field: "completion_period_days", Reason: fmt.Sprintf("too long (max %.0f days)", MaxPeriodDays)}
	case g.CompletionPeriod() < time.Millisecond:
		return &GoalValidationError{Field: "completion_period_days", Reason: "shorter than one millisecond"}
	case g.CreatedAt.IsZero():
		return &GoalValidationError{Field: "created_at", Reason: "is required"}
	case g.Direction != "" && g.Direction != DirectionReduce && g.Direction != DirectionIncrease:
		return &GoalValidationError{Field: "direction", Reason: "must be reduce or increase"}
	case !g.Curve.Valid():
		return &GoalValidationError{Field: "curve", Reason: "unknown curve kind"}
	}
	return nil
}

// MaxPeriodDays bounds periods from above; a time.Duration holds about 292 years.
const MaxPeriodDays = float64(math.MaxInt64) / float64(day)

func daysToDuration(days float64) time.Duration {
	return time.Duration(days * float64(day))
}

// =============================================================================
// MILESTONE - Engine output, never persisted
// =============================================================================

type MilestoneStatus string

const (
	StatusUpcoming  MilestoneStatus = "upcoming"
	StatusCompleted MilestoneStatus = "completed"
	StatusMissed    MilestoneStatus = "missed"
)

// Milestone is one scheduled checkpoint.
type Milestone struct {
	At       time.Time
	Index    int // 1-based
	Total    int
	Interval time.Duration // gap from the previous milestone (or the span start)
	Progress float64       // Index / Total
	Status   MilestoneStatus
}

// TimestampMs returns At in Unix milliseconds.
func (m Milestone) TimestampMs() int64 { return m.At.UnixMilli() }

// IsPast reports whether the milestone is at or before now.
func (m Milestone) IsPast(now time.Time) bool { return !m.At.After(now) }

// =============================================================================
// ACTION RECORD - Logged user action, owned by the action log collaborator
// =============================================================================

// ActionRecord is a single logged action. Records with a missing or
// non-finite timestamp are ignored by the engine.
type ActionRecord struct {
	ID           string
	TimestampSec float64
	Type         string
	Amount       *decimal.Decimal
	DurationSec  *float64
}

// ValidTimestamp reports whether the record carries a usable timestamp.
func (a ActionRecord) ValidTimestamp() bool {
	return a.TimestampSec > 0 && !math.IsInf(a.TimestampSec, 0) && !math.IsNaN(a.TimestampSec)
}

// Time converts the timestamp to a time.Time with millisecond precision.
func (a ActionRecord) Time() time.Time {
	return time.UnixMilli(int64(math.Round(a.TimestampSec * 1000))).UTC()
}
