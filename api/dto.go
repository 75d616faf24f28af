/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's types from the external API contract, allowing:
  - Field renaming without breaking clients
  - Durations and instants in formats UIs consume directly
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Goals:
    GoalDTO (wraps factory.GoalJSON)

  Schedules:
    EvaluationDTO, MilestoneDTO, TrackStatusDTO, IntervalModelDTO, NextMilestoneDTO

  Actions:
    ActionDTO (wraps factory.ActionJSON)

  Scheduler:
    SchedulerStatusDTO

DURATIONS AND INSTANTS:
  Every instant is sent twice: RFC3339 for people and Unix milliseconds
  for clients that schedule notifications. Durations are milliseconds.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/goal.go: GoalJSON and ActionJSON
*/
package api

import (
	"time"

	"github.com/warp/milestone-engine/factory"
	"github.com/warp/milestone-engine/milestone"
	"github.com/warp/milestone-engine/store"
)

// =============================================================================
// GOALS
// =============================================================================

// GoalDTO represents a stored goal in API responses.
type GoalDTO struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Status    string           `json:"status"`
	Version   int64            `json:"version"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Config    factory.GoalJSON `json:"config"`
}

// =============================================================================
// SCHEDULES
// =============================================================================

// MilestoneDTO is one scheduled checkpoint.
type MilestoneDTO struct {
	At          time.Time `json:"at"`
	TimestampMs int64     `json:"timestamp_ms"`
	Index       int       `json:"index"`
	Total       int       `json:"total"`
	IntervalMs  int64     `json:"interval_ms"`
	Progress    float64   `json:"progress"`
	Status      string    `json:"status"`
}

// TrackStatusDTO summarizes pace.
type TrackStatusDTO struct {
	State string `json:"state"`
	Count int    `json:"count"`
}

// IntervalModelDTO exposes the pacing curve endpoints.
type IntervalModelDTO struct {
	FirstIntervalMs int64  `json:"first_interval_ms"`
	LastIntervalMs  int64  `json:"last_interval_ms"`
	Curve           string `json:"curve"`
}

// EvaluationDTO is the full schedule view of a goal at one instant.
type EvaluationDTO struct {
	GoalID                 string           `json:"goal_id"`
	Direction              string           `json:"direction"`
	EvaluatedAt            time.Time        `json:"evaluated_at"`
	State                  string           `json:"state"`
	Track                  TrackStatusDTO   `json:"track"`
	TotalMilestones        int              `json:"total_milestones"`
	ActionCount            int              `json:"action_count"`
	MilestonesPassedByTime int              `json:"milestones_passed_by_time"`
	Remaining              int              `json:"remaining"`
	CurrentIntervalMs      int64            `json:"current_interval_ms"`
	Model                  IntervalModelDTO `json:"model"`
	Exhausted              bool             `json:"exhausted"`
	Complete               bool             `json:"complete"`
	Milestones             []MilestoneDTO   `json:"milestones"`
}

// NextMilestoneDTO answers "when is my next milestone?".
type NextMilestoneDTO struct {
	GoalID    string         `json:"goal_id"`
	Found     bool           `json:"found"`
	Milestone *MilestoneDTO  `json:"milestone,omitempty"`
	WaitMs    int64          `json:"wait_ms"`
	Track     TrackStatusDTO `json:"track"`
}

// =============================================================================
// ACTIONS
// =============================================================================

// ActionDTO is an action log entry. Timestamp is Unix seconds or RFC3339
// on input and Unix seconds on output.
type ActionDTO = factory.ActionJSON

// =============================================================================
// SCHEDULER
// =============================================================================

// SchedulerStatusDTO describes the background refresh loop.
type SchedulerStatusDTO struct {
	Enabled         bool       `json:"enabled"`
	Running         bool       `json:"running"`
	CheckIntervalMs int64      `json:"check_interval_ms"`
	LastRun         *time.Time `json:"last_run,omitempty"`
	NextRun         *time.Time `json:"next_run,omitempty"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the error body for every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toGoalDTO(rec store.GoalRecord, config factory.GoalJSON) GoalDTO {
	return GoalDTO{
		ID:        rec.ID,
		Name:      rec.Name,
		Status:    string(rec.Status),
		Version:   rec.Version,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
		Config:    config,
	}
}

// ToMilestoneDTO converts one engine milestone.
func ToMilestoneDTO(m milestone.Milestone) MilestoneDTO {
	return MilestoneDTO{
		At:          m.At,
		TimestampMs: m.TimestampMs(),
		Index:       m.Index,
		Total:       m.Total,
		IntervalMs:  m.Interval.Milliseconds(),
		Progress:    m.Progress,
		Status:      string(m.Status),
	}
}

// ToTrackStatusDTO converts a track summary.
func ToTrackStatusDTO(t milestone.TrackStatus) TrackStatusDTO {
	return TrackStatusDTO{State: string(t.State), Count: t.Count}
}

// ToEvaluationDTO converts an evaluation. The CLI's --json output uses it too.
func ToEvaluationDTO(ev *milestone.Evaluation) EvaluationDTO {
	dto := EvaluationDTO{
		GoalID:                 ev.GoalID,
		Direction:              string(ev.Direction),
		EvaluatedAt:            ev.Now,
		State:                  string(ev.State()),
		Track:                  ToTrackStatusDTO(ev.Track),
		TotalMilestones:        ev.TotalMilestones,
		ActionCount:            ev.ActionCount,
		MilestonesPassedByTime: ev.MilestonesPassedByTime,
		Remaining:              ev.Remaining,
		CurrentIntervalMs:      ev.CurrentInterval.Milliseconds(),
		Model: IntervalModelDTO{
			FirstIntervalMs: ev.Model.First.Milliseconds(),
			LastIntervalMs:  ev.Model.Last.Milliseconds(),
			Curve:           ev.Model.Curve.String(),
		},
		Exhausted:  ev.Exhausted,
		Complete:   ev.Complete,
		Milestones: make([]MilestoneDTO, len(ev.Milestones)),
	}
	for i, m := range ev.Milestones {
		dto.Milestones[i] = ToMilestoneDTO(m)
	}
	return dto
}
