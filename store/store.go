/*
Package store defines persistence for the collaborators around the engine.

PURPOSE:
  The milestone engine is pure and owns no storage. Goals and the action
  log live here, behind interfaces, so the API and the refresh scheduler
  can load inputs for the engine and record goal lifecycle changes.

KEY INTERFACES:
  GoalStore: Goal definitions (as factory JSON) and lifecycle state
  ActionLog: Append-only log of user actions
  Store:     Both of the above

APPEND-ONLY ACTION LOG:
  Actions are never updated or deleted. Every append bumps the log
  version, which feeds the schedule cache key so a new action can never
  be answered from a stale cached schedule.

VERSIONING:
  Goals carry a Version bumped on every write (definition or status).
  CacheVersion combines it with the action log version.

IMPLEMENTATIONS:
  - store/sqlite: SQLite (mattn/go-sqlite3)
  - store/memory: In-memory for tests and dev

SEE ALSO:
  - milestone/errors.go: Sentinel errors returned by implementations
  - cache/cache.go: Consumes CacheVersion
*/
package store

import (
	"context"
	"time"

	"github.com/warp/milestone-engine/milestone"
)

// =============================================================================
// RECORDS
// =============================================================================

// GoalRecord is a stored goal. ConfigJSON is the factory.GoalJSON document
// the goal was created from.
type GoalRecord struct {
	ID         string
	Name       string
	ConfigJSON string
	Status     milestone.GoalState
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsActive reports whether the engine should still track the goal.
func (g GoalRecord) IsActive() bool {
	return g.Status == "" || g.Status == milestone.GoalActive
}

// =============================================================================
// INTERFACES
// =============================================================================

// GoalStore persists goal definitions and their lifecycle state.
type GoalStore interface {
	// SaveGoal inserts or replaces a goal definition and bumps its version.
	SaveGoal(ctx context.Context, goal GoalRecord) error

	// GetGoal returns nil, nil when the goal doesn't exist.
	GetGoal(ctx context.Context, id string) (*GoalRecord, error)

	// ListGoals returns all goals ordered by creation time.
	ListGoals(ctx context.Context) ([]GoalRecord, error)

	// SetGoalStatus changes the lifecycle state and bumps the version.
	// Returns milestone.ErrGoalNotFound for unknown goals.
	SetGoalStatus(ctx context.Context, id string, status milestone.GoalState) error
}

// ActionLog is the append-only action log.
type ActionLog interface {
	// AppendAction adds an action. Returns milestone.ErrDuplicateAction if
	// the ID already exists.
	AppendAction(ctx context.Context, action milestone.ActionRecord) error

	// ListActions returns actions at or after since, ordered by timestamp.
	ListActions(ctx context.Context, since time.Time) ([]milestone.ActionRecord, error)

	// ActionLogVersion increases with every append.
	ActionLogVersion(ctx context.Context) (int64, error)
}

// Store is everything the API needs.
type Store interface {
	GoalStore
	ActionLog
}

// logVersionBits leaves room for ~10^12 action appends before the goal
// version bits are touched.
const logVersionBits = 40

// CacheVersion combines a goal version and the action log version into a
// single value that increases whenever either does.
func CacheVersion(goalVersion, logVersion int64) int64 {
	return goalVersion<<logVersionBits | (logVersion & (1<<logVersionBits - 1))
}

// SinceSec converts a lower bound to fractional Unix seconds.
func SinceSec(since time.Time) float64 {
	if since.IsZero() {
		return 0
	}
	return float64(since.UnixMilli()) / 1000
}
