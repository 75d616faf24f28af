/*
errors.go - Centralized error types for the milestone engine

PURPOSE:
  The engine itself only fails on an invalid GoalSpec. Everything else
  (zero actions, zero elapsed time, a goal past its deadline) is a normal
  output state. Collaborators (stores, API) reuse the sentinels below so
  callers can classify failures with errors.Is.

ERROR CATEGORIES:
  1. Validation errors - GoalSpec violates an invariant
  2. Lookup errors - Goal or action missing in a store
  3. State errors - Operation not allowed for the goal's lifecycle state

SEE ALSO:
  - types.go: GoalSpec.Validate
  - store/store.go: Persistence errors
*/
package milestone

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidGoal is returned when a GoalSpec violates an invariant.
	ErrInvalidGoal = errors.New("invalid goal")

	// ErrGoalNotFound is returned when a referenced goal doesn't exist.
	ErrGoalNotFound = errors.New("goal not found")

	// ErrGoalNotActive is returned when an operation needs an active goal.
	ErrGoalNotActive = errors.New("goal is not active")

	// ErrDuplicateAction is returned when an action with the same ID exists.
	ErrDuplicateAction = errors.New("duplicate action")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// GoalValidationError names the offending GoalSpec field.
type GoalValidationError struct {
	Field  string
	Reason string
}

func (e *GoalValidationError) Error() string {
	return fmt.Sprintf("invalid goal: %s %s", e.Field, e.Reason)
}

func (e *GoalValidationError) Unwrap() error {
	return ErrInvalidGoal
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidGoal) ||
		errors.Is(err, ErrDuplicateAction) ||
		errors.Is(err, ErrGoalNotActive)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrGoalNotFound)
}
