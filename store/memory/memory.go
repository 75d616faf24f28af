// Package memory provides an in-memory store.Store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/milestone-engine/milestone"
	"github.com/warp/milestone-engine/store"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	goals      map[string]store.GoalRecord
	actions    []milestone.ActionRecord // ordered by TimestampSec
	actionIDs  map[string]bool
	logVersion int64

	// Now stamps CreatedAt/UpdatedAt; defaults to time.Now.
	Now func() time.Time
}

func New() *Memory {
	return &Memory{
		goals:     make(map[string]store.GoalRecord),
		actionIDs: make(map[string]bool),
		Now:       time.Now,
	}
}

// =============================================================================
// GOALS
// =============================================================================

func (m *Memory) SaveGoal(_ context.Context, goal store.GoalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now().UTC()
	if existing, ok := m.goals[goal.ID]; ok {
		goal.Version = existing.Version + 1
		goal.CreatedAt = existing.CreatedAt
	} else {
		goal.Version = 1
		if goal.CreatedAt.IsZero() {
			goal.CreatedAt = now
		}
	}
	if goal.Status == "" {
		goal.Status = milestone.GoalActive
	}
	goal.UpdatedAt = now
	m.goals[goal.ID] = goal
	return nil
}

func (m *Memory) GetGoal(_ context.Context, id string) (*store.GoalRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.goals[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (m *Memory) ListGoals(_ context.Context) ([]store.GoalRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]store.GoalRecord, 0, len(m.goals))
	for _, g := range m.goals {
		result = append(result, g)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *Memory) SetGoalStatus(_ context.Context, id string, status milestone.GoalState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.goals[id]
	if !ok {
		return milestone.ErrGoalNotFound
	}
	g.Status = status
	g.Version++
	g.UpdatedAt = m.Now().UTC()
	m.goals[id] = g
	return nil
}

// =============================================================================
// ACTION LOG - Append-only
// =============================================================================

// AppendAction inserts in timestamp order.
func (m *Memory) AppendAction(_ context.Context, a milestone.ActionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.ID != "" && m.actionIDs[a.ID] {
		return milestone.ErrDuplicateAction
	}

	// Binary search for insertion point, stable for equal timestamps
	i := sort.Search(len(m.actions), func(i int) bool {
		return m.actions[i].TimestampSec > a.TimestampSec
	})
	m.actions = append(m.actions, milestone.ActionRecord{})
	copy(m.actions[i+1:], m.actions[i:])
	m.actions[i] = a

	if a.ID != "" {
		m.actionIDs[a.ID] = true
	}
	m.logVersion++
	return nil
}

func (m *Memory) ListActions(_ context.Context, since time.Time) ([]milestone.ActionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	from := store.SinceSec(since)
	i := sort.Search(len(m.actions), func(i int) bool {
		return m.actions[i].TimestampSec >= from
	})
	result := make([]milestone.ActionRecord, len(m.actions)-i)
	copy(result, m.actions[i:])
	return result, nil
}

func (m *Memory) ActionLogVersion(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.logVersion, nil
}

var _ store.Store = (*Memory)(nil)
