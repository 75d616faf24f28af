/*
Package sqlite provides a SQLite-backed implementation of store.Store.

PURPOSE:
  Persists goal definitions and the action log so the API server and the
  refresh scheduler survive restarts. The engine itself never touches the
  database; callers load a goal and its actions, then hand them to
  milestone.Evaluate.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the actions table
  - No DELETE statements on the actions table
  - The autoincrement seq column doubles as the action log version

KEY TABLES:
  goals:   Goal definitions as factory JSON, lifecycle status, version
  actions: Immutable log of user actions

INDEXES:
  - idx_actions_timestamp: ListActions(since) range scans (hot path)
  - idx_goals_created:     ListGoals ordering

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  st, err := sqlite.New("./data/milestones.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

SEE ALSO:
  - store/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/milestone-engine/milestone"
	"github.com/warp/milestone-engine/store"
)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	// Now stamps created_at/updated_at; defaults to time.Now.
	Now func() time.Time
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, Now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Goals (definition + lifecycle)
	CREATE TABLE IF NOT EXISTS goals (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		config_json TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_goals_created
		ON goals(created_at, id);

	-- Actions (append-only log)
	CREATE TABLE IF NOT EXISTS actions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT UNIQUE,
		timestamp_sec REAL NOT NULL,
		type TEXT NOT NULL DEFAULT '',
		amount TEXT,
		duration_sec REAL
	);

	CREATE INDEX IF NOT EXISTS idx_actions_timestamp
		ON actions(timestamp_sec, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// GOALS (store.GoalStore interface)
// =============================================================================

// SaveGoal upserts a goal. The first write gets version 1, every
// subsequent write bumps it. The original created_at is kept.
func (s *Store) SaveGoal(ctx context.Context, goal store.GoalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now().UTC()
	createdAt := goal.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	status := goal.Status
	if status == "" {
		status = milestone.GoalActive
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO goals (id, name, config_json, status, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			config_json = excluded.config_json,
			status = excluded.status,
			version = goals.version + 1,
			updated_at = excluded.updated_at
	`,
		goal.ID, goal.Name, goal.ConfigJSON, string(status),
		createdAt.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save goal: %w", err)
	}
	return nil
}

// GetGoal returns nil, nil when the goal doesn't exist.
func (s *Store) GetGoal(ctx context.Context, id string) (*store.GoalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, config_json, status, version, created_at, updated_at
		FROM goals WHERE id = ?
	`, id)

	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) ListGoals(ctx context.Context) ([]store.GoalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, config_json, status, version, created_at, updated_at
		FROM goals ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	var goals []store.GoalRecord
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func (s *Store) SetGoalStatus(ctx context.Context, id string, status milestone.GoalState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE goals SET status = ?, version = version + 1, updated_at = ?
		WHERE id = ?
	`, string(status), s.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("failed to set goal status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return milestone.ErrGoalNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGoal(row scanner) (store.GoalRecord, error) {
	var (
		g         store.GoalRecord
		status    string
		createdAt string
		updatedAt string
	)
	err := row.Scan(&g.ID, &g.Name, &g.ConfigJSON, &status, &g.Version, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return g, err
	}
	if err != nil {
		return g, fmt.Errorf("failed to scan goal: %w", err)
	}
	g.Status = milestone.GoalState(status)
	g.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	g.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return g, nil
}

// =============================================================================
// ACTION LOG (store.ActionLog interface)
// =============================================================================

// AppendAction adds an action. Returns milestone.ErrDuplicateAction when
// the ID is already logged.
func (s *Store) AppendAction(ctx context.Context, a milestone.ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var amount sql.NullString
	if a.Amount != nil {
		amount = sql.NullString{String: a.Amount.String(), Valid: true}
	}
	var duration sql.NullFloat64
	if a.DurationSec != nil {
		duration = sql.NullFloat64{Float64: *a.DurationSec, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (id, timestamp_sec, type, amount, duration_sec)
		VALUES (?, ?, ?, ?, ?)
	`, nullString(a.ID), a.TimestampSec, a.Type, amount, duration)
	if err != nil {
		if isUniqueConstraintError(err) {
			return milestone.ErrDuplicateAction
		}
		return fmt.Errorf("failed to append action: %w", err)
	}
	return nil
}

// ListActions returns actions at or after since, ordered by timestamp and
// then by insertion order.
func (s *Store) ListActions(ctx context.Context, since time.Time) ([]milestone.ActionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp_sec, type, amount, duration_sec
		FROM actions
		WHERE timestamp_sec >= ?
		ORDER BY timestamp_sec, seq
	`, store.SinceSec(since))
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	var actions []milestone.ActionRecord
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// ActionLogVersion is the highest seq handed out so far.
func (s *Store) ActionLogVersion(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM actions`).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read action log version: %w", err)
	}
	return v.Int64, nil
}

func scanAction(rows *sql.Rows) (milestone.ActionRecord, error) {
	var (
		a        milestone.ActionRecord
		id       sql.NullString
		amount   sql.NullString
		duration sql.NullFloat64
	)
	if err := rows.Scan(&id, &a.TimestampSec, &a.Type, &amount, &duration); err != nil {
		return a, fmt.Errorf("failed to scan action: %w", err)
	}
	a.ID = id.String
	if amount.Valid {
		if d, err := decimal.NewFromString(amount.String); err == nil {
			a.Amount = &d
		}
	}
	if duration.Valid {
		v := duration.Float64
		a.DurationSec = &v
	}
	return a, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

var _ store.Store = (*Store)(nil)
