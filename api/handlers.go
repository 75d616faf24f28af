/*
handlers.go - HTTP API handlers for the milestone engine

PURPOSE:
  Exposes goal storage, the action log and milestone schedules via REST.
  Handles HTTP request/response and JSON serialization, and delegates the
  scheduling itself to the milestone package (through the schedule cache).

ENDPOINTS:
  Goals:
    GET    /api/goals                 List all goals
    POST   /api/goals                 Create or replace a goal from JSON
    GET    /api/goals/{id}            Get goal details
    POST   /api/goals/{id}/abandon    Stop tracking a goal
    GET    /api/goals/{id}/schedule   Reconciled schedule + track status
    GET    /api/goals/{id}/next       Next upcoming milestone

  Actions:
    GET    /api/actions               List logged actions (?since=)
    POST   /api/actions               Log an action

  Scheduler:
    GET    /api/scheduler             Refresh loop state and next run

  Schedule endpoints accept ?now=RFC3339 to evaluate at another instant.

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Goals and action log
  - Cache: Memoized evaluations keyed by (goal, version, bucketed now)
  - GoalFactory: JSON to GoalSpec conversion
  - Now: Clock, replaceable in tests

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (factory)
  3. Load goal + actions, evaluate through the cache
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Goal not found
  - 409: Duplicate action ID, goal no longer active
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: Background refresh of active goals
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/milestone-engine/cache"
	"github.com/warp/milestone-engine/factory"
	"github.com/warp/milestone-engine/milestone"
	"github.com/warp/milestone-engine/store"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       store.Store
	Cache       *cache.Cache
	GoalFactory *factory.GoalFactory

	// Scheduler is reported by GET /api/scheduler when set.
	Scheduler *RefreshScheduler

	// Now is the clock used when a request doesn't pin ?now=.
	Now func() time.Time
}

// NewHandler creates a new handler with the given store and cache.
func NewHandler(st store.Store, c *cache.Cache) *Handler {
	if c == nil {
		c = cache.New(time.Minute)
	}
	h := &Handler{
		Store:       st,
		Cache:       c,
		GoalFactory: factory.NewGoalFactory(),
		Now:         time.Now,
	}
	// Goals created without created_at start at the handler clock.
	h.GoalFactory.Now = func() time.Time { return h.Now() }
	return h
}

// loadedGoal is a stored goal with its parsed definition.
type loadedGoal struct {
	Record store.GoalRecord
	Spec   milestone.GoalSpec
	Config factory.GoalJSON
}

// loadGoal returns milestone.ErrGoalNotFound for unknown IDs.
func (h *Handler) loadGoal(ctx context.Context, id string) (*loadedGoal, error) {
	rec, err := h.Store.GetGoal(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, milestone.ErrGoalNotFound
	}
	return h.parseRecord(*rec)
}

func (h *Handler) parseRecord(rec store.GoalRecord) (*loadedGoal, error) {
	var gj factory.GoalJSON
	if err := json.Unmarshal([]byte(rec.ConfigJSON), &gj); err != nil {
		return nil, fmt.Errorf("stored goal %s is corrupt: %w", rec.ID, err)
	}
	spec, err := h.GoalFactory.FromJSON(gj)
	if err != nil {
		return nil, fmt.Errorf("stored goal %s is invalid: %w", rec.ID, err)
	}
	spec.ID = rec.ID
	return &loadedGoal{Record: rec, Spec: *spec, Config: gj}, nil
}

// evaluate runs the engine for a goal through the cache.
func (h *Handler) evaluate(ctx context.Context, g *loadedGoal, now time.Time) (*milestone.Evaluation, error) {
	actions, err := h.Store.ListActions(ctx, g.Spec.Start())
	if err != nil {
		return nil, err
	}
	logVersion, err := h.Store.ActionLogVersion(ctx)
	if err != nil {
		return nil, err
	}
	version := store.CacheVersion(g.Record.Version, logVersion)
	return h.Cache.Evaluate(g.Spec, version, actions, now)
}

// requestNow honours ?now=RFC3339, falling back to the handler clock.
func (h *Handler) requestNow(r *http.Request) (time.Time, error) {
	if s := r.URL.Query().Get("now"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("now must be RFC3339: %w", err)
		}
		return t.UTC(), nil
	}
	return h.Now().UTC(), nil
}

// =============================================================================
// GOAL ENDPOINTS
// =============================================================================

// ListGoals returns all goals.
// GET /api/goals
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListGoals(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list goals", err)
		return
	}

	dtos := make([]GoalDTO, 0, len(records))
	for _, rec := range records {
		var gj factory.GoalJSON
		if err := json.Unmarshal([]byte(rec.ConfigJSON), &gj); err != nil {
			log.Printf("[API] Skipping goal %s: corrupt config: %v", rec.ID, err)
			continue
		}
		dtos = append(dtos, toGoalDTO(rec, gj))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateGoal validates a goal document and stores it. An existing ID is
// replaced and its version bumped.
// POST /api/goals
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req factory.GoalJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	spec, err := h.GoalFactory.FromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid goal configuration", err)
		return
	}

	// Store the normalized document so defaults (created_at) are pinned.
	configJSON, err := h.GoalFactory.MarshalGoal(*spec, req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode goal", err)
		return
	}

	existing, err := h.Store.GetGoal(ctx, spec.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load goal", err)
		return
	}

	if err := h.Store.SaveGoal(ctx, store.GoalRecord{
		ID:         spec.ID,
		Name:       req.Name,
		ConfigJSON: configJSON,
		Status:     milestone.GoalActive,
		CreatedAt:  spec.CreatedAt,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save goal", err)
		return
	}
	h.Cache.Invalidate(spec.ID)

	g, err := h.loadGoal(ctx, spec.ID)
	if err != nil {
		writeDomainError(w, "Failed to load goal", err)
		return
	}

	status := http.StatusCreated
	if existing != nil {
		status = http.StatusOK
	}
	writeJSON(w, status, toGoalDTO(g.Record, g.Config))
}

// GetGoal returns a single goal.
// GET /api/goals/{id}
func (h *Handler) GetGoal(w http.ResponseWriter, r *http.Request) {
	g, err := h.loadGoal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to load goal", err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalDTO(g.Record, g.Config))
}

// AbandonGoal stops tracking an active goal.
// POST /api/goals/{id}/abandon
func (h *Handler) AbandonGoal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	g, err := h.loadGoal(ctx, id)
	if err != nil {
		writeDomainError(w, "Failed to load goal", err)
		return
	}
	if !g.Record.IsActive() {
		writeDomainError(w, "Goal cannot be abandoned", fmt.Errorf("%w: status is %s", milestone.ErrGoalNotActive, g.Record.Status))
		return
	}

	if err := h.Store.SetGoalStatus(ctx, id, milestone.GoalAbandoned); err != nil {
		writeDomainError(w, "Failed to abandon goal", err)
		return
	}
	h.Cache.Invalidate(id)

	g, err = h.loadGoal(ctx, id)
	if err != nil {
		writeDomainError(w, "Failed to load goal", err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalDTO(g.Record, g.Config))
}

// =============================================================================
// SCHEDULE ENDPOINTS
// =============================================================================

// GetSchedule returns the reconciled schedule with statuses and track summary.
// GET /api/goals/{id}/schedule?now=
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	now, err := h.requestNow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid now", err)
		return
	}
	g, err := h.loadGoal(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to load goal", err)
		return
	}

	ev, err := h.evaluate(ctx, g, now)
	if err != nil {
		writeDomainError(w, "Failed to evaluate goal", err)
		return
	}
	writeJSON(w, http.StatusOK, ToEvaluationDTO(ev))
}

// GetNextMilestone returns the first upcoming milestone and the wait until it.
// GET /api/goals/{id}/next?now=
func (h *Handler) GetNextMilestone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	now, err := h.requestNow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid now", err)
		return
	}
	g, err := h.loadGoal(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to load goal", err)
		return
	}

	ev, err := h.evaluate(ctx, g, now)
	if err != nil {
		writeDomainError(w, "Failed to evaluate goal", err)
		return
	}

	resp := NextMilestoneDTO{GoalID: g.Spec.ID, Track: ToTrackStatusDTO(ev.Track)}
	if m, wait, ok := milestone.NextMilestone(ev, now); ok {
		dto := ToMilestoneDTO(m)
		resp.Found = true
		resp.Milestone = &dto
		resp.WaitMs = wait.Milliseconds()
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// ACTION ENDPOINTS
// =============================================================================

// ListActions returns logged actions, optionally from ?since=RFC3339.
// GET /api/actions
func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if s := r.URL.Query().Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid since", err)
			return
		}
		since = t
	}

	actions, err := h.Store.ListActions(r.Context(), since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list actions", err)
		return
	}

	dtos := make([]ActionDTO, len(actions))
	for i, a := range actions {
		dtos[i] = factory.ToActionJSON(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAction appends to the action log. A missing timestamp means now;
// a missing ID gets a UUID.
// POST /api/actions
func (h *Handler) CreateAction(w http.ResponseWriter, r *http.Request) {
	var req ActionDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Timestamp) == 0 {
		now := h.Now().UTC()
		req.Timestamp = json.RawMessage(fmt.Sprintf("%d.%03d", now.Unix(), now.Nanosecond()/int(time.Millisecond)))
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	a, ok := factory.FromActionJSON(req)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid action", errors.New("timestamp must be positive Unix seconds or RFC3339"))
		return
	}

	if err := h.Store.AppendAction(r.Context(), a); err != nil {
		writeDomainError(w, "Failed to log action", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.ToActionJSON(a))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine and store errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case milestone.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, milestone.ErrDuplicateAction), errors.Is(err, milestone.ErrGoalNotActive):
		writeError(w, http.StatusConflict, message, err)
	case milestone.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// =============================================================================
// SCHEDULER ENDPOINT
// =============================================================================

// GetSchedulerStatus reports the refresh scheduler's state.
// GET /api/scheduler
func (h *Handler) GetSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	rs := h.Scheduler
	if rs == nil {
		writeJSON(w, http.StatusOK, SchedulerStatusDTO{})
		return
	}
	dto := SchedulerStatusDTO{
		Enabled:         rs.Enabled,
		Running:         rs.Running(),
		CheckIntervalMs: rs.CheckInterval.Milliseconds(),
	}
	if last := rs.LastRunTime(); !last.IsZero() {
		dto.LastRun = &last
	}
	if dto.Running {
		next := rs.GetNextRunTime()
		dto.NextRun = &next
	}
	writeJSON(w, http.StatusOK, dto)
}
