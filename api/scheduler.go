/*
scheduler.go - Background schedule refresh

PURPOSE:
  Periodically evaluates every active goal so that lifecycle changes are
  recorded even when nobody is looking at the goal, and so the schedule
  cache is warm for the next request.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Loads each active goal and its actions, evaluates through the cache
  - Logs track-state transitions (on_track → behind, ...)
  - Moves goals whose evaluation is terminal to completed / exceeded

CONFIGURATION:
  - CheckInterval: How often to refresh (default: 1 minute)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewRefreshScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: evaluate (shared evaluation path)
  - milestone/status.go: GoalStateFor
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/milestone-engine/milestone"
)

// RefreshSummary reports what one refresh pass did.
type RefreshSummary struct {
	Evaluated   int
	Transitions int
	Finished    int
	Failed      int
}

// RefreshScheduler re-evaluates active goals on a ticker.
type RefreshScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex

	stateMu sync.Mutex
	last    map[string]milestone.TrackState
	lastRun time.Time
}

// NewRefreshScheduler creates a new scheduler.
func NewRefreshScheduler(handler *Handler) *RefreshScheduler {
	return &RefreshScheduler{
		Handler:       handler,
		CheckInterval: time.Minute,
		Enabled:       true,
		stop:          make(chan bool),
		last:          make(map[string]milestone.TrackState),
	}
}

// Start begins the scheduler.
func (rs *RefreshScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan bool)
	rs.wg.Add(1)

	go rs.run()

	log.Printf("[Scheduler] Started with check interval: %v", rs.CheckInterval)
}

// Stop stops the scheduler.
func (rs *RefreshScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		log.Println("[Scheduler] Stopped")
	}
}

func (rs *RefreshScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.RunNow(context.Background())

	for {
		select {
		case <-rs.ticker.C:
			rs.RunNow(context.Background())
		case <-rs.stop:
			return
		}
	}
}

// RunNow performs one refresh pass at the handler's clock.
func (rs *RefreshScheduler) RunNow(ctx context.Context) RefreshSummary {
	h := rs.Handler
	now := h.Now().UTC()
	var sum RefreshSummary

	rs.stateMu.Lock()
	rs.lastRun = now
	rs.stateMu.Unlock()

	records, err := h.Store.ListGoals(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error listing goals: %v", err)
		return sum
	}

	for _, rec := range records {
		if !rec.IsActive() {
			continue
		}

		g, err := h.parseRecord(rec)
		if err != nil {
			log.Printf("[Scheduler] Skipping goal %s: %v", rec.ID, err)
			sum.Failed++
			continue
		}

		ev, err := h.evaluate(ctx, g, now)
		if err != nil {
			log.Printf("[Scheduler] Error evaluating goal %s: %v", rec.ID, err)
			sum.Failed++
			continue
		}
		sum.Evaluated++

		if rs.recordState(rec.ID, ev.Track.State) {
			sum.Transitions++
			log.Printf("[Scheduler] Goal %s is now %s (%d)", rec.ID, ev.Track.State, ev.Track.Count)
		}

		if state := ev.State(); state != milestone.GoalActive {
			if err := h.Store.SetGoalStatus(ctx, rec.ID, state); err != nil {
				log.Printf("[Scheduler] Error marking goal %s %s: %v", rec.ID, state, err)
				sum.Failed++
				continue
			}
			h.Cache.Invalidate(rec.ID)
			rs.forget(rec.ID)
			sum.Finished++
			log.Printf("[Scheduler] Goal %s finished: %s", rec.ID, state)
		}
	}

	if sum.Transitions > 0 || sum.Finished > 0 || sum.Failed > 0 {
		log.Printf("[Scheduler] Completed: %d evaluated, %d transitions, %d finished, %d failed",
			sum.Evaluated, sum.Transitions, sum.Finished, sum.Failed)
	}
	return sum
}

// recordState reports whether state differs from the last one seen.
// The first observation of a goal counts as a transition.
func (rs *RefreshScheduler) recordState(goalID string, state milestone.TrackState) bool {
	rs.stateMu.Lock()
	defer rs.stateMu.Unlock()

	prev, ok := rs.last[goalID]
	rs.last[goalID] = state
	return !ok || prev != state
}

func (rs *RefreshScheduler) forget(goalID string) {
	rs.stateMu.Lock()
	defer rs.stateMu.Unlock()
	delete(rs.last, goalID)
}

// Running reports whether the ticker goroutine is active.
func (rs *RefreshScheduler) Running() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.ticker != nil
}

// LastRunTime returns when the last refresh pass started, zero if none has.
func (rs *RefreshScheduler) LastRunTime() time.Time {
	rs.stateMu.Lock()
	defer rs.stateMu.Unlock()
	return rs.lastRun
}

// GetNextRunTime returns when the next scheduled check will occur.
func (rs *RefreshScheduler) GetNextRunTime() time.Time {
	if last := rs.LastRunTime(); !last.IsZero() {
		return last.Add(rs.CheckInterval)
	}
	return rs.Handler.Now().UTC().Add(rs.CheckInterval)
}
