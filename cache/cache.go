// Package cache memoizes milestone evaluations for rendering layers.
//
// The engine recomputes from scratch on every call; this package sits
// outside it and only has to guarantee that a hit equals a recomputation.
package cache

import (
	"sync"
	"time"

	"github.com/warp/milestone-engine/milestone"
)

// Key identifies one memoized evaluation. Version must change whenever
// the goal parameters or the action log change; NowBucket is the evaluation
// instant truncated to the cache bucket.
type Key struct {
	GoalID    string
	Version   int64
	NowBucket int64 // Unix milliseconds
}

// Cache memoizes milestone.Evaluate results. It is an explicit value owned by
// whoever renders (one per server or session), never package state.
//
// A hit must equal a recomputation, so Evaluate is always called with the
// bucket-truncated instant. Entries for a goal are dropped when a newer
// version of that goal is stored or on Invalidate.
type Cache struct {
	Bucket time.Duration

	mu      sync.Mutex
	entries map[Key]*milestone.Evaluation
	latest  map[string]int64
	hits    int
	misses  int
}

// New creates a cache that buckets "now" to the given resolution.
func New(bucket time.Duration) *Cache {
	if bucket <= 0 {
		bucket = time.Minute
	}
	return &Cache{
		Bucket:  bucket,
		entries: make(map[Key]*milestone.Evaluation),
		latest:  make(map[string]int64),
	}
}

// BucketTime truncates now to the cache bucket.
func (c *Cache) BucketTime(now time.Time) time.Time {
	return now.Truncate(c.Bucket)
}

// Key builds the cache key for a goal version at now.
func (c *Cache) Key(goalID string, version int64, now time.Time) Key {
	return Key{GoalID: goalID, Version: version, NowBucket: c.BucketTime(now).UnixMilli()}
}

// Evaluate returns the memoized evaluation for (goal, version, bucket(now)),
// computing and storing it on a miss.
func (c *Cache) Evaluate(g milestone.GoalSpec, version int64, actions []milestone.ActionRecord, now time.Time) (*milestone.Evaluation, error) {
	key := c.Key(g.ID, version, now)
	if ev, ok := c.Get(key); ok {
		return ev, nil
	}
	ev, err := milestone.Evaluate(g, actions, time.UnixMilli(key.NowBucket).UTC())
	if err != nil {
		return nil, err
	}
	c.Put(key, ev)
	return ev, nil
}

// Get returns a cached evaluation.
func (c *Cache) Get(key Key) (*milestone.Evaluation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ev, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return ev, ok
}

// Put stores an evaluation. Storing a newer version of a goal evicts every
// entry of its older versions.
func (c *Cache) Put(key Key, ev *milestone.Evaluation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.latest[key.GoalID]; ok && key.Version < v {
		return
	}
	if v, ok := c.latest[key.GoalID]; !ok || key.Version > v {
		c.evictLocked(key.GoalID)
		c.latest[key.GoalID] = key.Version
	}
	c.entries[key] = ev
}

// Invalidate drops every entry for a goal.
func (c *Cache) Invalidate(goalID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked(goalID)
	delete(c.latest, goalID)
}

// Len returns the number of cached evaluations.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit and miss counters.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *Cache) evictLocked(goalID string) {
	for k := range c.entries {
		if k.GoalID == goalID {
			delete(c.entries, k)
		}
	}
}
