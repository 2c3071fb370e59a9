// Package cache provides fast in-memory access to the latest simulation
// state (not the source of truth). Late-joining viewers read it instead of
// waiting for the next tick.
package cache

import (
	"sync"
	"time"

	"github.com/civforge/civsim/internal/engine"
)

// StateCache holds the most recent snapshot and run progress.
type StateCache struct {
	mu       sync.RWMutex
	snapshot engine.Snapshot
	hasSnap  bool
	updated  time.Time
}

// NewStateCache creates an empty cache.
func NewStateCache() *StateCache {
	return &StateCache{}
}

// SetSnapshot replaces the cached snapshot with the latest one.
func (c *StateCache) SetSnapshot(snap engine.Snapshot) {
	c.mu.Lock()
	c.snapshot = snap
	c.hasSnap = true
	c.updated = time.Now()
	c.mu.Unlock()
}

// Latest returns the most recent snapshot, if any tick has completed yet.
func (c *StateCache) Latest() (engine.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot, c.hasSnap
}

// UpdatedAt reports when the cache last changed.
func (c *StateCache) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updated
}

// Invalidate clears the cache, e.g. between runs.
func (c *StateCache) Invalidate() {
	c.mu.Lock()
	c.snapshot = engine.Snapshot{}
	c.hasSnap = false
	c.updated = time.Now()
	c.mu.Unlock()
}
