package network

import (
	"github.com/civforge/civsim/internal/engine"
	"github.com/civforge/civsim/internal/infra/cache"
)

// SnapshotBroadcaster feeds each tick's snapshot to the hub's viewers. It
// satisfies engine.Recorder so serve mode can fan snapshots out alongside the
// durable recorders. The optional state cache keeps the latest snapshot for
// viewers that connect mid-run.
type SnapshotBroadcaster struct {
	hub   *Hub
	state *cache.StateCache
}

func NewSnapshotBroadcaster(hub *Hub) *SnapshotBroadcaster {
	return &SnapshotBroadcaster{hub: hub}
}

// WithStateCache also mirrors every snapshot into the cache.
func (b *SnapshotBroadcaster) WithStateCache(c *cache.StateCache) *SnapshotBroadcaster {
	b.state = c
	return b
}

// Ready always succeeds: viewers are optional and a run without any is fine.
func (b *SnapshotBroadcaster) Ready() error { return nil }

func (b *SnapshotBroadcaster) Record(snap engine.Snapshot) error {
	if b.state != nil {
		b.state.SetSnapshot(snap)
	}
	b.hub.Broadcast(MessageSnapshot, snap)
	return nil
}

// AnnounceRunEnd tells viewers how the run terminated.
func (b *SnapshotBroadcaster) AnnounceRunEnd(result engine.RunResult) {
	b.hub.Broadcast(MessageRunEnd, result)
}
