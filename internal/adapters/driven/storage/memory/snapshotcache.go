package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/archeo/internal/core/domain"
	"github.com/custodia-labs/archeo/internal/core/ports/driven"
)

// Ensure SnapshotCache implements the interface.
var _ driven.SnapshotCache = (*SnapshotCache)(nil)

// SnapshotCache is an in-memory implementation of driven.SnapshotCache.
// Snapshots are copied on the way in and out, so callers may modify them.
type SnapshotCache struct {
	mu        sync.RWMutex
	snapshots map[string]*domain.Snapshot
}

// NewSnapshotCache creates a new in-memory snapshot cache.
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{
		snapshots: make(map[string]*domain.Snapshot),
	}
}

// Get retrieves the snapshot for a content hash.
func (c *SnapshotCache) Get(_ context.Context, contentHash string) (*domain.Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.snapshots[contentHash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return snap.Clone(), nil
}

// Put stores or replaces a snapshot.
func (c *SnapshotCache) Put(_ context.Context, snap *domain.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[snap.ContentHash] = snap.Clone()
	return nil
}

// Delete removes a snapshot.
func (c *SnapshotCache) Delete(_ context.Context, contentHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshots, contentHash)
	return nil
}

// Prune removes snapshots written by any other version.
func (c *SnapshotCache) Prune(_ context.Context, keepVersion int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for hash, snap := range c.snapshots {
		if snap.Version != keepVersion {
			delete(c.snapshots, hash)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored snapshots.
func (c *SnapshotCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.snapshots)
}
