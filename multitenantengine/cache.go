package multitenantengine

import (
	"sync/atomic"
	"time"

	"github.com/processgpt/dmnrules/rules"
)

// Snapshot is an immutable, fully built rule index for one scope
type Snapshot struct {
	Tenant   string
	Owner    string
	Version  uint64
	LoadedAt time.Time

	Engine   *rules.Engine
	Models   int
	Warnings []error
}

// Tables returns the snapshot's decision tables in load order
func (s *Snapshot) Tables() []*rules.DecisionTable {
	return s.Engine.Tables()
}

// CacheConfig holds configuration for snapshot freshness
type CacheConfig struct {
	// TTL is how long a snapshot is served before the next query reloads it.
	// Set to 0 for no expiration (reload only on demand, schedule or file change).
	TTL time.Duration

	// RefreshOnInvalidate reloads immediately on Invalidate instead of at the next query
	RefreshOnInvalidate bool
}

// DefaultCacheConfig returns no TTL and lazy refresh after invalidation
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:                 0,
		RefreshOnInvalidate: false,
	}
}

// SnapshotCache holds the current snapshot of one scope.
// Readers never block; a new snapshot replaces the old one in a single atomic store.
type SnapshotCache struct {
	current atomic.Pointer[Snapshot]
	valid   atomic.Bool
	config  CacheConfig
}

// NewSnapshotCache creates an empty cache
func NewSnapshotCache(config CacheConfig) *SnapshotCache {
	return &SnapshotCache{config: config}
}

// Get returns the current snapshot, or nil before the first successful load.
// The snapshot is returned even when expired so stale rules keep serving.
func (c *SnapshotCache) Get() *Snapshot {
	return c.current.Load()
}

// Set publishes a new snapshot
func (c *SnapshotCache) Set(s *Snapshot) {
	c.current.Store(s)
	c.valid.Store(true)
}

// Invalidate marks the snapshot for reload. The snapshot itself stays available.
func (c *SnapshotCache) Invalidate() {
	c.valid.Store(false)
}

// IsValid reports whether a snapshot exists and is neither invalidated nor expired
func (c *SnapshotCache) IsValid() bool {
	s := c.current.Load()
	if s == nil || !c.valid.Load() {
		return false
	}

	if c.config.TTL > 0 {
		return time.Since(s.LoadedAt) <= c.config.TTL
	}

	return true
}
