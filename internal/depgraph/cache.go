package depgraph

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheEntry is a memoized topological-sort result for a given node set
// (spec §4.6). Valid is false for a memoized cycle failure: Reason then
// holds the cycle's residual kinds, comma-joined, so a cache hit can
// reconstruct a *cerrs.Cycle without re-running Kahn's algorithm.
type CacheEntry struct {
	Valid bool
	// Order is the flattened topological order, kept for parity with the
	// spec's literal cache-entry shape.
	Order []string
	// Levels is the same order grouped by dependency level -- what the
	// executor actually consumes to decide which facets init concurrently.
	Levels [][]string
	Reason string
}

// Cache is a bounded, concurrency-safe memo of TopoSort results keyed by
// CacheKey(kinds). It wraps hashicorp/golang-lru/v2, which already
// provides the LRU eviction and locking spec §4.6 requires; a nil *Cache
// is valid and behaves as an always-miss cache, so callers that construct
// a planner without caching configured don't need a nil check at every
// call site.
type Cache struct {
	lru *lru.Cache[string, CacheEntry]
}

// DefaultCapacity is used by NewCache when capacity is not positive.
const DefaultCapacity = 100

// NewCache returns a Cache holding at most capacity entries, evicting the
// least recently used entry once full. A non-positive capacity falls back
// to DefaultCapacity.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c, err := lru.New[string, CacheEntry](capacity)
	if err != nil {
		// Only returned by golang-lru for a non-positive size, which
		// cannot happen here after the guard above.
		panic(err)
	}
	return &Cache{lru: c}
}

// Get returns the memoized entry for key, if present. A nil Cache always
// misses.
func (c *Cache) Get(key string) (CacheEntry, bool) {
	if c == nil {
		return CacheEntry{}, false
	}
	return c.lru.Get(key)
}

// Set memoizes entry under key. Calling Set on a nil Cache is a no-op.
func (c *Cache) Set(key string, entry CacheEntry) {
	if c == nil {
		return
	}
	c.lru.Add(key, entry)
}
