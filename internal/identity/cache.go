package identity

import (
	"sync"
	"time"
)

// resolutionEntry is one cached identity resolution.
type resolutionEntry struct {
	tenantID     string
	resolved     bool
	expiresAt    time.Time
	lastAccessed time.Time
}

// resolutionCache is a thread-safe bounded cache with TTL expiry and LRU
// eviction. It holds suppliedID -> resolved tenant id mappings for the
// lifetime of the process; losing it is safe, resolution just repeats.
type resolutionCache struct {
	mu         sync.Mutex
	entries    map[string]*resolutionEntry
	ttl        time.Duration
	maxEntries int
}

func newResolutionCache(ttl time.Duration, maxEntries int) *resolutionCache {
	return &resolutionCache{
		entries:    make(map[string]*resolutionEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// get returns the cached resolution for id, honoring TTL expiry.
func (c *resolutionCache) get(id string) (string, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return "", false, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, id)
		return "", false, false
	}

	entry.lastAccessed = time.Now()
	return entry.tenantID, entry.resolved, true
}

// set stores a resolution, evicting the least recently used entry when at
// capacity.
func (c *resolutionCache) set(id, tenantID string, resolved bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[id]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLRU()
	}

	now := time.Now()
	c.entries[id] = &resolutionEntry{
		tenantID:     tenantID,
		resolved:     resolved,
		expiresAt:    now.Add(c.ttl),
		lastAccessed: now,
	}
}

// evictLRU removes the least recently accessed entry. Caller holds the lock.
func (c *resolutionCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time
	first := true

	for key, entry := range c.entries {
		if first || entry.lastAccessed.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.lastAccessed
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// invalidate removes one cached resolution.
func (c *resolutionCache) invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// len returns the current entry count.
func (c *resolutionCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
