// Package cache provides a thread-safe in-memory store with per-entry
// expiration, used to memoize fetched credential data and verification
// results.
//
// Expiry is lazy: Get removes an expired entry and reports it as missing,
// so stale data is never returned. CleanupExpired exists for callers that
// want to reclaim memory proactively.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL is used by Set when the cache was built without an explicit
// default.
const DefaultTTL = 5 * time.Minute

// entry is a cached value with its expiration bookkeeping. Entries are
// owned exclusively by the cache; values go in and out by copy.
type entry struct {
	value     interface{}
	createdAt time.Time
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// Cache is a concurrent expiring key→value store. All operations are
// atomic under an RWMutex; no operation can observe a half-updated entry.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration
}

// New creates a cache. A non-positive defaultTTL falls back to DefaultTTL.
func New(defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Cache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
	}
}

// Get returns the value for key, or (nil, false) if the key is absent or
// expired. Expired entries are removed on the way out.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(time.Now()) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the cache's default TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.SetTTL(key, value, c.defaultTTL)
}

// SetTTL stores value under key with an explicit TTL. A non-positive ttl
// uses the default.
func (c *Cache) SetTTL(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now()

	c.mu.Lock()
	c.entries[key] = entry{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	c.mu.Unlock()
}

// Delete removes key and reports whether it was present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// CleanupExpired removes every expired entry and returns how many were
// removed.
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Size returns the number of entries, including not-yet-collected expired
// ones.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TTL returns the remaining time to live for key. The second return is
// false when the key is absent or expired.
func (c *Cache) TTL(key string) (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	remaining := time.Until(e.expiresAt)
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}

var (
	defaultCache *Cache
	defaultOnce  sync.Once
)

// Default returns the lazily-initialized process-wide cache. Components
// accept a *Cache through their constructors and fall back to this
// instance; it is a convenience, not ambient state library internals
// reach for directly.
func Default() *Cache {
	defaultOnce.Do(func() {
		defaultCache = New(DefaultTTL)
	})
	return defaultCache
}
