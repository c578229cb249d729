package auth

import (
	"sync"
	"time"
)

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// TimedCache stores credentials in memory with per-entry expiry. Expiry is
// checked lazily on read; there is no eviction goroutine. Values are replaced
// wholesale, never mutated in place, so a Get racing a Set observes either
// the old entry or the new one, never a partial write.
//
// Credentials are held only in process memory, never persisted.
type TimedCache[V any] struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry[V]
}

// NewTimedCache creates an empty cache.
func NewTimedCache[V any]() *TimedCache[V] {
	return &TimedCache[V]{entries: make(map[string]cacheEntry[V])}
}

// Get returns the value for key if present and unexpired.
func (c *TimedCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !time.Now().Before(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the given lifetime.
func (c *TimedCache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[V]{value: value, expiresAt: time.Now().Add(ttl)}
}

// ExpiresAt returns the expiry of the entry for key, or the zero time if the
// entry is absent.
func (c *TimedCache[V]) ExpiresAt(key string) time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[key].expiresAt
}

// Delete removes the entry for key, if any.
func (c *TimedCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes every entry.
func (c *TimedCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry[V])
}
