// Package cache provides a thread-safe cache with per-entry expiration.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value   V
	expires time.Time
	added   uint64
}

// TTLCache is a thread-safe cache whose entries expire ttl after they were
// set. When maxEntries is reached, expired entries are dropped first and
// then the oldest entry.
type TTLCache[K comparable, V any] struct {
	mu         sync.RWMutex
	data       map[K]entry[V]
	ttl        time.Duration
	maxEntries int
	seq        uint64

	now func() time.Time
}

// New creates a cache. maxEntries <= 0 means unbounded.
func New[K comparable, V any](ttl time.Duration, maxEntries int) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		data:       make(map[K]entry[V]),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the value for key if present and not expired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.data[key]
	if !ok || !c.now().Before(e.expires) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, resetting its expiry.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists && c.maxEntries > 0 && len(c.data) >= c.maxEntries {
		c.evictLocked()
	}

	c.seq++
	c.data[key] = entry[V]{value: value, expires: c.now().Add(c.ttl), added: c.seq}
}

// evictLocked makes room for one entry. MUST be called with the write lock held.
func (c *TTLCache[K, V]) evictLocked() {
	if c.purgeLocked() > 0 {
		return
	}

	var (
		oldestKey K
		oldest    uint64
		found     bool
	)
	for k, e := range c.data {
		if !found || e.added < oldest {
			oldestKey, oldest, found = k, e.added, true
		}
	}
	if found {
		delete(c.data, oldestKey)
	}
}

// Delete removes key.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Purge drops expired entries and reports how many were removed.
func (c *TTLCache[K, V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeLocked()
}

func (c *TTLCache[K, V]) purgeLocked() int {
	now := c.now()
	n := 0
	for k, e := range c.data {
		if !now.Before(e.expires) {
			delete(c.data, k)
			n++
		}
	}
	return n
}

// Invalidate clears all cached data.
func (c *TTLCache[K, V]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[K]entry[V])
}

// Len returns the number of stored entries, expired ones included.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
