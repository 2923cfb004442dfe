// Package cache provides the process-wide read-through TTL cache used to
// front expensive aggregate queries. Concurrent readers are safe, writers
// overwrite atomically per key, and entries expire by age — there is no
// invalidation protocol beyond overwrite-on-miss.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	inserted time.Time
}

// TTL is a time-bounded key/value cache.
type TTL[V any] struct {
	mu  sync.RWMutex
	ttl time.Duration
	now func() time.Time
	m   map[string]entry[V]
}

// New creates a cache whose entries live for ttl.
func New[V any](ttl time.Duration) *TTL[V] {
	return &TTL[V]{
		ttl: ttl,
		now: time.Now,
		m:   make(map[string]entry[V]),
	}
}

// Get returns the live value for key, if any.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.inserted) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, replacing any previous entry.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	c.m[key] = entry[V]{value: value, inserted: c.now()}
	c.mu.Unlock()
}

// GetOrLoad returns the cached value for key or runs loader and caches its
// result. A loader error is returned uncached so the next call retries.
func (c *TTL[V]) GetOrLoad(key string, loader func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := loader()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, v)
	return v, nil
}

// Purge drops every expired entry. Optional housekeeping; reads already
// ignore stale entries.
func (c *TTL[V]) Purge() {
	now := c.now()
	c.mu.Lock()
	for k, e := range c.m {
		if now.Sub(e.inserted) >= c.ttl {
			delete(c.m, k)
		}
	}
	c.mu.Unlock()
}

// Len reports the number of stored entries, including expired ones not yet
// purged.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
