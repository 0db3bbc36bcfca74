package cache

import (
	"sync"
	"time"
)

// Entry represents a cached value with expiration
type Entry struct {
	Value     interface{}
	StoredAt  time.Time
	ExpiresAt time.Time
}

// Cache is a simple in-memory cache with TTL
type Cache struct {
	mu    sync.RWMutex
	items map[string]*Entry
	now   func() time.Time
}

// NewWithClock creates a cache that reads time from now (time.Now when nil).
func NewWithClock(now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{items: map[string]*Entry{}, now: now}
}

// Set stores a value in the cache with a given TTL
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.items[key] = &Entry{
		Value:     value,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

// Get retrieves a value from the cache if it hasn't expired
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, exists := c.items[key]
	if !exists {
		return nil, false
	}
	if !c.now().Before(entry.ExpiresAt) {
		return nil, false
	}
	return entry.Value, true
}

// GetStale retrieves an unexpired value and reports whether it was stored
// more than maxAge ago. Stale values are still returned.
func (c *Cache) GetStale(key string, maxAge time.Duration) (value interface{}, stale, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, exists := c.items[key]
	if !exists {
		return nil, false, false
	}
	now := c.now()
	if !now.Before(entry.ExpiresAt) {
		return nil, false, false
	}
	return entry.Value, now.Sub(entry.StoredAt) >= maxAge, true
}

// Update replaces the value of a live entry with fn's result, keeping its
// expiry. Missing or expired keys are left alone and Update returns false.
// fn runs under the cache lock and must not call back into the cache.
func (c *Cache) Update(key string, fn func(interface{}) interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, exists := c.items[key]
	if !exists || !c.now().Before(entry.ExpiresAt) {
		return false
	}
	c.items[key] = &Entry{
		Value:     fn(entry.Value),
		StoredAt:  entry.StoredAt,
		ExpiresAt: entry.ExpiresAt,
	}
	return true
}

// Delete removes a key from the cache
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Purge drops expired entries and returns how many were removed
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for key, entry := range c.items {
		if !now.Before(entry.ExpiresAt) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
