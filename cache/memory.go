package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is a process-local VerdictCache. Used in development and
// tests; production deployments point at the badger backend instead.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	verdict   string
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
	}
}

// Get implements VerdictCache
func (c *MemoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return "", false, nil
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return "", false, nil
	}
	return entry.verdict, true, nil
}

// Set implements VerdictCache
func (c *MemoryCache) Set(ctx context.Context, key, verdict string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultVerdictTTL
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{
		verdict:   verdict,
		expiresAt: time.Now().Add(ttl),
	}
	c.mu.Unlock()
	return nil
}

// Close implements VerdictCache
func (c *MemoryCache) Close() error {
	return nil
}

var _ VerdictCache = (*MemoryCache)(nil)
