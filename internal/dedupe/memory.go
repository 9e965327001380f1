package dedupe

import (
	"context"
	"sync"
	"time"
)

// MemoryOption configures a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) { c.now = now }
}

// WithMaxEntries bounds the number of fingerprints held. When full, expired
// entries are dropped first and then the oldest entry is evicted. Zero
// means unbounded.
func WithMaxEntries(n int) MemoryOption {
	return func(c *MemoryCache) { c.maxEntries = n }
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	entries    map[string]time.Time
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates a MemoryCache with the given window.
func NewMemoryCache(ttl time.Duration, opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckAndRecord implements Cache. It never returns an error.
func (c *MemoryCache) CheckAndRecord(_ context.Context, content string) (bool, error) {
	key := Fingerprint(content)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if last, ok := c.entries[key]; ok && now.Sub(last) < c.ttl {
		return false, nil
	}

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.sweepLocked(now)
		if len(c.entries) >= c.maxEntries {
			c.evictOldestLocked()
		}
	}

	c.entries[key] = now
	return true, nil
}

// Sweep removes expired entries and returns how many were removed.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.now())
}

// Len returns the number of entries currently held, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Run sweeps every interval until ctx is done.
func (c *MemoryCache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

func (c *MemoryCache) sweepLocked(now time.Time) int {
	removed := 0
	for key, last := range c.entries {
		if now.Sub(last) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *MemoryCache) evictOldestLocked() {
	var (
		oldestKey  string
		oldestTime time.Time
		found      bool
	)
	for key, last := range c.entries {
		if !found || last.Before(oldestTime) {
			oldestKey, oldestTime, found = key, last, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
}
