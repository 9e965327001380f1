package search

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultCacheMaxEntries bounds the result cache when no size is configured.
const DefaultCacheMaxEntries = 1000

// resultCache holds successful lookups per query. Entries expire after the
// TTL and are dropped in the background; when full, the least recently used
// query is evicted. A nil cache stores nothing.
type resultCache struct {
	lru *expirable.LRU[string, *Results]
}

// newResultCache returns nil when ttl disables caching.
func newResultCache(ttl time.Duration, maxEntries int) *resultCache {
	if ttl <= 0 {
		return nil
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	return &resultCache{lru: expirable.NewLRU[string, *Results](maxEntries, nil, ttl)}
}

func (c *resultCache) get(query string) (*Results, bool) {
	if c == nil {
		return nil, false
	}
	return c.lru.Get(query)
}

func (c *resultCache) put(query string, results *Results) {
	if c == nil {
		return
	}
	c.lru.Add(query, results)
}

func (c *resultCache) len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
