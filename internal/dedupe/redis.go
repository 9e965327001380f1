package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces dedupe keys in a shared Redis.
const DefaultRedisPrefix = "vaelis:dedupe:"

// RedisCache is a Cache backed by Redis. Each accepted fingerprint is
// stored with SET NX and an expiry equal to the window, so Redis both
// serializes concurrent checks and expires entries.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache creates a RedisCache using client.
func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		prefix: DefaultRedisPrefix,
	}
}

// CheckAndRecord implements Cache.
func (c *RedisCache) CheckAndRecord(ctx context.Context, content string) (bool, error) {
	set, err := c.client.SetNX(ctx, c.prefix+Fingerprint(content), 1, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe check failed: %w", err)
	}
	return set, nil
}
