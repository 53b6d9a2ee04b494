package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skillbridge/review-engine/internal/models"
)

const keyPrefix = "resolution:"

// RedisResolutionCache caches resolver results in Redis with a short TTL.
// Failures degrade to a cache miss: the read path must never fail because
// the cache is down.
type RedisResolutionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisResolutionCache creates a resolution cache over an existing
// Redis client
func NewRedisResolutionCache(client *redis.Client, ttl time.Duration) (*RedisResolutionCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &RedisResolutionCache{
		client: client,
		ttl:    ttl,
	}, nil
}

// Get returns a cached resolution, or (nil, false) on miss or error
func (c *RedisResolutionCache) Get(ctx context.Context, key models.DocumentKey) (*models.Resolution, bool) {
	data, err := c.client.Get(ctx, cacheKey(key)).Result()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("resolution cache read failed", "error", err)
		}
		return nil, false
	}

	var res models.Resolution
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		slog.Warn("resolution cache entry corrupt", "error", err)
		return nil, false
	}

	return &res, true
}

// Set stores a resolution with the configured TTL
func (c *RedisResolutionCache) Set(ctx context.Context, key models.DocumentKey, res *models.Resolution) {
	data, err := json.Marshal(res)
	if err != nil {
		slog.Warn("failed to marshal resolution for cache", "error", err)
		return
	}

	if err := c.client.Set(ctx, cacheKey(key), data, c.ttl).Err(); err != nil {
		slog.Warn("resolution cache write failed", "error", err)
	}
}

// Invalidate drops the cached resolution for a document key. Called by
// every write-path operation that can change the verdict.
func (c *RedisResolutionCache) Invalidate(ctx context.Context, key models.DocumentKey) {
	if err := c.client.Del(ctx, cacheKey(key)).Err(); err != nil {
		slog.Warn("resolution cache invalidation failed", "error", err)
	}
}

// Close closes the underlying Redis connection
func (c *RedisResolutionCache) Close() error {
	return c.client.Close()
}

func cacheKey(key models.DocumentKey) string {
	return fmt.Sprintf("%s%s:%s:%s", keyPrefix, key.StudentID, key.DocumentType, key.DocumentID)
}
