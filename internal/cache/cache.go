// internal/cache/cache.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Analytics responses change only when a sync rewrites the aggregates, so a
// short TTL plus explicit invalidation keeps reads cheap without staleness.
const defaultTTL = 5 * time.Minute

// Cache is an optional redis read cache. A nil *Cache is valid and treats
// every lookup as a miss, so callers never branch on whether redis is
// configured.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New connects to redis using the given URL. An empty URL disables caching
// and returns a nil cache.
func New(redisURL string, logger *slog.Logger) (*Cache, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return &Cache{
		client: redis.NewClient(opts),
		ttl:    defaultTTL,
		logger: logger,
	}, nil
}

// Key builds a per-user cache key under the analytics namespace.
func Key(userID uuid.UUID, parts ...string) string {
	key := "analytics:" + userID.String()
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

// GetJSON loads a cached value into dest, reporting whether it was found.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) bool {
	if c == nil {
		return false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn("Cache entry corrupt, dropping", "key", key, "error", err)
		c.client.Del(ctx, key)
		return false
	}
	return true
}

// SetJSON stores a value under key with the cache TTL. Failures are logged
// and ignored; the cache is never load-bearing.
func (c *Cache) SetJSON(ctx context.Context, key string, value any) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("Cache write failed", "key", key, "error", err)
	}
}

// InvalidateUser removes every cached analytics entry for one user. Called
// after a sync or data deletion rewrites the stored aggregates.
func (c *Cache) InvalidateUser(ctx context.Context, userID uuid.UUID) {
	if c == nil {
		return
	}
	pattern := "analytics:" + userID.String() + ":*"
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Warn("Cache invalidation failed", "key", iter.Val(), "error", err)
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("Cache scan failed", "pattern", pattern, "error", err)
	}
}
