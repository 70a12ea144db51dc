package access

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "access:"

// Cache keeps resolved access contexts between requests of a session.
type Cache interface {
	Get(ctx context.Context, userID uuid.UUID) (Access, bool)
	Set(ctx context.Context, a Access)
	Delete(ctx context.Context, userID uuid.UUID)
}

// RedisCache stores Access as JSON under access:<user_id>.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache creates a Redis-backed access cache.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func cacheKey(userID uuid.UUID) string { return cacheKeyPrefix + userID.String() }

// Get returns the cached access. Errors count as a miss.
func (c *RedisCache) Get(ctx context.Context, userID uuid.UUID) (Access, bool) {
	raw, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("access cache get", zap.Error(err))
		}
		return Access{}, false
	}
	var a Access
	if err := json.Unmarshal(raw, &a); err != nil {
		c.logger.Warn("access cache decode", zap.Error(err))
		return Access{}, false
	}
	return a, true
}

// Set stores a with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, a Access) {
	raw, err := json.Marshal(a)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(a.UserID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("access cache set", zap.Error(err))
	}
}

// Delete removes the cached access of userID.
func (c *RedisCache) Delete(ctx context.Context, userID uuid.UUID) {
	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		c.logger.Warn("access cache delete", zap.Error(err))
	}
}
