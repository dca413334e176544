// Package cache provides a Redis-backed answer cache for the query service.
// Failures degrade to cache misses so a down Redis never blocks a query.
package cache

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long cached answers stay valid.
const DefaultTTL = 24 * time.Hour

// client is the minimal Redis surface the cache needs.
type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// AnswerCache stores rendered answers keyed by the query that produced them.
type AnswerCache struct {
	rdb client
	ttl time.Duration
	log *slog.Logger
}

// New creates an AnswerCache around an existing Redis client.
func New(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *AnswerCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &AnswerCache{rdb: rdb, ttl: ttl, log: log}
}

// Key derives the cache key for a speaker, topic, and model triple. The same
// triple always maps to the same key.
func Key(speaker, topic, model string) string {
	sum := sha256.Sum256([]byte(speaker + "|" + topic + "|" + model))
	return fmt.Sprintf("answer:%x", sum)
}

// Get returns the cached answer for key, or false on a miss.
func (c *AnswerCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache get failed", "key", key, "error", err)
		}
		return "", false
	}
	return val, true
}

// Put stores an answer under key for the configured TTL.
func (c *AnswerCache) Put(ctx context.Context, key, answer string) {
	if err := c.rdb.Set(ctx, key, answer, c.ttl).Err(); err != nil {
		c.log.Warn("cache put failed", "key", key, "error", err)
	}
}
