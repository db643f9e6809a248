package counter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// CountFunc fetches the authoritative participant count from storage
type CountFunc func(ctx context.Context, challengeID int64) (int, error)

// Cache serves the participant count shown on challenge cards from Redis.
// The cached value may lag behind storage by up to the TTL; membership
// changes call Invalidate so the next read refreshes. Decision paths like
// capacity checks never read from here.
type Cache struct {
	client *redis.Client
	count  CountFunc
	ttl    time.Duration
}

// New creates the counter cache and verifies Redis connectivity
func New(address, password string, db int, ttl time.Duration, count CountFunc) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{client: client, count: count, ttl: ttl}, nil
}

func key(challengeID int64) string {
	return fmt.Sprintf("challenge:%d:participants", challengeID)
}

// Get returns the display participant count, refreshing the cache on a
// miss. A Redis failure falls through to storage rather than erroring.
func (c *Cache) Get(ctx context.Context, challengeID int64) (int, error) {
	cached, err := c.client.Get(ctx, key(challengeID)).Result()
	if err == nil {
		if count, perr := strconv.Atoi(cached); perr == nil {
			return count, nil
		}
	} else if err != redis.Nil {
		slog.Warn("participant counter read failed", "error", err, "challenge_id", challengeID)
	}

	count, err := c.count(ctx, challengeID)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}

	if err := c.client.Set(ctx, key(challengeID), count, c.ttl).Err(); err != nil {
		slog.Warn("participant counter write failed", "error", err, "challenge_id", challengeID)
	}
	return count, nil
}

// Invalidate drops the cached count after a membership change
func (c *Cache) Invalidate(ctx context.Context, challengeID int64) {
	if err := c.client.Del(ctx, key(challengeID)).Err(); err != nil {
		slog.Warn("participant counter invalidation failed", "error", err, "challenge_id", challengeID)
	}
}

// HealthCheck verifies Redis connectivity
func (c *Cache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}
