package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/casevault/rateguard/internal/stats"
)

const statsCacheKey = "rateguard:stats"

// StatsRedisCache stores the latest aggregate snapshot in a Redis hash.
type StatsRedisCache struct {
	client *redis.Client
	key    string
}

// NewStatsRedisCache creates a Redis-backed stats cache.
func NewStatsRedisCache(client *redis.Client) *StatsRedisCache {
	return &StatsRedisCache{
		client: client,
		key:    statsCacheKey,
	}
}

func (c *StatsRedisCache) Exists(ctx context.Context) (bool, error) {
	n, err := c.client.Exists(ctx, c.key).Result()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (c *StatsRedisCache) LastUpdated(ctx context.Context) (time.Time, error) {
	raw, err := c.client.HGet(ctx, c.key, "updated_at").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, stats.ErrCacheMiss
		}

		return time.Time{}, err
	}

	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}

	return time.Unix(0, nanos), nil
}

func (c *StatsRedisCache) Put(ctx context.Context, snap stats.Snapshot) error {
	return c.client.HSet(ctx, c.key, map[string]interface{}{
		"total_hits":       snap.Counts.TotalHits,
		"active_blocks":    snap.Counts.ActiveBlocks,
		"total_violations": snap.Counts.TotalViolations,
		"updated_at":       snap.UpdatedAt.UnixNano(),
	}).Err()
}

func (c *StatsRedisCache) Get(ctx context.Context) (stats.Snapshot, error) {
	result, err := c.client.HGetAll(ctx, c.key).Result()
	if err != nil {
		return stats.Snapshot{}, err
	}

	if len(result) == 0 {
		return stats.Snapshot{}, stats.ErrCacheMiss
	}

	snap := stats.Snapshot{
		Counts: stats.Counts{
			TotalHits:       parseCount(result["total_hits"]),
			ActiveBlocks:    parseCount(result["active_blocks"]),
			TotalViolations: parseCount(result["total_violations"]),
		},
	}

	if nanos := parseCount(result["updated_at"]); nanos > 0 {
		snap.UpdatedAt = time.Unix(0, nanos)
	}

	return snap, nil
}

func parseCount(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}

	return n
}

// Compile-time check.
var _ stats.Cache = (*StatsRedisCache)(nil)
