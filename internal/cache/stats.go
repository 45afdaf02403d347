// Package cache keeps read-through copies of driver statistics in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pkordes/tripfeed/internal/domain"
)

// DefaultStatsTTL is used when NewStatsCache is given a non-positive TTL.
const DefaultStatsTTL = 60 * time.Second

const driverStatsPrefix = "cache:driver_stats:"

// DriverStatsKey returns the Redis key holding the stats of driverID.
func DriverStatsKey(driverID string) string {
	return driverStatsPrefix + driverID
}

// NewClient parses a redis:// URL and verifies the server answers.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache.NewClient: parse url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache.NewClient: ping: %w", err)
	}
	return client, nil
}

// StatsCache stores domain.DriverStats as JSON under DriverStatsKey.
type StatsCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewStatsCache returns a StatsCache whose entries expire after ttl.
func NewStatsCache(client redis.Cmdable, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}
	return &StatsCache{client: client, ttl: ttl}
}

// GetDriverStats returns the cached stats of driverID. ok is false on a miss.
func (c *StatsCache) GetDriverStats(ctx context.Context, driverID string) (stats domain.DriverStats, ok bool, err error) {
	data, err := c.client.Get(ctx, DriverStatsKey(driverID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.DriverStats{}, false, nil
	}
	if err != nil {
		return domain.DriverStats{}, false, fmt.Errorf("cache.StatsCache.GetDriverStats: %w", err)
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		return domain.DriverStats{}, false, fmt.Errorf("cache.StatsCache.GetDriverStats: decode: %w", err)
	}
	return stats, true, nil
}

// SetDriverStats stores stats under its driver's key.
func (c *StatsCache) SetDriverStats(ctx context.Context, stats domain.DriverStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("cache.StatsCache.SetDriverStats: encode: %w", err)
	}
	if err := c.client.Set(ctx, DriverStatsKey(stats.DriverID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache.StatsCache.SetDriverStats: %w", err)
	}
	return nil
}

// invalidateChunk bounds the keys sent in one DEL.
const invalidateChunk = 500

// InvalidateDriverStats drops the cached stats of every listed driver.
func (c *StatsCache) InvalidateDriverStats(ctx context.Context, driverIDs ...string) error {
	for start := 0; start < len(driverIDs); start += invalidateChunk {
		end := min(start+invalidateChunk, len(driverIDs))
		keys := make([]string, 0, end-start)
		for _, id := range driverIDs[start:end] {
			keys = append(keys, DriverStatsKey(id))
		}
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("cache.StatsCache.InvalidateDriverStats: %w", err)
		}
	}
	return nil
}
