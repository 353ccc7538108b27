package hierarchy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// StatsKey is the redis key holding one warehouse's child-count rollup.
// The background refresh job writes it; StatsCache reads it.
func StatsKey(warehouseID int64) string {
	return fmt.Sprintf("hierarchy:stats:%d", warehouseID)
}

// StatsCache reads the rollup the refresh job maintains, so stats requests
// do not recount the subtree on every hit.
type StatsCache struct {
	client *redis.Client
}

// NewStatsCache builds the cache.
func NewStatsCache(client *redis.Client) *StatsCache {
	return &StatsCache{client: client}
}

// Get returns the cached rollup if present.
func (c *StatsCache) Get(ctx context.Context, warehouseID int64) (Stats, bool, error) {
	if c == nil || c.client == nil {
		return Stats{}, false, nil
	}
	raw, err := c.client.Get(ctx, StatsKey(warehouseID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Stats{}, false, nil
		}
		return Stats{}, false, err
	}
	var stats Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return Stats{}, false, err
	}
	return stats, true, nil
}
