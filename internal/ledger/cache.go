package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AvailabilityCache keeps derived stock snapshots in redis so storefront
// availability reads do not hit the primary on every request.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAvailabilityCache builds the cache with the given TTL.
func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AvailabilityCache{client: client, ttl: ttl}
}

func availabilityKey(businessID, productID int64) string {
	return fmt.Sprintf("ledger:availability:%d:%d", businessID, productID)
}

// Get returns the cached snapshot if present.
func (c *AvailabilityCache) Get(ctx context.Context, businessID, productID int64) (Snapshot, bool, error) {
	if c == nil || c.client == nil {
		return Snapshot{}, false, nil
	}
	raw, err := c.client.Get(ctx, availabilityKey(businessID, productID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

// Set stores the snapshot.
func (c *AvailabilityCache) Set(ctx context.Context, businessID, productID int64, snap Snapshot) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, availabilityKey(businessID, productID), raw, c.ttl).Err()
}

// Invalidate drops the cached snapshot after a movement.
func (c *AvailabilityCache) Invalidate(ctx context.Context, businessID, productID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, availabilityKey(businessID, productID)).Err()
}
