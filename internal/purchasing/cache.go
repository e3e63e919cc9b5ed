package purchasing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotCache stores reconciliation snapshots in Redis so queue views and
// dashboards do not recompute them per request.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache constructs a cache with the given TTL.
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SnapshotCache{client: client, ttl: ttl}
}

func snapshotKey(poID int64) string {
	return fmt.Sprintf("purchasing:recon:%d", poID)
}

// Get returns the cached snapshot, or nil on a miss.
func (c *SnapshotCache) Get(ctx context.Context, poID int64) (*Reconciliation, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, snapshotKey(poID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var recon Reconciliation
	if err := json.Unmarshal(raw, &recon); err != nil {
		// Corrupt entry; treat as a miss and let the caller rebuild it.
		_ = c.client.Del(ctx, snapshotKey(poID)).Err()
		return nil, nil
	}
	return &recon, nil
}

// Set stores a snapshot.
func (c *SnapshotCache) Set(ctx context.Context, poID int64, recon Reconciliation) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(recon)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, snapshotKey(poID), raw, c.ttl).Err()
}

// Invalidate drops the snapshot for an order.
func (c *SnapshotCache) Invalidate(ctx context.Context, poID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, snapshotKey(poID)).Err()
}
