package purchasing

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestSnapshotCache(t *testing.T) (*SnapshotCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSnapshotCache(client, time.Minute), mr
}

func TestSnapshotCacheRoundTrip(t *testing.T) {
	cache, _ := newTestSnapshotCache(t)
	ctx := context.Background()

	missing, err := cache.Get(ctx, 42)
	require.NoError(t, err)
	require.Nil(t, missing)

	recon := Reconciliation{
		PurchaseOrderID: 42,
		ReceivedValue:   decimal.NewFromInt(30000),
		PendingValue:    decimal.NewFromInt(20000),
		DeliveryStatus:  DeliveryPartial,
		ReceivedDisplay: "NGN 30,000.00",
		PendingDisplay:  "NGN 20,000.00",
	}
	require.NoError(t, cache.Set(ctx, 42, recon))

	got, err := cache.Get(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, recon.PurchaseOrderID, got.PurchaseOrderID)
	require.True(t, got.ReceivedValue.Equal(recon.ReceivedValue))
	require.Equal(t, DeliveryPartial, got.DeliveryStatus)

	require.NoError(t, cache.Invalidate(ctx, 42))
	gone, err := cache.Get(ctx, 42)
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestSnapshotCacheExpires(t *testing.T) {
	cache, mr := newTestSnapshotCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 7, Reconciliation{PurchaseOrderID: 7}))
	mr.FastForward(2 * time.Minute)

	got, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSnapshotCacheCorruptEntryIsAMiss(t *testing.T) {
	cache, mr := newTestSnapshotCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(snapshotKey(9), "{not json"))

	got, err := cache.Get(ctx, 9)
	require.NoError(t, err)
	require.Nil(t, got)
	require.False(t, mr.Exists(snapshotKey(9)))
}

func TestSnapshotCacheNilSafe(t *testing.T) {
	var cache *SnapshotCache
	ctx := context.Background()

	got, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, got)
	require.NoError(t, cache.Set(ctx, 1, Reconciliation{}))
	require.NoError(t, cache.Invalidate(ctx, 1))
}
