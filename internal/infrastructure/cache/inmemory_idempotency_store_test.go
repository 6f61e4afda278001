package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cryptonexus/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClockedStore(t *testing.T) (*InMemoryIdempotencyStore, *time.Time) {
	t.Helper()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newInMemoryIdempotencyStore(func() time.Time { return clock }, time.Hour)
	t.Cleanup(func() { _ = store.Close() })
	return store, &clock
}

func TestInMemoryIdempotencyStore_ClaimExpiresWithTTL(t *testing.T) {
	ctx := context.Background()
	store, clock := newClockedStore(t)

	first, err := store.MarkProcessed(ctx, "OrderPaid:ORD-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.MarkProcessed(ctx, "OrderPaid:ORD-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, again)

	seen, _ := store.IsProcessed(ctx, "OrderPaid:ORD-1")
	assert.True(t, seen)

	*clock = clock.Add(time.Minute)
	seen, _ = store.IsProcessed(ctx, "OrderPaid:ORD-1")
	assert.False(t, seen, "claim ends exactly at its TTL")

	reclaimed, _ := store.MarkProcessed(ctx, "OrderPaid:ORD-1", time.Minute)
	assert.True(t, reclaimed)
}

func TestInMemoryIdempotencyStore_Release(t *testing.T) {
	ctx := context.Background()
	store, _ := newClockedStore(t)

	_, _ = store.MarkProcessed(ctx, "EscrowReleased:ORD-2", time.Hour)
	require.NoError(t, store.Release(ctx, "EscrowReleased:ORD-2"))

	retry, _ := store.MarkProcessed(ctx, "EscrowReleased:ORD-2", time.Hour)
	assert.True(t, retry, "released key can be claimed by the retry")
	assert.NoError(t, store.Release(ctx, "never-claimed"))
}

func TestInMemoryIdempotencyStore_Sweep(t *testing.T) {
	ctx := context.Background()
	store, clock := newClockedStore(t)

	_, _ = store.MarkProcessed(ctx, "short", time.Second)
	_, _ = store.MarkProcessed(ctx, "long", time.Hour)
	*clock = clock.Add(time.Minute)

	store.sweep()
	assert.Equal(t, 1, store.len())
	seen, _ := store.IsProcessed(ctx, "long")
	assert.True(t, seen)
}

func TestInMemoryIdempotencyStore_SingleWinner(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.MarkProcessed(context.Background(), "OrderCreated:ORD-3", time.Hour); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}

func TestInMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestRedisIdempotencyStore_OutageIsAnError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisIdempotencyStoreWithClient(client, "")

	_, err := store.MarkProcessed(context.Background(), "OrderPaid:ORD-4", time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OrderPaid:ORD-4")
	assert.NoError(t, store.Close(), "borrowed client is left to its owner")
}

func TestStores_FallbackToInMemory(t *testing.T) {
	cfg := config.RedisConfig{Host: "127.0.0.1", Port: 1}

	stores, err := NewStores(context.Background(), cfg, true, zap.NewNop())
	require.NoError(t, err)
	defer stores.Close()

	assert.Nil(t, stores.Client)
	assert.IsType(t, &InMemoryIdempotencyStore{}, stores.EventIdempotency)
	assert.NoError(t, stores.Ping(context.Background()))

	_, err = NewStores(context.Background(), cfg, false, zap.NewNop())
	assert.Error(t, err)
}
