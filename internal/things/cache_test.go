package things

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestRedis connects to REDIS_ADDR (default localhost:6379), skipping when Redis is unavailable
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not reachable, skipping cache test: %v", err)
	}

	require.NoError(t, client.FlushDB(context.Background()).Err())
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		client.Close()
	})
	return client
}

func TestCachedStoreReadThrough(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	inner := NewInMemoryStore()
	store := NewCachedStore(inner, client, time.Minute, zap.NewNop())

	created := seed(t, store, "cached")[0]

	got, err := store.GetThing(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "cached", got.Name)

	exists, err := client.Exists(ctx, cacheKey(created.ID)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	// a write behind the cache's back is hidden until the entry is invalidated
	stale := created.Clone()
	stale.Name = "changed underneath"
	require.NoError(t, inner.UpdateThing(ctx, stale))

	got, err = store.GetThing(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "cached", got.Name)

	fresh := created.Clone()
	fresh.Name = "changed through cache"
	require.NoError(t, store.UpdateThing(ctx, fresh))

	got, err = store.GetThing(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "changed through cache", got.Name)
}

func TestCachedStoreDeleteInvalidates(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	store := NewCachedStore(NewInMemoryStore(), client, time.Minute, zap.NewNop())

	created := seed(t, store, "doomed")[0]
	_, err := store.GetThing(ctx, created.ID)
	require.NoError(t, err)

	require.NoError(t, store.DeleteThing(ctx, created.ID))

	_, err = store.GetThing(ctx, created.ID)
	assert.True(t, IsNotFound(err))
}

func TestCachedStoreFallsThroughWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	store := NewCachedStore(NewInMemoryStore(), client, time.Minute, zap.NewNop())
	created := seed(t, store, "resilient")[0]

	got, err := store.GetThing(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "resilient", got.Name)

	require.NoError(t, store.DeleteThing(ctx, created.ID))
}

// interleavingStore runs during() after reading a record and before returning it,
// so a write can land between a cache miss and the cache fill
type interleavingStore struct {
	ThingStore
	during func()
}

func (s *interleavingStore) GetThing(ctx context.Context, id int64) (*Thing, error) {
	thing, err := s.ThingStore.GetThing(ctx, id)
	if s.during != nil {
		during := s.during
		s.during = nil
		during()
	}
	return thing, err
}

func TestCachedStoreSkipsFillAfterConcurrentInvalidation(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	inner := &interleavingStore{ThingStore: NewInMemoryStore()}
	store := NewCachedStore(inner, client, time.Minute, zap.NewNop())

	created := seed(t, store, "before")[0]

	inner.during = func() {
		changed := created.Clone()
		changed.Name = "after"
		require.NoError(t, store.UpdateThing(ctx, changed))
	}

	got, err := store.GetThing(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "before", got.Name)

	exists, err := client.Exists(ctx, cacheKey(created.ID)).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)

	got, err = store.GetThing(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", got.Name)
}

func TestCachedStoreSkipsFillAfterConcurrentDelete(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	inner := &interleavingStore{ThingStore: NewInMemoryStore()}
	store := NewCachedStore(inner, client, time.Minute, zap.NewNop())

	created := seed(t, store, "doomed")[0]
	inner.during = func() {
		require.NoError(t, store.DeleteThing(ctx, created.ID))
	}

	_, err := store.GetThing(ctx, created.ID)
	require.NoError(t, err)

	_, err = store.GetThing(ctx, created.ID)
	assert.True(t, IsNotFound(err))
}

func TestCachedStoreUncached(t *testing.T) {
	inner := NewInMemoryStore()
	store := NewCachedStore(inner, nil, time.Minute, zap.NewNop())

	var layer CacheLayer = store
	assert.Same(t, inner, layer.Uncached())
}
