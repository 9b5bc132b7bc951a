package things

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CachedStore wraps a ThingStore with a Redis read-through cache for single lookups.
// Cache errors never fail a request; the wrapped store stays authoritative.
type CachedStore struct {
	ThingStore
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedStore creates a cache in front of store
func NewCachedStore(store ThingStore, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedStore {
	return &CachedStore{
		ThingStore: store,
		client:     client,
		ttl:        ttl,
		logger:     logger,
	}
}

func cacheKey(id int64) string {
	return fmt.Sprintf("thing:%d", id)
}

// versionKey is bumped by every invalidation; fills watch it so a read that
// overlaps an update or delete never writes its stale copy back
func versionKey(id int64) string {
	return fmt.Sprintf("thing:%d:version", id)
}

// Uncached returns the wrapped store
func (s *CachedStore) Uncached() ThingStore {
	return s.ThingStore
}

// GetThing serves from Redis when possible and fills the cache on a miss
func (s *CachedStore) GetThing(ctx context.Context, id int64) (*Thing, error) {
	data, err := s.client.Get(ctx, cacheKey(id)).Bytes()
	if err == nil {
		var thing Thing
		if err := json.Unmarshal(data, &thing); err == nil {
			return &thing, nil
		}
		s.logger.Warn("Discarding undecodable cache entry", zap.Int64("thing_id", id))
	} else if err != redis.Nil {
		s.logger.Warn("Cache read failed", zap.Int64("thing_id", id), zap.Error(err))
	}

	return s.load(ctx, id)
}

// UpdateThing updates the wrapped store and drops the cached copy
func (s *CachedStore) UpdateThing(ctx context.Context, thing *Thing) error {
	if err := s.ThingStore.UpdateThing(ctx, thing); err != nil {
		return err
	}
	s.invalidate(ctx, thing.ID)
	return nil
}

// DeleteThing deletes from the wrapped store and drops the cached copy
func (s *CachedStore) DeleteThing(ctx context.Context, id int64) error {
	if err := s.ThingStore.DeleteThing(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// load reads from the wrapped store and caches the result unless the record
// was invalidated while it was being read
func (s *CachedStore) load(ctx context.Context, id int64) (*Thing, error) {
	var (
		thing   *Thing
		loadErr error
		loaded  bool
	)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		thing, loadErr = s.ThingStore.GetThing(ctx, id)
		loaded = true
		if loadErr != nil {
			return nil
		}

		data, err := json.Marshal(thing)
		if err != nil {
			return fmt.Errorf("failed to encode thing for cache: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey(id), data, s.ttl)
			return nil
		})
		return err
	}, versionKey(id))

	if !loaded {
		s.logger.Warn("Cache unavailable, reading from store", zap.Int64("thing_id", id), zap.Error(err))
		return s.ThingStore.GetThing(ctx, id)
	}
	if loadErr != nil {
		return nil, loadErr
	}

	switch {
	case err == redis.TxFailedErr:
		s.logger.Debug("Skipped cache fill for concurrently modified thing", zap.Int64("thing_id", id))
	case err != nil:
		s.logger.Warn("Cache write failed", zap.Int64("thing_id", id), zap.Error(err))
	}
	return thing, nil
}

func (s *CachedStore) invalidate(ctx context.Context, id int64) {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(id))
		pipe.Expire(ctx, versionKey(id), s.ttl)
		pipe.Del(ctx, cacheKey(id))
		return nil
	})
	if err != nil {
		s.logger.Warn("Cache invalidation failed", zap.Int64("thing_id", id), zap.Error(err))
	}
}
