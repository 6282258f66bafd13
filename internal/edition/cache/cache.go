// Package cache keeps read-through copies of published editions in Redis.
// Concurrent misses for the same key are collapsed with singleflight.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/redis"
)

const (
	keyPrefix  = "edition:"
	latestKey  = keyPrefix + "latest"
	listPrefix = keyPrefix + "list:"
)

// KV is the subset of the Redis client the cache needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type EditionCache struct {
	client  KV
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New returns a cache storing entries for ttl. m may be nil.
func New(client KV, ttl time.Duration, m *metrics.Metrics) *EditionCache {
	return &EditionCache{
		client:  client,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "edition-cache"),
	}
}

// Edition returns the edition for date, loading it on a miss.
func (c *EditionCache) Edition(ctx context.Context, date string, load func() (*signal.Edition, error)) (*signal.Edition, bool, error) {
	return getOrCompute(ctx, c, dateKey(date), load)
}

// Latest returns the newest edition, loading it on a miss.
func (c *EditionCache) Latest(ctx context.Context, load func() (*signal.Edition, error)) (*signal.Edition, bool, error) {
	return getOrCompute(ctx, c, latestKey, load)
}

// List returns edition summaries, loading them on a miss.
func (c *EditionCache) List(ctx context.Context, limit int, load func() ([]signal.EditionSummary, error)) ([]signal.EditionSummary, bool, error) {
	return getOrCompute(ctx, c, fmt.Sprintf("%s%d", listPrefix, limit), load)
}

// Invalidate drops the cached edition for date together with the latest
// and list entries it may appear in.
func (c *EditionCache) Invalidate(ctx context.Context, date string) error {
	if err := c.client.Del(ctx, dateKey(date), latestKey); err != nil {
		return fmt.Errorf("invalidating edition %s: %w", date, err)
	}
	deleted, err := c.client.FlushByPattern(ctx, listPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating edition lists: %w", err)
	}
	c.logger.Info("cache invalidate", "date", date, "list_keys_deleted", deleted)
	return nil
}

func (c *EditionCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func getOrCompute[T any](ctx context.Context, c *EditionCache, key string, load func() (T, error)) (T, bool, error) {
	var zero T
	if v, ok := get[T](ctx, c, key); ok {
		return v, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := get[T](ctx, c, key); ok {
			return v, nil
		}
		v, err := load()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, v)
		return v, nil
	})
	if err != nil {
		return zero, false, err
	}
	return val.(T), false, nil
}

func get[T any](ctx context.Context, c *EditionCache, key string) (T, bool) {
	var v T
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.recordMiss()
		return v, false
	}
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.recordMiss()
		return v, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.EditionCacheHitsTotal.Inc()
	}
	return v, true
}

func (c *EditionCache) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *EditionCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.EditionCacheMissTotal.Inc()
	}
}

func dateKey(date string) string {
	return keyPrefix + "date:" + date
}
