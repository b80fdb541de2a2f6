package metadata

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedFetcher is a read-through Redis cache in front of another Fetcher.
// Cache failures are logged and ignored; the cache only ever makes a fetch
// cheaper, never makes it fail.
type CachedFetcher struct {
	inner Fetcher
	rdb   *redis.Client
	ttl   time.Duration
	log   *slog.Logger
}

// NewCachedFetcher wraps inner with a Redis cache. Content behind a CID is
// immutable, so the TTL exists only to bound memory.
func NewCachedFetcher(inner Fetcher, rdb *redis.Client, ttl time.Duration, log *slog.Logger) *CachedFetcher {
	if log == nil {
		log = slog.Default()
	}
	return &CachedFetcher{inner: inner, rdb: rdb, ttl: ttl, log: log}
}

func cacheKey(cid string) string { return "metadata:" + cid }

func (c *CachedFetcher) Fetch(ctx context.Context, cid string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, cacheKey(cid)).Bytes()
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.log.Warn("metadata cache read failed", "cid", cid, "err", err)
	}

	data, err = c.inner.Fetch(ctx, cid)
	if err != nil {
		return nil, err
	}

	if err := c.rdb.Set(ctx, cacheKey(cid), data, c.ttl).Err(); err != nil {
		c.log.Warn("metadata cache write failed", "cid", cid, "err", err)
	}
	return data, nil
}
