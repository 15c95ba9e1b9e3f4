// Package cache keeps recently resolved redirects in Redis (cache-aside).
//
// Entries expire after a short TTL so an edit becomes visible without explicit
// invalidation, but writers still invalidate to make the common case immediate.
// Slugs that do not exist are cached under a shorter TTL to keep probing for
// unknown paths off the database.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL     = 60 * time.Second
	DefaultMissTTL = 10 * time.Second

	keyPrefix   = "shortlink:"
	missingMark = "\x00"
)

var ErrMiss = errors.New("cache miss")

// Entry is a cached lookup result. Missing marks a slug known not to exist.
type Entry struct {
	URL     string
	Missing bool
}

type RedisCache struct {
	client  redis.Cmdable
	ttl     time.Duration
	missTTL time.Duration
}

func NewRedisCache(client redis.Cmdable, ttl, missTTL time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if missTTL <= 0 {
		missTTL = DefaultMissTTL
	}

	return &RedisCache{
		client:  client,
		ttl:     ttl,
		missTTL: missTTL,
	}
}

// Get returns ErrMiss when nothing is cached for slug.
func (c *RedisCache) Get(ctx context.Context, slug string) (Entry, error) {
	val, err := c.client.Get(ctx, key(slug)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, ErrMiss
		}
		return Entry{}, fmt.Errorf("redis get: %w", err)
	}

	if val == missingMark {
		return Entry{Missing: true}, nil
	}
	return Entry{URL: val}, nil
}

func (c *RedisCache) SetURL(ctx context.Context, slug, url string) error {
	if err := c.client.Set(ctx, key(slug), url, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) SetMissing(ctx context.Context, slug string) error {
	if err := c.client.Set(ctx, key(slug), missingMark, c.missTTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, slug string) error {
	if err := c.client.Del(ctx, key(slug)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func key(slug string) string {
	return keyPrefix + slug
}
