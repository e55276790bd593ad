package intel

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// FeedCache stores known-phish URLs from bulk feeds. The memory backend
// serves single-instance deployments; the Redis backend lets a fleet share
// one feed download.
type FeedCache interface {
	// Add records a known-phish URL with the configured TTL.
	Add(ctx context.Context, url string) error
	// Contains reports whether a URL is in the cached feed.
	Contains(ctx context.Context, url string) (bool, error)
	// Len returns the number of cached entries (approximate for Redis).
	Len(ctx context.Context) (int, error)
}

// MemoryFeedCache is an in-process TTL cache over go-cache.
type MemoryFeedCache struct {
	c *gocache.Cache
}

// NewMemoryFeedCache creates a feed cache with the given entry TTL.
func NewMemoryFeedCache(ttl time.Duration) *MemoryFeedCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryFeedCache{c: gocache.New(ttl, 10*time.Minute)}
}

func (m *MemoryFeedCache) Add(_ context.Context, url string) error {
	m.c.Set(url, struct{}{}, gocache.DefaultExpiration)
	return nil
}

func (m *MemoryFeedCache) Contains(_ context.Context, url string) (bool, error) {
	_, ok := m.c.Get(url)
	return ok, nil
}

func (m *MemoryFeedCache) Len(_ context.Context) (int, error) {
	return m.c.ItemCount(), nil
}

// RedisFeedCache shares feed entries across instances via Redis.
type RedisFeedCache struct {
	rdb *redis.Client
	ttl time.Duration
}

const redisFeedPrefix = "phishmark:feed:"

// NewRedisFeedCache connects to Redis and verifies it is reachable.
func NewRedisFeedCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisFeedCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisFeedCache{rdb: rdb, ttl: ttl}, nil
}

func (r *RedisFeedCache) Add(ctx context.Context, url string) error {
	return r.rdb.Set(ctx, redisFeedPrefix+url, 1, r.ttl).Err()
}

func (r *RedisFeedCache) Contains(ctx context.Context, url string) (bool, error) {
	n, err := r.rdb.Exists(ctx, redisFeedPrefix+url).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisFeedCache) Len(ctx context.Context) (int, error) {
	var count int
	var cursor uint64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, redisFeedPrefix+"*", 1000).Result()
		if err != nil {
			return 0, err
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// Close releases the Redis connection.
func (r *RedisFeedCache) Close() error {
	return r.rdb.Close()
}
