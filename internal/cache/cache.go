package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"brewedAtAPI/internal/logger"
)

const (
	defaultTTL       = time.Minute
	defaultScanCount = 1000
)

// Cache is a JSON cache over Redis. A nil *Cache is valid and never hits.
type Cache struct {
	rdb       *redis.Client
	prefix    string
	scanCount int64
}

// New connects to redisURL. An empty URL returns a nil cache.
func New(ctx context.Context, redisURL, prefix string) (*Cache, error) {
	if redisURL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	opts.DialTimeout = 3 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewWithClient(rdb, prefix), nil
}

func NewWithClient(rdb *redis.Client, prefix string) *Cache {
	return &Cache{rdb: rdb, prefix: prefix, scanCount: defaultScanCount}
}

func (c *Cache) key(k string) string {
	return c.prefix + k
}

// GetJSON decodes the cached value into dst and reports a hit.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) bool {
	if c == nil {
		return false
	}
	b, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Sugar.Debugf("cache get failed key=%s err=%v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		logger.Sugar.Warnf("cache decode failed key=%s err=%v", key, err)
		return false
	}
	return true
}

func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	if c == nil {
		return
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(key), b, ttl).Err(); err != nil {
		logger.Sugar.Warnf("cache set failed key=%s err=%v", key, err)
	}
}

// InvalidatePrefix deletes every key under prefix. Keys are collected over the
// full SCAN before deleting so the iteration is not disturbed.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) {
	if c == nil {
		return
	}
	var (
		cursor uint64
		found  []string
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, c.key(prefix)+"*", c.scanCount).Result()
		if err != nil {
			logger.Sugar.Warnf("cache scan failed prefix=%s err=%v", prefix, err)
			break
		}
		found = append(found, keys...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	for len(found) > 0 {
		n := min(len(found), int(c.scanCount))
		if err := c.rdb.Del(ctx, found[:n]...).Err(); err != nil {
			logger.Sugar.Warnf("cache delete failed prefix=%s err=%v", prefix, err)
			return
		}
		found = found[n:]
	}
}

func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
