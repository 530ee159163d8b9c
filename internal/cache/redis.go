// Package cache keeps fetched pages and decoded tables in Redis so repeated
// requests for the same season do not hit the site again.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pagePrefix  = "collegebaseball:page:"
	tablePrefix = "collegebaseball:table:"
)

// RedisCache handles page and table caching.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects and pings.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// Client returns the underlying Redis client
func (rc *RedisCache) Client() *redis.Client {
	return rc.client
}

// HealthCheck pings Redis to verify connection
func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// PageKey derives the cache key for a page URL.
func PageKey(pageURL string) string {
	sum := sha256.Sum256([]byte(pageURL))
	return pagePrefix + hex.EncodeToString(sum[:])
}

// TableKey names a cached decoded table, e.g. TableKey("stats", "746", "2022", "batting").
func TableKey(parts ...string) string {
	key := tablePrefix
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += p
	}
	return key
}

// GetPage returns the cached body for key. A miss is (nil, false, nil).
func (rc *RedisCache) GetPage(ctx context.Context, key string) ([]byte, bool, error) {
	body, err := rc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

// SetPage stores a body with ttl.
func (rc *RedisCache) SetPage(ctx context.Context, key string, body []byte, ttl time.Duration) error {
	return rc.client.Set(ctx, key, body, ttl).Err()
}

// GetJSON decodes a cached value into dst. It reports false on a miss.
func (rc *RedisCache) GetJSON(ctx context.Context, key string, dst interface{}) (bool, error) {
	data, err := rc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decoding cached %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v as JSON with ttl.
func (rc *RedisCache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return rc.client.Set(ctx, key, data, ttl).Err()
}

// Delete removes keys.
func (rc *RedisCache) Delete(ctx context.Context, keys ...string) error {
	return rc.client.Del(ctx, keys...).Err()
}

// FlushPages drops every cached page. Tables are left alone.
func (rc *RedisCache) FlushPages(ctx context.Context) (int, error) {
	var n int
	iter := rc.client.Scan(ctx, 0, pagePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := rc.client.Del(ctx, iter.Val()).Err(); err != nil {
			return n, err
		}
		n++
	}
	return n, iter.Err()
}
