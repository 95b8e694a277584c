// Package cache provides a Redis read-through cache for published posts.
// Caching is best effort: a cold or unreachable Redis degrades to store
// reads, never to errors.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
)

type PostCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewPostCache connects to Redis and verifies the connection.
func NewPostCache(redisURL string, ttl time.Duration) (*PostCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewPostCacheWithClient(client, ttl), nil
}

// NewPostCacheWithClient builds a cache around an existing client, used by
// tests running against miniredis.
func NewPostCacheWithClient(client *redis.Client, ttl time.Duration) *PostCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PostCache{client: client, prefix: "post:", ttl: ttl}
}

func (c *PostCache) key(postID string) string {
	return c.prefix + postID
}

// Get returns the cached post, or ok=false on a miss or any Redis failure.
func (c *PostCache) Get(ctx context.Context, postID string) (*domain.FullPost, bool) {
	raw, err := c.client.Get(ctx, c.key(postID)).Result()
	if err != nil {
		return nil, false
	}
	var post domain.FullPost
	if err := json.Unmarshal([]byte(raw), &post); err != nil {
		// Unreadable entries are dropped so the next read repopulates.
		c.client.Del(ctx, c.key(postID))
		return nil, false
	}
	return &post, true
}

// Set stores a post under its id with the configured TTL.
func (c *PostCache) Set(ctx context.Context, post *domain.FullPost) error {
	raw, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("marshal cached post: %w", err)
	}
	if err := c.client.Set(ctx, c.key(post.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache post: %w", err)
	}
	return nil
}

// Invalidate drops a post from the cache. Every write path calls this before
// returning so readers never see a stale body past one TTL.
func (c *PostCache) Invalidate(ctx context.Context, postID string) error {
	if err := c.client.Del(ctx, c.key(postID)).Err(); err != nil {
		return fmt.Errorf("invalidate cached post: %w", err)
	}
	return nil
}

func (c *PostCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *PostCache) Close() error {
	return c.client.Close()
}
