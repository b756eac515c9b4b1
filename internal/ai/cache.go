package ai

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/scanmarket-backend/pkg/redis"
)

// Cache stores suggestions keyed by a hash of the request.
type Cache interface {
	Get(ctx context.Context, key string) (Suggestion, bool, error)
	Set(ctx context.Context, key string, value Suggestion, ttl time.Duration) error
}

// RedisCache keeps suggestions in Redis so every API instance shares hits.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Suggestion, bool, error) {
	raw, err := c.client.Get(ctx, c.client.SuggestionKey(key))
	if errors.Is(err, goredis.Nil) {
		return Suggestion{}, false, nil
	}
	if err != nil {
		return Suggestion{}, false, err
	}
	var s Suggestion
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Suggestion{}, false, err
	}
	return s, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value Suggestion, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.client.SuggestionKey(key), payload, ttl)
}

type memoryEntry struct {
	value     Suggestion
	expiresAt time.Time
}

// MemoryCache is a process-local TTL cache used when Redis is not configured.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]memoryEntry{}, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Suggestion, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked()
	entry, ok := c.entries[key]
	if !ok {
		return Suggestion{}, false, nil
	}
	return entry.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value Suggestion, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked()
	c.entries[key] = memoryEntry{value: value, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) evictLocked() {
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}
