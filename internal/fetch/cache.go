package fetch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/wonny/evidence/pkg/redis"
)

// Cache stores serialized field-class entries with a TTL
// ⭐ SSOT: 저장소 기술은 교체 가능 (memory, redis, tiered)
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// =============================================================================
// In-memory TTL cache
// =============================================================================

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is an in-process TTL map
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the entry if present and not expired
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return e.data, true, nil
}

// Set stores data until now+ttl
func (c *MemoryCache) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{
		data:      append([]byte(nil), data...),
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// Purge drops expired entries and returns how many were removed
func (c *MemoryCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired included
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// =============================================================================
// Redis cache
// =============================================================================

// RedisCache adapts pkg/redis.Cache; a disabled client behaves as an always-miss cache
type RedisCache struct {
	cache *redis.Cache
}

// NewRedisCache wraps a redis cache helper
func NewRedisCache(cache *redis.Cache) *RedisCache {
	return &RedisCache{cache: cache}
}

// Get reads the raw JSON entry
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var raw json.RawMessage
	found, err := c.cache.Get(ctx, key, &raw)
	if err != nil || !found {
		return nil, false, err
	}
	return raw, true, nil
}

// Set writes the raw JSON entry
func (c *RedisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.cache.Set(ctx, key, json.RawMessage(data), ttl)
}

// =============================================================================
// Tiered cache
// =============================================================================

// TieredCache checks a fast front cache before a shared back cache
// back 히트 시 front 를 frontTTL 로 채움
type TieredCache struct {
	front    Cache
	back     Cache
	frontTTL time.Duration
}

// NewTieredCache creates a two-level cache
func NewTieredCache(front, back Cache, frontTTL time.Duration) *TieredCache {
	return &TieredCache{front: front, back: back, frontTTL: frontTTL}
}

// Get checks front then back
func (c *TieredCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if data, ok, err := c.front.Get(ctx, key); err == nil && ok {
		return data, true, nil
	}

	data, ok, err := c.back.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = c.front.Set(ctx, key, data, c.frontTTL)
	return data, true, nil
}

// Set writes through to both levels
func (c *TieredCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	frontTTL := c.frontTTL
	if ttl < frontTTL {
		frontTTL = ttl
	}
	if err := c.front.Set(ctx, key, data, frontTTL); err != nil {
		return err
	}
	return c.back.Set(ctx, key, data, ttl)
}

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*RedisCache)(nil)
	_ Cache = (*TieredCache)(nil)
)
