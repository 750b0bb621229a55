package category

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/saturnines/commerce-export/pkg/config"
	"github.com/saturnines/commerce-export/pkg/errors"
	"github.com/saturnines/commerce-export/pkg/normalize"
)

// Cache memoizes normalized categories across lookups.
type Cache interface {
	Get(ctx context.Context, id string) (normalize.Category, bool, error)
	Set(ctx context.Context, c normalize.Category) error
	Close() error
}

// MemoryCache lives for one run.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]normalize.Category
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]normalize.Category)}
}

func (m *MemoryCache) Get(_ context.Context, id string) (normalize.Category, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.items[id]
	return c, ok, nil
}

func (m *MemoryCache) Set(_ context.Context, c normalize.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[c.ID] = c
	return nil
}

// Len returns the number of cached categories
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryCache) Close() error { return nil }

// RedisCache shares category lookups between runs. Entries are JSON encoded
// and expire after ttl.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(client *redis.Client, ttl time.Duration, prefix string) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, prefix: prefix}
}

func (r *RedisCache) key(id string) string { return r.prefix + id }

func (r *RedisCache) Get(ctx context.Context, id string) (normalize.Category, bool, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return normalize.Category{}, false, nil
		}
		return normalize.Category{}, false, fmt.Errorf("failed to get category from cache: %w", err)
	}

	var c normalize.Category
	if err := json.Unmarshal(data, &c); err != nil {
		return normalize.Category{}, false, fmt.Errorf("failed to unmarshal category: %w", err)
	}
	return c, true, nil
}

func (r *RedisCache) Set(ctx context.Context, c normalize.Category) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal category: %w", err)
	}
	if err := r.client.Set(ctx, r.key(c.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set category in cache: %w", err)
	}
	return nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

// NewCache builds the cache configured by cfg. A redis cache is pinged
// before it is returned.
func NewCache(ctx context.Context, cfg config.Cache) (Cache, error) {
	switch cfg.Type {
	case config.CacheMemory, "":
		return NewMemoryCache(), nil
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return NewRedisCache(client, cfg.Redis.TTL, cfg.Redis.Prefix), nil
	default:
		return nil, errors.Config("unknown cache type %q", cfg.Type)
	}
}
