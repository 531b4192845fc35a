package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jinzhu/copier"
	"github.com/redis/go-redis/v9"

	"github.com/room4-2/accessai/config"
)

const mapDataKey = "accessai:mapdata:last"

// MapDataCache remembers the most recent place search so a later
// show_live_map call can display it.
type MapDataCache interface {
	// Last returns the latest entry, or nil when there is none.
	Last(ctx context.Context) (*SideData, error)
	Put(ctx context.Context, data *SideData) error
}

// MemoryMapCache keeps the last entry in process memory. Callers always get
// their own copy.
type MemoryMapCache struct {
	mu   sync.RWMutex
	last *SideData
}

// NewMemoryMapCache creates an empty in-memory cache.
func NewMemoryMapCache() *MemoryMapCache {
	return &MemoryMapCache{}
}

func (c *MemoryMapCache) Last(_ context.Context) (*SideData, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return nil, nil
	}
	return cloneSideData(c.last)
}

func (c *MemoryMapCache) Put(_ context.Context, data *SideData) error {
	if data == nil {
		return nil
	}
	cp, err := cloneSideData(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.last = cp
	c.mu.Unlock()
	return nil
}

func cloneSideData(src *SideData) (*SideData, error) {
	var dst SideData
	if err := copier.CopyWithOption(&dst, src, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("failed to copy map data: %w", err)
	}
	return &dst, nil
}

// RedisMapCache stores the last entry in Redis so every process sharing the
// instance sees the same places.
type RedisMapCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisMapCache creates a cache whose entries expire after ttl.
func NewRedisMapCache(client *redis.Client, ttl time.Duration) *RedisMapCache {
	return &RedisMapCache{client: client, ttl: ttl}
}

func (c *RedisMapCache) Last(ctx context.Context) (*SideData, error) {
	raw, err := c.client.Get(ctx, mapDataKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read map data: %w", err)
	}

	var data SideData
	if err := sonic.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode map data: %w", err)
	}
	return &data, nil
}

func (c *RedisMapCache) Put(ctx context.Context, data *SideData) error {
	if data == nil {
		return nil
	}
	raw, err := sonic.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode map data: %w", err)
	}
	if err := c.client.Set(ctx, mapDataKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store map data: %w", err)
	}
	return nil
}

// ConnectRedis returns a client for cfg.RedisURL, or nil when Redis does
// not answer a ping.
func ConnectRedis(cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		// Redis unavailable, continue without it
		client.Close()
		return nil
	}
	return client
}

// NewMapCache picks Redis when client is non-nil and memory otherwise.
func NewMapCache(client *redis.Client, ttl time.Duration) MapDataCache {
	if client == nil {
		return NewMemoryMapCache()
	}
	return NewRedisMapCache(client, ttl)
}
