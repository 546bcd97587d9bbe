package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/quicktrade/pkg/logger"
)

const (
	// DefaultTTL is the default TTL for cached prices
	DefaultTTL = 60 * time.Second

	// KeyPrefix is the prefix for price cache keys
	KeyPrefix = "quicktrade:price:"
)

// Cache represents a Redis-backed price cache
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewCache creates a new price cache with default TTL
func NewCache(client *redis.Client, log *logger.Logger) *Cache {
	return NewCacheWithTTL(client, DefaultTTL, log)
}

// NewCacheWithTTL creates a new price cache with custom TTL
func NewCacheWithTTL(client *redis.Client, ttl time.Duration, log *logger.Logger) *Cache {
	if log == nil {
		log = logger.NewDiscard()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: log.WithField("component", "cache"),
	}
}

// NewClient connects to Redis. url may be a redis:// URL or a host:port
// address; password overrides the one in the URL when set.
func NewClient(ctx context.Context, url, password string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	if password != "" {
		opts.Password = password
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// CachedPrice represents a cached price with metadata
type CachedPrice struct {
	Key       string          `json:"key"`
	Price     decimal.Decimal `json:"price"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func cacheKey(key string) string {
	return KeyPrefix + key
}

// Get retrieves a cached price
func (c *Cache) Get(ctx context.Context, key string) (decimal.Decimal, bool, error) {
	val, err := c.client.Get(ctx, cacheKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("cache miss", "key", key)
		return decimal.Zero, false, nil
	}
	if err != nil {
		c.logger.Error("cache error", "operation", "get", "key", key, "error", err)
		return decimal.Zero, false, fmt.Errorf("failed to get cached price: %w", err)
	}

	var cached CachedPrice
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to unmarshal cached price: %w", err)
	}

	c.logger.Debug("cache hit", "key", key)
	return cached.Price, true, nil
}

// Set stores a price with the cache TTL
func (c *Cache) Set(ctx context.Context, key string, price decimal.Decimal) error {
	return c.SetWithTTL(ctx, key, price, c.ttl)
}

// SetWithTTL stores a price in the cache with custom TTL
func (c *Cache) SetWithTTL(ctx context.Context, key string, price decimal.Decimal, ttl time.Duration) error {
	cached := CachedPrice{
		Key:       key,
		Price:     price,
		UpdatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal price: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(key), data, ttl).Err(); err != nil {
		c.logger.Error("cache error", "operation", "set", "key", key, "error", err)
		return fmt.Errorf("failed to set cached price: %w", err)
	}

	return nil
}

// Delete removes a cached price
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, cacheKey(key)).Err()
}

// Clear removes all cached prices
func (c *Cache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, KeyPrefix+"*", 0).Iterator()

	pipe := c.client.Pipeline()
	count := 0
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		count++
		if count >= 100 {
			if _, err := pipe.Exec(ctx); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			pipe = c.client.Pipeline()
			count = 0
		}
	}

	if count > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
	}

	return iter.Err()
}
