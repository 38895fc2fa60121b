package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides typed JSON caching on top of Client
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper; keys are stored as "<prefix>:<key>"
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

func (c *Cache) fullKey(key string) string {
	return fmt.Sprintf("%s:%s", c.prefix, key)
}

// Get retrieves a cached value. A miss (or disabled cache) returns false, nil.
// Corrupted entries are deleted and reported as a miss.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	fullKey := c.fullKey(key)
	data, err := c.client.Redis().Get(ctx, fullKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", fullKey, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		_ = c.client.Redis().Del(ctx, fullKey).Err()
		return false, nil
	}

	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	return c.client.Redis().Set(ctx, c.fullKey(key), data, ttl).Err()
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}
	return c.client.Redis().Del(ctx, c.fullKey(key)).Err()
}

// Predefined TTLs
const (
	TTLShort = 10 * time.Minute // 당일 시그널, 열린 구간 일봉
	TTLDaily = 24 * time.Hour   // 일봉 / 백테스트 결과
)

// BarsKey identifies a cached bar window for one symbol
func BarsKey(symbol, from, to string) string {
	return fmt.Sprintf("bars:%s:%s:%s", symbol, from, to)
}

// BacktestKey identifies a cached backtest result by config hash
func BacktestKey(hash string) string {
	return fmt.Sprintf("backtest:%s", hash)
}

// SignalKey identifies a cached daily signal
func SignalKey(date string) string {
	return fmt.Sprintf("signal:%s", date)
}
