package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trend-launch/internal/infra/metrics"
)

// Redis — разделяемые между репликами отметки планировщика.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis создаёт кэш.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Once выполняет fn, если ключ ещё не занят. При ошибке fn ключ освобождается для повтора.
func (c *Redis) Once(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	fullKey := c.prefix + key
	start := time.Now()
	ok, err := c.client.SetNX(ctx, fullKey, "1", ttl).Result()
	metrics.ObserveNetworkRequest("redis", "once", c.prefix, start, err)
	if err != nil {
		return false, fmt.Errorf("set once %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := fn(ctx); err != nil {
		_ = c.client.Del(context.WithoutCancel(ctx), fullKey).Err()
		return true, err
	}
	return true, nil
}

// SetTime сохраняет отметку времени.
func (c *Redis) SetTime(ctx context.Context, key string, t time.Time) error {
	start := time.Now()
	err := c.client.Set(ctx, c.prefix+key, t.UTC().Format(time.RFC3339Nano), 0).Err()
	metrics.ObserveNetworkRequest("redis", "set", c.prefix, start, err)
	return err
}

// GetTime возвращает отметку времени. Отсутствующий ключ — нулевое время без ошибки.
func (c *Redis) GetTime(ctx context.Context, key string) (time.Time, error) {
	start := time.Now()
	raw, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveNetworkRequest("redis", "get", c.prefix, start, nil)
		return time.Time{}, nil
	}
	metrics.ObserveNetworkRequest("redis", "get", c.prefix, start, err)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", key, err)
	}
	return t, nil
}
