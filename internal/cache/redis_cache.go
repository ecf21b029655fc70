package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const settingsKey = "loyalty:settings"

type RedisSettingsCache struct {
	client *redis.Client
	key    string
}

func NewRedisSettingsCache(addr string, password string, db int) *RedisSettingsCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisSettingsCache{client: client, key: settingsKey}
}

func (c *RedisSettingsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisSettingsCache) Close() error {
	return c.client.Close()
}

func (c *RedisSettingsCache) Get(ctx context.Context) (map[string]string, bool, error) {
	val, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("Get: %w", err)
	}

	var values map[string]string
	if err := json.Unmarshal(val, &values); err != nil {
		return nil, false, fmt.Errorf("Get: decode: %w", err)
	}
	return values, true, nil
}

func (c *RedisSettingsCache) Set(ctx context.Context, values map[string]string, ttl time.Duration) error {
	if values == nil {
		return nil
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("Set: encode: %w", err)
	}
	if err := c.client.Set(ctx, c.key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("Set: %w", err)
	}
	return nil
}

func (c *RedisSettingsCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("Invalidate: %w", err)
	}
	return nil
}
