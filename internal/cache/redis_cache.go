package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"kiranapos/backend/internal/domain"
)

type RedisSearchCache struct {
	client *redis.Client
}

func NewRedisSearchCache(addr string, password string, db int) *RedisSearchCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisSearchCache{client: client}
}

func (c *RedisSearchCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisSearchCache) Close() error {
	return c.client.Close()
}

func (c *RedisSearchCache) Get(ctx context.Context, key string) ([]domain.CatalogHit, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var hits []domain.CatalogHit
	if err := json.Unmarshal([]byte(val), &hits); err != nil {
		return nil, false, err
	}
	return hits, true, nil
}

func (c *RedisSearchCache) Set(ctx context.Context, key string, hits []domain.CatalogHit, ttl time.Duration) error {
	if hits == nil {
		return nil
	}
	payload, err := json.Marshal(hits)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}
