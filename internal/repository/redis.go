package repository

import (
	"context"
	"fmt"
	"time"

	"staysync/internal/config"

	"github.com/redis/go-redis/v9"
)

// RedisSyncStateRepository keeps per-host sync bookkeeping in redis.
type RedisSyncStateRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisSyncStateRepository(client *redis.Client, ttl time.Duration) *RedisSyncStateRepository {
	return &RedisSyncStateRepository{client: client, ttl: ttl}
}

func (r *RedisSyncStateRepository) GetLastSync(ctx context.Context, hostID string) (*time.Time, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, "last_sync:"+hostID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last sync from redis: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last sync timestamp: %w", err)
	}
	return &t, nil
}

func (r *RedisSyncStateRepository) SetLastSync(ctx context.Context, hostID string, at time.Time) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Set(ctx, "last_sync:"+hostID, at.Format(time.RFC3339Nano), r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set last sync in redis: %w", err)
	}
	return nil
}

func (r *RedisSyncStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	rlKey := "rate_limit:" + key
	count, err := r.client.Incr(ctx, rlKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, rlKey, window)
	}

	return count <= int64(limit), nil
}

// Ping verifies the redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Close closes the redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
