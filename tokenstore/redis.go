package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Compile-time interface check.
var _ Backend = (*RedisBackend)(nil)

// RedisBackend stores tokens under tentacles:token:{service}, shared by every
// process pointed at the same Redis.
type RedisBackend struct {
	client *redis.Client
	// TTL expires stored tokens; zero keeps them until deleted.
	TTL time.Duration
}

func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func redisKey(service string) string {
	return "tentacles:token:" + service
}

func (r *RedisBackend) Get(ctx context.Context, service string) ([]byte, error) {
	data, err := r.client.Get(ctx, redisKey(service)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tokenstore/redis: get: %w", err)
	}
	return data, nil
}

func (r *RedisBackend) Put(ctx context.Context, service string, data []byte) error {
	if err := r.client.Set(ctx, redisKey(service), data, r.TTL).Err(); err != nil {
		return fmt.Errorf("tokenstore/redis: set: %w", err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, service string) error {
	if err := r.client.Del(ctx, redisKey(service)).Err(); err != nil {
		return fmt.Errorf("tokenstore/redis: delete: %w", err)
	}
	return nil
}
