package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Redis implementation; keys are namespaced by prefix and never expire.
type RedisKVRepository struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisKVRepository(rdb redis.Cmdable, prefix string) *RedisKVRepository {
	if prefix == "" {
		prefix = "frontdesk:"
	}
	return &RedisKVRepository{rdb: rdb, prefix: prefix}
}

func (r *RedisKVRepository) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *RedisKVRepository) Set(ctx context.Context, key string, value []byte) error {
	return r.rdb.Set(ctx, r.prefix+key, value, 0).Err()
}

func (r *RedisKVRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, r.prefix+k)
	}
	return r.rdb.Del(ctx, full...).Err()
}
