package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ad-routing-service/internal/config"
)

// RedisStore maps the Store contract onto a Redis client. Batches run
// as MULTI/EXEC transactions.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, cfg config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) HGet(ctx context.Context, key, field string) ([]byte, error) {
	b, err := s.client.HGet(ctx, key, field).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("hget %s %s: %w", key, field, err)
	}
	return b, nil
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	m, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	out := make(map[string][]byte, len(m))
	for f, v := range m {
		out[f] = []byte(v)
	}
	return out, nil
}

func (s *RedisStore) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	n, err := s.client.HIncrBy(ctx, key, field, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("hincrby %s %s: %w", key, field, err)
	}
	return n, nil
}

func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", key, err)
	}
	return members, nil
}

func (s *RedisStore) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	members, err := s.client.ZRevRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange %s: %w", key, err)
	}
	return members, nil
}

func (s *RedisStore) ZScore(ctx context.Context, key, member string) (float64, error) {
	score, err := s.client.ZScore(ctx, key, member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("zscore %s %s: %w", key, member, err)
	}
	return score, nil
}

func (s *RedisStore) ZInterStore(ctx context.Context, dest string, keys []string) (int64, error) {
	n, err := s.client.ZInterStore(ctx, dest, &redis.ZStore{Keys: keys}).Result()
	if err != nil {
		return 0, fmt.Errorf("zinterstore %s: %w", dest, err)
	}
	return n, nil
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("del: %w", err)
	}
	return nil
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("expire %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Batch(ctx context.Context, fn func(p Pipeline)) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fn(redisPipeline{pipe: pipe, ctx: ctx})
		return nil
	})
	if err != nil {
		return fmt.Errorf("exec batch: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

type redisPipeline struct {
	pipe redis.Pipeliner
	ctx  context.Context
}

func (p redisPipeline) HSet(key, field string, value []byte) {
	p.pipe.HSet(p.ctx, key, field, value)
}

func (p redisPipeline) SAdd(key, member string) {
	p.pipe.SAdd(p.ctx, key, member)
}

func (p redisPipeline) SRem(key, member string) {
	p.pipe.SRem(p.ctx, key, member)
}

func (p redisPipeline) ZAdd(key string, score float64, member string) {
	p.pipe.ZAdd(p.ctx, key, redis.Z{Score: score, Member: member})
}

func (p redisPipeline) ZRem(key, member string) {
	p.pipe.ZRem(p.ctx, key, member)
}

func (p redisPipeline) Del(keys ...string) {
	p.pipe.Del(p.ctx, keys...)
}

func (p redisPipeline) Expire(key string, ttl time.Duration) {
	p.pipe.Expire(p.ctx, key, ttl)
}
