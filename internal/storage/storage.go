package storage

import (
	"context"
	"errors"
	"time"

	"ad-routing-service/internal/config"
)

// ErrNotFound is returned when a key or hash field does not exist.
var ErrNotFound = errors.New("not found")

// Pipeline queues commands for atomic execution inside Store.Batch.
// Commands are applied together; other operations never observe a
// partially applied batch.
type Pipeline interface {
	HSet(key, field string, value []byte)
	SAdd(key, member string)
	SRem(key, member string)
	ZAdd(key string, score float64, member string)
	ZRem(key, member string)
	Del(keys ...string)
	Expire(key string, ttl time.Duration)
}

// Store is the key-value contract the routing core runs on: hashes for
// records and counters, one set plus one sorted set per index cell,
// server-side sorted-set intersection, and atomic batches.
type Store interface {
	HGet(ctx context.Context, key, field string) ([]byte, error)
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)

	SMembers(ctx context.Context, key string) ([]string, error)

	// ZRevRange returns members ordered by descending score; stop=-1
	// means the last member.
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZScore(ctx context.Context, key, member string) (float64, error)
	// ZInterStore intersects the given sorted sets into dest, scoring
	// surviving members by the sum of their per-set scores.
	ZInterStore(ctx context.Context, dest string, keys []string) (int64, error)

	Del(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error

	Batch(ctx context.Context, fn func(p Pipeline)) error

	Ping(ctx context.Context) error
	Close() error
}

// Open builds the configured backend. The in-memory backend is meant
// for tests and store-less dev runs; everything else goes to Redis.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	if cfg.Redis.Addr == config.MemoryBackend {
		return NewMemoryStore(), nil
	}
	return NewRedisStore(ctx, cfg)
}
