package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_HashOps(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	_, err := st.HGet(ctx, "h", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = st.Batch(ctx, func(p Pipeline) {
		p.HSet("h", "a", []byte("1"))
		p.HSet("h", "b", []byte("2"))
	})
	require.NoError(t, err)

	v, err := st.HGet(ctx, "h", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	all, err := st.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	n, err := st.HIncrBy(ctx, "h", "a", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	n, err = st.HIncrBy(ctx, "h", "fresh", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryStore_ZRevRangeOrdering(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	err := st.Batch(ctx, func(p Pipeline) {
		p.ZAdd("z", 0.5, "a")
		p.ZAdd("z", 0.6, "b")
		p.ZAdd("z", 0.3, "c")
		p.ZAdd("z", 0.5, "d") // ties with a; reverse lex puts d first
	})
	require.NoError(t, err)

	got, err := st.ZRevRange(ctx, "z", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d", "a", "c"}, got)

	got, err = st.ZRevRange(ctx, "z", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d"}, got)

	got, err = st.ZRevRange(ctx, "z", 10, 20)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStore_ZAddRefreshesScore(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	_ = st.Batch(ctx, func(p Pipeline) { p.ZAdd("z", 0.1, "a") })
	_ = st.Batch(ctx, func(p Pipeline) { p.ZAdd("z", 0.9, "a") })

	score, err := st.ZScore(ctx, "z", "a")
	require.NoError(t, err)
	assert.Equal(t, 0.9, score)
}

func TestMemoryStore_ZInterStore(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	err := st.Batch(ctx, func(p Pipeline) {
		p.ZAdd("geo", 0.5, "a")
		p.ZAdd("geo", 0.6, "b")
		p.ZAdd("hour", 0.5, "a")
		p.ZAdd("hour", 0.7, "c")
	})
	require.NoError(t, err)

	n, err := st.ZInterStore(ctx, "dest", []string{"geo", "hour"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	score, err := st.ZScore(ctx, "dest", "a")
	require.NoError(t, err)
	assert.Equal(t, 1.0, score) // scores sum across inputs

	// a missing input key empties the intersection and the destination
	n, err = st.ZInterStore(ctx, "dest", []string{"geo", "nope"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	_, err = st.ZScore(ctx, "dest", "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_SetOps(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	_ = st.Batch(ctx, func(p Pipeline) {
		p.SAdd("s", "a")
		p.SAdd("s", "b")
		p.SAdd("s", "a")
	})
	members, err := st.SMembers(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, members)

	_ = st.Batch(ctx, func(p Pipeline) { p.SRem("s", "a") })
	members, _ = st.SMembers(ctx, "s")
	assert.Equal(t, []string{"b"}, members)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	_ = st.Batch(ctx, func(p Pipeline) { p.HSet("h", "a", []byte("1")) })
	require.NoError(t, st.Expire(ctx, "h", -time.Second))

	_, err := st.HGet(ctx, "h", "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotContains(t, st.Keys(), "h")
}

func TestMemoryStore_DelAndKeys(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	_ = st.Batch(ctx, func(p Pipeline) {
		p.HSet("h", "a", []byte("1"))
		p.ZAdd("z", 1, "a")
		p.SAdd("s", "a")
	})
	assert.Equal(t, []string{"h", "s", "z"}, st.Keys())

	require.NoError(t, st.Del(ctx, "z", "s"))
	assert.Equal(t, []string{"h"}, st.Keys())
}
