package storage

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is an in-process Store backend with Redis-faithful
// semantics (including ZREVRANGE tie ordering and ZINTERSTORE score
// summing). It backs tests and store-less dev runs.
type MemoryStore struct {
	mu       sync.Mutex
	hashes   map[string]map[string][]byte
	sets     map[string]map[string]struct{}
	zsets    map[string]map[string]float64
	deadline map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		hashes:   make(map[string]map[string][]byte),
		sets:     make(map[string]map[string]struct{}),
		zsets:    make(map[string]map[string]float64),
		deadline: make(map[string]time.Time),
	}
}

// purge drops the key in every keyspace if its TTL has passed.
// Caller holds mu.
func (s *MemoryStore) purge(key string) {
	dl, ok := s.deadline[key]
	if !ok || time.Now().Before(dl) {
		return
	}
	delete(s.hashes, key)
	delete(s.sets, key)
	delete(s.zsets, key)
	delete(s.deadline, key)
}

func (s *MemoryStore) HGet(_ context.Context, key, field string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge(key)

	v, ok := s.hashes[key][field]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) HGetAll(_ context.Context, key string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge(key)

	out := make(map[string][]byte, len(s.hashes[key]))
	for f, v := range s.hashes[key] {
		out[f] = append([]byte(nil), v...)
	}
	return out, nil
}

func (s *MemoryStore) HIncrBy(_ context.Context, key, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge(key)

	var cur int64
	if v, ok := s.hashes[key][field]; ok {
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, err
		}
		cur = n
	}
	cur += delta
	s.hset(key, field, []byte(strconv.FormatInt(cur, 10)))
	return cur, nil
}

func (s *MemoryStore) SMembers(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge(key)

	members := make([]string, 0, len(s.sets[key]))
	for m := range s.sets[key] {
		members = append(members, m)
	}
	sort.Strings(members)
	return members, nil
}

func (s *MemoryStore) ZRevRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge(key)

	zs := s.zsets[key]
	members := make([]string, 0, len(zs))
	for m := range zs {
		members = append(members, m)
	}
	// score descending, then member lexicographically descending,
	// matching Redis ZREVRANGE.
	sort.Slice(members, func(i, j int) bool {
		si, sj := zs[members[i]], zs[members[j]]
		if si != sj {
			return si > sj
		}
		return members[i] > members[j]
	})

	n := int64(len(members))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if start >= n || stop < start {
		return nil, nil
	}
	if stop >= n {
		stop = n - 1
	}
	return members[start : stop+1], nil
}

func (s *MemoryStore) ZScore(_ context.Context, key, member string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge(key)

	score, ok := s.zsets[key][member]
	if !ok {
		return 0, ErrNotFound
	}
	return score, nil
}

func (s *MemoryStore) ZInterStore(_ context.Context, dest string, keys []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.purge(k)
	}

	result := make(map[string]float64)
	if len(keys) > 0 {
		for m, score := range s.zsets[keys[0]] {
			sum := score
			in := true
			for _, k := range keys[1:] {
				sc, ok := s.zsets[k][m]
				if !ok {
					in = false
					break
				}
				sum += sc
			}
			if in {
				result[m] = sum
			}
		}
	}

	delete(s.zsets, dest)
	delete(s.deadline, dest)
	if len(result) > 0 {
		s.zsets[dest] = result
	}
	return int64(len(result)), nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.del(k)
	}
	return nil
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadline[key] = time.Now().Add(ttl)
	return nil
}

func (s *MemoryStore) Batch(_ context.Context, fn func(p Pipeline)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(memoryPipeline{s: s})
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// Keys lists every live key across keyspaces; tests use it to assert
// that query-scoped temp keys do not leak.
func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	for k := range s.hashes {
		seen[k] = struct{}{}
	}
	for k := range s.sets {
		seen[k] = struct{}{}
	}
	for k := range s.zsets {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		s.purge(k)
		if _, live := s.hashes[k]; live {
			keys = append(keys, k)
			continue
		}
		if _, live := s.sets[k]; live {
			keys = append(keys, k)
			continue
		}
		if _, live := s.zsets[k]; live {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// unlocked mutators shared by direct ops and pipelines

func (s *MemoryStore) hset(key, field string, value []byte) {
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string][]byte)
		s.hashes[key] = h
	}
	h[field] = append([]byte(nil), value...)
}

func (s *MemoryStore) del(key string) {
	delete(s.hashes, key)
	delete(s.sets, key)
	delete(s.zsets, key)
	delete(s.deadline, key)
}

type memoryPipeline struct {
	s *MemoryStore
}

func (p memoryPipeline) HSet(key, field string, value []byte) {
	p.s.hset(key, field, value)
}

func (p memoryPipeline) SAdd(key, member string) {
	set, ok := p.s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		p.s.sets[key] = set
	}
	set[member] = struct{}{}
}

func (p memoryPipeline) SRem(key, member string) {
	if set, ok := p.s.sets[key]; ok {
		delete(set, member)
		if len(set) == 0 {
			delete(p.s.sets, key)
		}
	}
}

func (p memoryPipeline) ZAdd(key string, score float64, member string) {
	zs, ok := p.s.zsets[key]
	if !ok {
		zs = make(map[string]float64)
		p.s.zsets[key] = zs
	}
	zs[member] = score
}

func (p memoryPipeline) ZRem(key, member string) {
	if zs, ok := p.s.zsets[key]; ok {
		delete(zs, member)
		if len(zs) == 0 {
			delete(p.s.zsets, key)
		}
	}
}

func (p memoryPipeline) Del(keys ...string) {
	for _, k := range keys {
		p.s.del(k)
	}
}

func (p memoryPipeline) Expire(key string, ttl time.Duration) {
	p.s.deadline[key] = time.Now().Add(ttl)
}
