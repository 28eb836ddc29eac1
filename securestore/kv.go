package securestore

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// KV is the minimal contract the store needs from its backend. Implementations
// must treat a missing key as (found=false, err=nil), never as an error.
type KV interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, keys ...string) error
}

// RedisKV backs the store with a shared Redis instance. Entries are written
// without TTL; the session lifecycle owns deletion. Keys are namespaced with
// an optional prefix so several clients can share one database.
type RedisKV struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisKV wraps client as a KV. prefix may be empty.
func NewRedisKV(client redis.UniversalClient, prefix string) (*RedisKV, error) {
	if client == nil {
		return nil, errors.New("nil redis client")
	}
	return &RedisKV{client: client, prefix: prefix}, nil
}

func (r *RedisKV) key(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

func (r *RedisKV) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	namespaced := make([]string, len(keys))
	for i, k := range keys {
		namespaced[i] = r.key(k)
	}
	return r.client.Del(ctx, namespaced...).Err()
}

// MapKV is an in-process KV for embedding without Redis and for tests.
// Contents do not survive a restart.
type MapKV struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMapKV returns an empty in-memory KV.
func NewMapKV() *MapKV {
	return &MapKV{entries: map[string]string{}}
}

func (m *MapKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.entries[key]
	return value, ok, nil
}

func (m *MapKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = value
	return nil
}

func (m *MapKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}
