package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"vizinsight/cache"
)

// MemoryStore keeps counters in process memory.
type MemoryStore struct {
	cache *cache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cache: cache.New(KeyTTL)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (int, error) {
	v, ok := m.cache.Get(key)
	if !ok {
		return 0, nil
	}
	return v.(int), nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value int, ttl time.Duration) error {
	m.cache.Set(key, value, ttl)
	return nil
}

// RedisStore shares counters between service instances. Values are stored
// as decimal strings.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Get(ctx context.Context, key string) (int, error) {
	s, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "redis get")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// a corrupt value counts as unused rather than locking the user out
		return 0, nil
	}
	return n, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value int, ttl time.Duration) error {
	return errors.Wrap(r.client.Set(ctx, key, strconv.Itoa(value), ttl).Err(), "redis set")
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
