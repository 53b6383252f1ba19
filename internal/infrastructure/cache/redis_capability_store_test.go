package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/erpcore/internal/infrastructure/config"
)

// fakeRedis is an in-memory twin of the commands the store issues
type fakeRedis struct {
	mu      sync.Mutex
	values  map[string]string
	ttls    map[string]time.Duration
	failErr error
	closed  bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return redis.NewStringResult("", f.failErr)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return redis.NewStatusResult("", f.failErr)
	}
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisCapabilityStore(t *testing.T) {
	ctx := context.Background()

	t.Run("round trips capabilities under the key prefix", func(t *testing.T) {
		client := newFakeRedis()
		store := newRedisCapabilityStore(client, "test:")

		require.NoError(t, store.Set(ctx, "sap:t1", sampleCapabilities(), time.Minute))
		assert.Contains(t, client.values, "test:sap:t1")
		assert.Equal(t, time.Minute, client.ttls["test:sap:t1"])

		caps, err := store.Get(ctx, "sap:t1")
		require.NoError(t, err)
		assert.Equal(t, sampleCapabilities(), caps)
	})

	t.Run("default prefix and ttl", func(t *testing.T) {
		client := newFakeRedis()
		store := newRedisCapabilityStore(client, "")

		require.NoError(t, store.Set(ctx, "k", sampleCapabilities(), 0))
		assert.Equal(t, DefaultCapabilityTTL, client.ttls[defaultRedisKeyPrefix+"k"])
	})

	t.Run("redis nil maps to cache miss", func(t *testing.T) {
		store := newRedisCapabilityStore(newFakeRedis(), "")

		_, err := store.Get(ctx, "absent")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("corrupt payload is an error", func(t *testing.T) {
		client := newFakeRedis()
		client.values[defaultRedisKeyPrefix+"bad"] = "{not json"
		store := newRedisCapabilityStore(client, "")

		_, err := store.Get(ctx, "bad")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("client errors are wrapped", func(t *testing.T) {
		client := newFakeRedis()
		client.failErr = errors.New("connection reset")
		store := newRedisCapabilityStore(client, "")

		_, err := store.Get(ctx, "k")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")

		err = store.Set(ctx, "k", sampleCapabilities(), time.Minute)
		require.Error(t, err)
	})

	t.Run("delete and close", func(t *testing.T) {
		client := newFakeRedis()
		store := newRedisCapabilityStore(client, "")
		require.NoError(t, store.Set(ctx, "k", sampleCapabilities(), time.Minute))

		require.NoError(t, store.Delete(ctx, "k"))
		_, err := store.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrCacheMiss)

		require.NoError(t, store.Close())
		assert.True(t, client.closed)
	})
}

func TestCapabilityStoreFactory(t *testing.T) {
	ctx := context.Background()

	t.Run("uses in-memory store when redis is disabled", func(t *testing.T) {
		f := NewCapabilityStoreFactory(config.RedisConfig{Enabled: false})

		store, err := f.CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryCapabilityStore{}, store)
	})

	unreachable := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}

	t.Run("falls back to in-memory when redis is unreachable", func(t *testing.T) {
		f := NewCapabilityStoreFactory(unreachable)

		store, err := f.CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryCapabilityStore{}, store)
	})

	t.Run("fails when fallback is not allowed", func(t *testing.T) {
		f := NewCapabilityStoreFactory(unreachable, WithInMemoryFallback(false))

		_, err := f.CreateStore(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Redis required")
	})
}
