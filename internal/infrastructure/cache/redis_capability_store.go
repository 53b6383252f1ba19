package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erp/erpcore/internal/domain/integration"
)

const defaultRedisKeyPrefix = "erpcore:capabilities:"

// redisCommands is the subset of the go-redis client the store uses
type redisCommands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisCapabilityStore implements CapabilityStore using Redis.
// This is suitable for distributed deployments where multiple instances
// share capability descriptors instead of probing every backend themselves.
type RedisCapabilityStore struct {
	client    redisCommands
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisCapabilityStore creates a new Redis-based capability store
func NewRedisCapabilityStore(ctx context.Context, cfg RedisConfig) (*RedisCapabilityStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisCapabilityStore(client, cfg.KeyPrefix), nil
}

func newRedisCapabilityStore(client redisCommands, keyPrefix string) *RedisCapabilityStore {
	if keyPrefix == "" {
		keyPrefix = defaultRedisKeyPrefix
	}
	return &RedisCapabilityStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get returns the cached capabilities or ErrCacheMiss
func (s *RedisCapabilityStore) Get(ctx context.Context, key string) (integration.Capabilities, error) {
	raw, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return integration.Capabilities{}, ErrCacheMiss
	}
	if err != nil {
		return integration.Capabilities{}, fmt.Errorf("failed to read capabilities: %w", err)
	}

	var caps integration.Capabilities
	if err := json.Unmarshal(raw, &caps); err != nil {
		return integration.Capabilities{}, fmt.Errorf("failed to decode capabilities: %w", err)
	}
	return caps, nil
}

// Set stores capabilities with a TTL. A non-positive TTL uses DefaultCapabilityTTL.
func (s *RedisCapabilityStore) Set(ctx context.Context, key string, caps integration.Capabilities, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultCapabilityTTL
	}
	raw, err := json.Marshal(caps)
	if err != nil {
		return fmt.Errorf("failed to encode capabilities: %w", err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write capabilities: %w", err)
	}
	return nil
}

// Delete removes an entry; deleting an absent key is not an error
func (s *RedisCapabilityStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete capabilities: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisCapabilityStore) Close() error {
	return s.client.Close()
}

// Ensure RedisCapabilityStore implements CapabilityStore
var _ CapabilityStore = (*RedisCapabilityStore)(nil)
