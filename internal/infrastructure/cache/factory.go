package cache

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/erpcore/internal/infrastructure/config"
)

// CapabilityStoreFactory creates capability stores based on configuration
type CapabilityStoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// CapabilityStoreFactoryOption is a functional option for configuring the factory
type CapabilityStoreFactoryOption func(*CapabilityStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) CapabilityStoreFactoryOption {
	return func(f *CapabilityStoreFactory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory store when Redis is unavailable
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) CapabilityStoreFactoryOption {
	return func(f *CapabilityStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewCapabilityStoreFactory creates a new factory
func NewCapabilityStoreFactory(cfg config.RedisConfig, opts ...CapabilityStoreFactoryOption) *CapabilityStoreFactory {
	f := &CapabilityStoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisStore creates a Redis-based capability store
func (f *CapabilityStoreFactory) CreateRedisStore(ctx context.Context) (CapabilityStore, error) {
	store, err := NewRedisCapabilityStore(ctx, RedisConfig{
		Addr:      f.redisConfig.Addr(),
		Password:  f.redisConfig.Password,
		DB:        f.redisConfig.DB,
		KeyPrefix: f.redisConfig.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis capability store: %w", err)
	}
	return store, nil
}

// CreateInMemoryStore creates an in-memory capability store
// In-memory stores do not share state across process instances, so every
// instance probes providers for their capabilities on its own.
func (f *CapabilityStoreFactory) CreateInMemoryStore() CapabilityStore {
	return NewInMemoryCapabilityStore()
}

// CreateStore creates a capability store. Redis is used when enabled; if it
// cannot be reached the factory falls back to in-memory when allowed.
func (f *CapabilityStoreFactory) CreateStore(ctx context.Context) (CapabilityStore, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("using in-memory capability store")
		return f.CreateInMemoryStore(), nil
	}

	store, err := f.CreateRedisStore(ctx)
	if err == nil {
		f.logger.Info("using Redis capability store", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for capability cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory capability store",
		zap.Error(err),
	)
	return f.CreateInMemoryStore(), nil
}
