package erp

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/erp/erpcore/internal/domain/integration"
	"github.com/erp/erpcore/internal/infrastructure/cache"
)

// CachedProvider serves Capabilities from a CapabilityStore and delegates
// everything else. Store failures degrade to asking the provider.
type CachedProvider struct {
	integration.Provider
	store  cache.CapabilityStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProvider wraps provider with a capability cache
func NewCachedProvider(provider integration.Provider, store cache.CapabilityStore, ttl time.Duration, logger *zap.Logger) *CachedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = cache.DefaultCapabilityTTL
	}
	return &CachedProvider{Provider: provider, store: store, ttl: ttl, logger: logger}
}

// Capabilities returns the cached descriptor, loading it on a miss
func (c *CachedProvider) Capabilities(ctx context.Context, tenant *integration.TenantContext) (integration.Capabilities, error) {
	key := cache.CapabilityKey(c.Type(), tenant)
	caps, err := c.store.Get(ctx, key)
	if err == nil {
		return caps, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("Capability cache read failed", zap.String("key", key), zap.Error(err))
	}

	caps, err = c.Provider.Capabilities(ctx, tenant)
	if err != nil {
		return caps, err
	}
	if err := c.store.Set(ctx, key, caps, c.ttl); err != nil {
		c.logger.Warn("Capability cache write failed", zap.String("key", key), zap.Error(err))
	}
	return caps, nil
}

// Invalidate drops the tenant's cached descriptor
func (c *CachedProvider) Invalidate(ctx context.Context, tenant *integration.TenantContext) error {
	return c.store.Delete(ctx, cache.CapabilityKey(c.Type(), tenant))
}

var _ integration.Provider = (*CachedProvider)(nil)
