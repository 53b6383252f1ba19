package cache

import (
	"context"
	"errors"
	"time"

	"github.com/erp/erpcore/internal/domain/integration"
)

// DefaultCapabilityTTL bounds how long a cached capability descriptor is trusted
const DefaultCapabilityTTL = time.Hour

// ErrCacheMiss is returned by Get when no live entry exists for the key
var ErrCacheMiss = errors.New("cache: capability entry not found")

// CapabilityStore caches provider capability descriptors, keyed by ERP type and tenant.
// Stores are constructed explicitly at startup and closed at shutdown.
type CapabilityStore interface {
	Get(ctx context.Context, key string) (integration.Capabilities, error)
	Set(ctx context.Context, key string, caps integration.Capabilities, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// CapabilityKey builds the cache key of a tenant's provider capabilities
func CapabilityKey(erpType integration.ProviderType, tenant *integration.TenantContext) string {
	return erpType.String() + ":" + tenant.Key()
}
