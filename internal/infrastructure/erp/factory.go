package erp

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/erpcore/internal/domain/integration"
	"github.com/erp/erpcore/internal/infrastructure/actor"
	"github.com/erp/erpcore/internal/infrastructure/cache"
	"github.com/erp/erpcore/internal/infrastructure/config"
	"github.com/erp/erpcore/internal/infrastructure/resilience"
	"github.com/erp/erpcore/internal/infrastructure/telemetry"
)

// Constructor builds a raw, uninitialized provider session for a tenant
type Constructor func(tenant *integration.TenantContext) (integration.Provider, error)

// ---------------------------------------------------------------------------
// Tenant settings
// ---------------------------------------------------------------------------

// TenantSettings is the ERP configuration of one tenant
type TenantSettings struct {
	ERPType string
	Params  map[string]string
}

// SettingsSource resolves a tenant's ERP configuration
type SettingsSource interface {
	TenantSettings(ctx context.Context, tenantID uuid.UUID) (TenantSettings, error)
}

// StaticSettings is a SettingsSource backed by the loaded configuration
type StaticSettings map[uuid.UUID]TenantSettings

// NewStaticSettings indexes the configured tenants
func NewStaticSettings(tenants []config.TenantConfig) StaticSettings {
	s := make(StaticSettings, len(tenants))
	for _, t := range tenants {
		s[t.ID] = TenantSettings{ERPType: t.ERPType, Params: maps.Clone(t.Params)}
	}
	return s
}

// TenantSettings implements SettingsSource
func (s StaticSettings) TenantSettings(_ context.Context, tenantID uuid.UUID) (TenantSettings, error) {
	settings, ok := s[tenantID]
	if !ok {
		return TenantSettings{}, &integration.Error{
			Kind:    integration.KindValidation,
			Code:    CodeTenantNotConfigured,
			Message: fmt.Sprintf("tenant %s has no ERP configuration", tenantID),
			Err:     ErrTenantNotConfigured,
		}
	}
	settings.Params = maps.Clone(settings.Params)
	return settings, nil
}

// TenantIDs returns the configured tenants in ascending order
func (s StaticSettings) TenantIDs() []uuid.UUID {
	ids := slices.Collect(maps.Keys(s))
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })
	return ids
}

// ---------------------------------------------------------------------------
// Factory
// ---------------------------------------------------------------------------

// FactoryConfig tunes the providers built by a ProviderFactory
type FactoryConfig struct {
	Resilience resilience.Config
	SAP        SAPConfig
	Oracle     OracleConfig
	// Fallback wraps non-fake providers in a ResilientProvider backed by the fake provider
	Fallback bool
	// InitTimeout bounds session initialization when a tenant is first used
	InitTimeout time.Duration
	// CapabilityTTL is how long cached capability descriptors are trusted
	CapabilityTTL time.Duration
}

// ProviderFactory creates providers by ERP type and hands out per-tenant
// serialized handles backed by an actor pool
type ProviderFactory struct {
	cfg      FactoryConfig
	settings SettingsSource
	logger   *zap.Logger
	metrics  *telemetry.IntegrationMetrics
	store    cache.CapabilityStore

	mu           sync.RWMutex
	constructors map[integration.ProviderType]Constructor

	pool *actor.Pool

	fallbackMu   sync.Mutex
	fallbacks    map[uuid.UUID]*FakeProvider
	fallbackOpts []FakeOption
}

// FactoryOption configures a ProviderFactory
type FactoryOption func(*ProviderFactory)

// WithFactoryLogger sets the logger
func WithFactoryLogger(logger *zap.Logger) FactoryOption {
	return func(f *ProviderFactory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithFactoryMetrics records pipeline and actor metrics
func WithFactoryMetrics(metrics *telemetry.IntegrationMetrics) FactoryOption {
	return func(f *ProviderFactory) {
		f.metrics = metrics
	}
}

// WithCapabilityStore caches capability descriptors of handed-out providers
func WithCapabilityStore(store cache.CapabilityStore) FactoryOption {
	return func(f *ProviderFactory) {
		f.store = store
	}
}

// WithFallbackOptions configures the fake provider each tenant falls back to
func WithFallbackOptions(opts ...FakeOption) FactoryOption {
	return func(f *ProviderFactory) {
		f.fallbackOpts = append(f.fallbackOpts, opts...)
	}
}

// NewProviderFactory creates a factory with the built-in fake, mock, SAP and
// Oracle constructors registered
func NewProviderFactory(cfg FactoryConfig, settings SettingsSource, opts ...FactoryOption) *ProviderFactory {
	f := &ProviderFactory{
		cfg:          cfg,
		settings:     settings,
		logger:       zap.NewNop(),
		constructors: make(map[integration.ProviderType]Constructor),
		fallbacks:    make(map[uuid.UUID]*FakeProvider),
	}
	for _, opt := range opts {
		opt(f)
	}

	fake := func(*integration.TenantContext) (integration.Provider, error) {
		return NewFakeProvider(), nil
	}
	f.constructors[integration.ProviderTypeFake] = fake
	f.constructors[integration.ProviderTypeMock] = fake
	f.constructors[integration.ProviderTypeSAP] = func(tenant *integration.TenantContext) (integration.Provider, error) {
		c, err := SAPConfigForTenant(f.cfg.SAP, tenant)
		if err != nil {
			return nil, err
		}
		return NewSAPProvider(c, WithSAPLogger(f.logger.Named("sap")))
	}
	f.constructors[integration.ProviderTypeOracle] = func(tenant *integration.TenantContext) (integration.Provider, error) {
		c, err := OracleConfigForTenant(f.cfg.Oracle, tenant)
		if err != nil {
			return nil, err
		}
		return NewOracleProvider(c, WithOracleLogger(f.logger.Named("oracle")))
	}

	f.pool = actor.NewPool(f.buildActor, f.logger, actor.WithCreateTimeout(cfg.InitTimeout))
	return f
}

// Register adds or replaces the constructor of an ERP type
func (f *ProviderFactory) Register(erpType integration.ProviderType, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[normalizeType(string(erpType))] = ctor
}

// SupportedTypes returns the registered ERP type names in ascending order
func (f *ProviderFactory) SupportedTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]string, 0, len(f.constructors))
	for t := range f.constructors {
		types = append(types, t.String())
	}
	slices.Sort(types)
	return types
}

// ValidateType checks that an ERP type name is supported
func (f *ProviderFactory) ValidateType(name string) error {
	f.mu.RLock()
	_, ok := f.constructors[normalizeType(name)]
	f.mu.RUnlock()
	if !ok {
		return f.unknownType(name)
	}
	return nil
}

// Create builds a raw provider of the named type. The caller owns it and
// must initialize and close it.
func (f *ProviderFactory) Create(typeName string, tenant *integration.TenantContext) (integration.Provider, error) {
	f.mu.RLock()
	ctor, ok := f.constructors[normalizeType(typeName)]
	f.mu.RUnlock()
	if !ok {
		return nil, f.unknownType(typeName)
	}
	return ctor(tenant)
}

func (f *ProviderFactory) unknownType(name string) error {
	return &integration.Error{
		Kind: integration.KindValidation,
		Code: CodeUnknownProviderType,
		Message: fmt.Sprintf("unknown ERP type %q, supported types: %s",
			name, strings.Join(f.SupportedTypes(), ", ")),
		Err: integration.ErrUnknownProviderType,
	}
}

func normalizeType(name string) integration.ProviderType {
	return integration.ProviderType(strings.ToLower(strings.TrimSpace(name)))
}

// ProviderFor returns the provider handle of a tenant. Calls through the
// handle are serialized on the tenant's actor and run through its own
// resilience pipeline. The handle is initialized before it is returned.
func (f *ProviderFactory) ProviderFor(ctx context.Context, tenant *integration.TenantContext) (integration.Provider, error) {
	settings, err := f.settings.TenantSettings(ctx, tenant.TenantID())
	if err != nil {
		return nil, err
	}
	if err := f.ValidateType(settings.ERPType); err != nil {
		return nil, err
	}
	erpType := normalizeType(settings.ERPType)

	var provider integration.Provider = actor.NewSerializedProvider(f.pool, erpType)
	if f.cfg.Fallback && erpType != integration.ProviderTypeFake && erpType != integration.ProviderTypeMock {
		provider = NewResilientProvider(provider, tenantFallback{f.fallbackFor(tenant.TenantID())}, f.logger.Named("fallback"))
	}
	if f.store != nil {
		provider = NewCachedProvider(provider, f.store, f.cfg.CapabilityTTL, f.logger)
	}

	initCtx := ctx
	if f.cfg.InitTimeout > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, f.cfg.InitTimeout)
		defer cancel()
	}
	if err := provider.Initialize(initCtx, tenant); err != nil {
		return nil, err
	}
	return provider, nil
}

// buildActor is the pool's Builder: it merges configured and caller
// parameters, constructs the concrete session and gives the tenant its own
// resilience pipeline
func (f *ProviderFactory) buildActor(ctx context.Context, tenant *integration.TenantContext) (*actor.TenantActor, error) {
	settings, err := f.settings.TenantSettings(ctx, tenant.TenantID())
	if err != nil {
		return nil, err
	}
	params := settings.Params
	if params == nil {
		params = make(map[string]string)
	}
	maps.Copy(params, tenant.Params())
	merged, err := integration.NewTenantContext(tenant.TenantID(), params)
	if err != nil {
		return nil, err
	}

	provider, err := f.Create(settings.ERPType, merged)
	if err != nil {
		return nil, err
	}

	pipeline := resilience.New(tenant.Key(), f.cfg.Resilience,
		resilience.WithListener(resilience.Multi(
			resilience.NewLoggingListener(f.logger),
			resilience.NewMetricsListener(f.metrics),
		)))

	f.logger.Info("Creating tenant actor",
		zap.String("tenant_id", tenant.Key()),
		zap.String("erp_type", provider.Type().String()))
	return actor.NewTenantActor(merged, provider, pipeline,
		actor.WithLogger(f.logger.Named("actor")),
		actor.WithMetrics(f.metrics)), nil
}

// Statistics returns per-tenant actor counters sorted by tenant ID
func (f *ProviderFactory) Statistics() []integration.ActorStatistics {
	return f.pool.Statistics()
}

// Actor returns the live actor of a tenant, or nil
func (f *ProviderFactory) Actor(tenantID uuid.UUID) *actor.TenantActor {
	return f.pool.Get(tenantID)
}

// fallbackFor returns the tenant's fallback provider, creating it on first use.
// Each tenant owns its own instance.
func (f *ProviderFactory) fallbackFor(tenantID uuid.UUID) *FakeProvider {
	f.fallbackMu.Lock()
	defer f.fallbackMu.Unlock()
	fb, ok := f.fallbacks[tenantID]
	if !ok {
		fb = NewFakeProvider(f.fallbackOpts...)
		f.fallbacks[tenantID] = fb
	}
	return fb
}

func (f *ProviderFactory) closeFallback(tenantID uuid.UUID) error {
	f.fallbackMu.Lock()
	fb, ok := f.fallbacks[tenantID]
	delete(f.fallbacks, tenantID)
	f.fallbackMu.Unlock()
	if !ok {
		return nil
	}
	return fb.Close()
}

// Remove disposes the tenant's actor and fallback and drops its cached capabilities
func (f *ProviderFactory) Remove(ctx context.Context, tenantID uuid.UUID) error {
	err := errors.Join(f.pool.Remove(ctx, tenantID), f.closeFallback(tenantID))
	if f.store == nil {
		return err
	}
	settings, serr := f.settings.TenantSettings(ctx, tenantID)
	if serr != nil {
		return err
	}
	tenant, terr := integration.NewTenantContext(tenantID, nil)
	if terr != nil {
		return errors.Join(err, terr)
	}
	return errors.Join(err, f.store.Delete(ctx, cache.CapabilityKey(normalizeType(settings.ERPType), tenant)))
}

// Close disposes every actor and fallback provider
func (f *ProviderFactory) Close(ctx context.Context) error {
	errs := []error{f.pool.Close(ctx)}
	f.fallbackMu.Lock()
	for id, fb := range f.fallbacks {
		errs = append(errs, fb.Close())
		delete(f.fallbacks, id)
	}
	f.fallbackMu.Unlock()
	return errors.Join(errs...)
}

// tenantFallback keeps the tenant's fallback open when one of its handles is
// closed; the factory closes it with the tenant
type tenantFallback struct {
	integration.Provider
}

func (tenantFallback) Close() error {
	return nil
}
