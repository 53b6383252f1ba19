package actor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/erp/erpcore/internal/domain/integration"
	"github.com/erp/erpcore/internal/infrastructure/resilience"
)

// stubProvider implements the calls the actor tests exercise. Calls not
// overridden hit the nil embedded interface and panic.
type stubProvider struct {
	integration.Provider

	initErr    error
	initCalls  atomic.Int32
	closeCalls atomic.Int32

	getProduct func(ctx context.Context, id string) (integration.Result[*integration.Product], error)
}

func (s *stubProvider) Type() integration.ProviderType { return integration.ProviderTypeFake }

func (s *stubProvider) Initialize(ctx context.Context, tenant *integration.TenantContext) error {
	s.initCalls.Add(1)
	if s.initErr != nil {
		err := s.initErr
		s.initErr = nil
		return err
	}
	return nil
}

func (s *stubProvider) Close() error {
	s.closeCalls.Add(1)
	return nil
}

func (s *stubProvider) Capabilities(ctx context.Context, tenant *integration.TenantContext) (integration.Capabilities, error) {
	return integration.Capabilities{SupportsCatalogSync: true, MaxPageSize: 50}, nil
}

func (s *stubProvider) GetProduct(ctx context.Context, tenant *integration.TenantContext, id string) (integration.Result[*integration.Product], error) {
	if s.getProduct != nil {
		return s.getProduct(ctx, id)
	}
	return integration.Ok(&integration.Product{ID: id}), nil
}

func newTenant() *integration.TenantContext {
	return integration.MustTenantContext(uuid.New(), map[string]string{integration.ParamClient: "100"})
}

func testPipelineConfig() resilience.Config {
	cfg := resilience.DefaultConfig()
	cfg.MaxRetries = 2
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	cfg.Jitter = false
	return cfg
}

func newReadyActor(t testing.TB, tenant *integration.TenantContext, p integration.Provider) *TenantActor {
	t.Helper()
	a := NewTenantActor(tenant, p, resilience.New(tenant.Key(), testPipelineConfig()))
	if err := a.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize actor: %v", err)
	}
	return a
}

// funcOp builds an operation from a plain function
func funcOp(tenant *integration.TenantContext, name string, fn func(ctx context.Context) error) *integration.ErpOperation[struct{}] {
	return integration.NewOperation(tenant, name, func(ctx context.Context, _ integration.Provider) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}
