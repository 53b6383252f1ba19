package actor

import (
	"context"
	"errors"

	"github.com/erp/erpcore/internal/domain/integration"
)

// SerializedProvider is the Provider handle callers receive for a tenant.
// Every contract call is routed through the tenant's actor, so calls are
// serialized per tenant and run through the tenant's resilience pipeline.
//
// A retryable Failure result is handed to the pipeline as a transient error
// so it is retried; if it is still failing after the last attempt it is
// returned as a Failure result again.
type SerializedProvider struct {
	pool    *Pool
	erpType integration.ProviderType
}

// NewSerializedProvider creates a handle backed by pool
func NewSerializedProvider(pool *Pool, erpType integration.ProviderType) *SerializedProvider {
	return &SerializedProvider{pool: pool, erpType: erpType}
}

// Type returns the ERP type of the underlying sessions
func (s *SerializedProvider) Type() integration.ProviderType {
	return s.erpType
}

// Initialize creates and initializes the tenant's actor
func (s *SerializedProvider) Initialize(ctx context.Context, tenant *integration.TenantContext) error {
	_, err := s.pool.GetOrCreate(ctx, tenant)
	return err
}

// Close is a no-op; sessions belong to the actor pool and are released when
// the pool is closed or the tenant is removed.
func (s *SerializedProvider) Close() error {
	return nil
}

// CheckHealth implements integration.Provider
func (s *SerializedProvider) CheckHealth(ctx context.Context, tenant *integration.TenantContext) (integration.Result[*integration.HealthStatus], error) {
	return call(ctx, s.pool, tenant, "check_health", func(ctx context.Context, p integration.Provider) (integration.Result[*integration.HealthStatus], error) {
		return p.CheckHealth(ctx, tenant)
	})
}

// Capabilities implements integration.Provider
func (s *SerializedProvider) Capabilities(ctx context.Context, tenant *integration.TenantContext) (integration.Capabilities, error) {
	actor, err := s.pool.GetOrCreate(ctx, tenant)
	if err != nil {
		return integration.Capabilities{}, err
	}
	op := integration.NewOperation(tenant, "capabilities", func(ctx context.Context, p integration.Provider) (integration.Capabilities, error) {
		return p.Capabilities(ctx, tenant)
	})
	if err := actor.Enqueue(ctx, op); err != nil {
		return integration.Capabilities{}, err
	}
	return op.Outcome()
}

// GetProduct implements integration.Provider
func (s *SerializedProvider) GetProduct(ctx context.Context, tenant *integration.TenantContext, id string) (integration.Result[*integration.Product], error) {
	return call(ctx, s.pool, tenant, "get_product", func(ctx context.Context, p integration.Provider) (integration.Result[*integration.Product], error) {
		return p.GetProduct(ctx, tenant, id)
	})
}

// GetCustomer implements integration.Provider
func (s *SerializedProvider) GetCustomer(ctx context.Context, tenant *integration.TenantContext, id string) (integration.Result[*integration.Customer], error) {
	return call(ctx, s.pool, tenant, "get_customer", func(ctx context.Context, p integration.Provider) (integration.Result[*integration.Customer], error) {
		return p.GetCustomer(ctx, tenant, id)
	})
}

// CreateOrder implements integration.Provider
func (s *SerializedProvider) CreateOrder(ctx context.Context, tenant *integration.TenantContext, order *integration.OrderRequest) (integration.Result[*integration.Order], error) {
	return call(ctx, s.pool, tenant, "create_order", func(ctx context.Context, p integration.Provider) (integration.Result[*integration.Order], error) {
		return p.CreateOrder(ctx, tenant, order)
	})
}

// GetProducts implements integration.Provider
func (s *SerializedProvider) GetProducts(ctx context.Context, tenant *integration.TenantContext, ids []string) (integration.Result[[]integration.Product], error) {
	return call(ctx, s.pool, tenant, "get_products", func(ctx context.Context, p integration.Provider) (integration.Result[[]integration.Product], error) {
		return p.GetProducts(ctx, tenant, ids)
	})
}

// GetCustomers implements integration.Provider
func (s *SerializedProvider) GetCustomers(ctx context.Context, tenant *integration.TenantContext, ids []string) (integration.Result[[]integration.Customer], error) {
	return call(ctx, s.pool, tenant, "get_customers", func(ctx context.Context, p integration.Provider) (integration.Result[[]integration.Customer], error) {
		return p.GetCustomers(ctx, tenant, ids)
	})
}

// CreateOrders implements integration.Provider
func (s *SerializedProvider) CreateOrders(ctx context.Context, tenant *integration.TenantContext, orders []integration.OrderRequest) (integration.Result[*integration.BatchResult], error) {
	return call(ctx, s.pool, tenant, "create_orders", func(ctx context.Context, p integration.Provider) (integration.Result[*integration.BatchResult], error) {
		return p.CreateOrders(ctx, tenant, orders)
	})
}

// ListProducts implements integration.Provider
func (s *SerializedProvider) ListProducts(ctx context.Context, tenant *integration.TenantContext, req integration.PageRequest) (integration.Result[*integration.PagedResult[integration.Product]], error) {
	return call(ctx, s.pool, tenant, "list_products", func(ctx context.Context, p integration.Provider) (integration.Result[*integration.PagedResult[integration.Product]], error) {
		return p.ListProducts(ctx, tenant, req)
	})
}

// ListCustomers implements integration.Provider
func (s *SerializedProvider) ListCustomers(ctx context.Context, tenant *integration.TenantContext, req integration.PageRequest) (integration.Result[*integration.PagedResult[integration.Customer]], error) {
	return call(ctx, s.pool, tenant, "list_customers", func(ctx context.Context, p integration.Provider) (integration.Result[*integration.PagedResult[integration.Customer]], error) {
		return p.ListCustomers(ctx, tenant, req)
	})
}

// Sync implements integration.Provider
func (s *SerializedProvider) Sync(ctx context.Context, tenant *integration.TenantContext, req integration.SyncRequest, progress integration.ProgressReporter) (integration.Result[*integration.SyncResult], error) {
	return call(ctx, s.pool, tenant, "sync_"+string(req.Entity), func(ctx context.Context, p integration.Provider) (integration.Result[*integration.SyncResult], error) {
		return p.Sync(ctx, tenant, req, progress)
	})
}

// call runs fn on the tenant's actor and maps retryable failure results
// in and out of the pipeline's error path
func call[T any](
	ctx context.Context,
	pool *Pool,
	tenant *integration.TenantContext,
	name string,
	fn func(ctx context.Context, p integration.Provider) (integration.Result[T], error),
) (integration.Result[T], error) {
	actor, err := pool.GetOrCreate(ctx, tenant)
	if err != nil {
		return integration.Result[T]{}, err
	}

	op := integration.NewOperation(tenant, name, func(ctx context.Context, p integration.Provider) (integration.Result[T], error) {
		res, err := fn(ctx, p)
		if err != nil {
			return res, err
		}
		if f := res.Failure(); f != nil && f.Retryable {
			return res, f.AsError()
		}
		return res, nil
	})

	if err := actor.Enqueue(ctx, op); err != nil {
		var f *integration.Failure
		if errors.As(err, &f) && f.Retryable {
			return integration.FailWith[T](f), nil
		}
		return integration.Result[T]{}, err
	}
	return op.Outcome()
}

var _ integration.Provider = (*SerializedProvider)(nil)
