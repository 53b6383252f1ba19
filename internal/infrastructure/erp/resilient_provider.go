package erp

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/erp/erpcore/internal/domain/integration"
)

// ResilientProvider tries a primary provider and falls back to a secondary
// one per operation. It implements integration.Provider, so decorators nest.
//
// Any primary error or failure result is answered by the fallback, unless
// the caller's context is done.
type ResilientProvider struct {
	primary  integration.Provider
	fallback integration.Provider
	logger   *zap.Logger
}

// NewResilientProvider decorates primary with fallback
func NewResilientProvider(primary, fallback integration.Provider, logger *zap.Logger) *ResilientProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResilientProvider{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With(zap.String("primary", primary.Type().String()), zap.String("fallback", fallback.Type().String())),
	}
}

// Primary returns the decorated provider
func (r *ResilientProvider) Primary() integration.Provider {
	return r.primary
}

// Type returns the primary's ERP type
func (r *ResilientProvider) Type() integration.ProviderType {
	return r.primary.Type()
}

// Initialize initializes both providers. Only a fallback failure is returned;
// a primary that cannot initialize is served by the fallback.
func (r *ResilientProvider) Initialize(ctx context.Context, tenant *integration.TenantContext) error {
	if err := r.fallback.Initialize(ctx, tenant); err != nil {
		return err
	}
	if err := r.primary.Initialize(ctx, tenant); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		r.logger.Warn("Primary ERP provider failed to initialize, serving from fallback",
			zap.String("tenant_id", tenant.Key()),
			zap.Error(err))
	}
	return nil
}

// Close closes both providers
func (r *ResilientProvider) Close() error {
	return errors.Join(r.primary.Close(), r.fallback.Close())
}

// CheckHealth reports the primary's health. A failing probe is reported as
// unavailable rather than failed; health never falls back.
func (r *ResilientProvider) CheckHealth(ctx context.Context, tenant *integration.TenantContext) (integration.Result[*integration.HealthStatus], error) {
	start := time.Now()
	res, err := r.primary.CheckHealth(ctx, tenant)
	switch {
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return integration.Result[*integration.HealthStatus]{}, ctxErr
		}
		return integration.Ok(unavailable(start, err.Error())), nil
	case res.IsFailure():
		return integration.Ok(unavailable(start, res.Failure().Message)), nil
	case res.Value() == nil:
		return integration.Ok(unavailable(start, "primary returned no health status")), nil
	}
	return res, nil
}

func unavailable(start time.Time, message string) *integration.HealthStatus {
	return &integration.HealthStatus{
		Available: false,
		Latency:   time.Since(start),
		Message:   message,
		CheckedAt: time.Now(),
	}
}

// Capabilities returns the primary's descriptor, or the fallback's when the
// primary cannot describe itself
func (r *ResilientProvider) Capabilities(ctx context.Context, tenant *integration.TenantContext) (integration.Capabilities, error) {
	caps, err := r.primary.Capabilities(ctx, tenant)
	if err == nil || !r.shouldFallback(ctx, nil, err) {
		return caps, err
	}
	r.logger.Warn("Primary ERP provider failed, using fallback",
		zap.String("operation", "capabilities"),
		zap.String("tenant_id", tenant.Key()),
		zap.Error(err))
	caps, ferr := r.fallback.Capabilities(ctx, tenant)
	if ferr != nil {
		r.logFailedBoth("capabilities", tenant, err, ferr)
	}
	return caps, ferr
}

// GetProduct implements integration.Provider
func (r *ResilientProvider) GetProduct(ctx context.Context, tenant *integration.TenantContext, id string) (integration.Result[*integration.Product], error) {
	return withFallback(ctx, r, tenant, "get_product", func(p integration.Provider) (integration.Result[*integration.Product], error) {
		return p.GetProduct(ctx, tenant, id)
	})
}

// GetCustomer implements integration.Provider
func (r *ResilientProvider) GetCustomer(ctx context.Context, tenant *integration.TenantContext, id string) (integration.Result[*integration.Customer], error) {
	return withFallback(ctx, r, tenant, "get_customer", func(p integration.Provider) (integration.Result[*integration.Customer], error) {
		return p.GetCustomer(ctx, tenant, id)
	})
}

// CreateOrder implements integration.Provider
func (r *ResilientProvider) CreateOrder(ctx context.Context, tenant *integration.TenantContext, order *integration.OrderRequest) (integration.Result[*integration.Order], error) {
	return withFallback(ctx, r, tenant, "create_order", func(p integration.Provider) (integration.Result[*integration.Order], error) {
		return p.CreateOrder(ctx, tenant, order)
	})
}

// GetProducts implements integration.Provider
func (r *ResilientProvider) GetProducts(ctx context.Context, tenant *integration.TenantContext, ids []string) (integration.Result[[]integration.Product], error) {
	return withFallback(ctx, r, tenant, "get_products", func(p integration.Provider) (integration.Result[[]integration.Product], error) {
		return p.GetProducts(ctx, tenant, ids)
	})
}

// GetCustomers implements integration.Provider
func (r *ResilientProvider) GetCustomers(ctx context.Context, tenant *integration.TenantContext, ids []string) (integration.Result[[]integration.Customer], error) {
	return withFallback(ctx, r, tenant, "get_customers", func(p integration.Provider) (integration.Result[[]integration.Customer], error) {
		return p.GetCustomers(ctx, tenant, ids)
	})
}

// CreateOrders implements integration.Provider
func (r *ResilientProvider) CreateOrders(ctx context.Context, tenant *integration.TenantContext, orders []integration.OrderRequest) (integration.Result[*integration.BatchResult], error) {
	return withFallback(ctx, r, tenant, "create_orders", func(p integration.Provider) (integration.Result[*integration.BatchResult], error) {
		return p.CreateOrders(ctx, tenant, orders)
	})
}

// ListProducts implements integration.Provider
func (r *ResilientProvider) ListProducts(ctx context.Context, tenant *integration.TenantContext, req integration.PageRequest) (integration.Result[*integration.PagedResult[integration.Product]], error) {
	return withFallback(ctx, r, tenant, "list_products", func(p integration.Provider) (integration.Result[*integration.PagedResult[integration.Product]], error) {
		return p.ListProducts(ctx, tenant, req)
	})
}

// ListCustomers implements integration.Provider
func (r *ResilientProvider) ListCustomers(ctx context.Context, tenant *integration.TenantContext, req integration.PageRequest) (integration.Result[*integration.PagedResult[integration.Customer]], error) {
	return withFallback(ctx, r, tenant, "list_customers", func(p integration.Provider) (integration.Result[*integration.PagedResult[integration.Customer]], error) {
		return p.ListCustomers(ctx, tenant, req)
	})
}

// Sync implements integration.Provider
func (r *ResilientProvider) Sync(ctx context.Context, tenant *integration.TenantContext, req integration.SyncRequest, progress integration.ProgressReporter) (integration.Result[*integration.SyncResult], error) {
	return withFallback(ctx, r, tenant, "sync", func(p integration.Provider) (integration.Result[*integration.SyncResult], error) {
		return p.Sync(ctx, tenant, req, progress)
	})
}

// withFallback runs call on the primary, then on the fallback if the
// primary's outcome allows it
func withFallback[T any](
	ctx context.Context,
	r *ResilientProvider,
	tenant *integration.TenantContext,
	op string,
	call func(integration.Provider) (integration.Result[T], error),
) (integration.Result[T], error) {
	res, err := call(r.primary)
	if !r.shouldFallback(ctx, res.Failure(), err) {
		return res, err
	}

	fields := []zap.Field{zap.String("operation", op), zap.String("tenant_id", tenant.Key())}
	if err != nil {
		fields = append(fields, zap.Error(err), zap.String("kind", integration.KindOf(err).String()))
	} else {
		fields = append(fields, zap.String("code", res.Failure().Code), zap.String("message", res.Failure().Message))
	}
	r.logger.Warn("Primary ERP provider failed, using fallback", fields...)

	fres, ferr := call(r.fallback)
	switch {
	case ferr != nil:
		r.logFailedBoth(op, tenant, primaryError(res, err), ferr)
	case fres.IsFailure():
		r.logFailedBoth(op, tenant, primaryError(res, err), fres.Failure())
	}
	return fres, ferr
}

// shouldFallback reports whether the primary failed in a way the fallback
// should answer: any error or failure result, unless the caller gave up
func (r *ResilientProvider) shouldFallback(ctx context.Context, failure *integration.Failure, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return err != nil || failure != nil
}

func (r *ResilientProvider) logFailedBoth(op string, tenant *integration.TenantContext, primaryErr, fallbackErr error) {
	r.logger.Error("Primary and fallback ERP providers failed",
		zap.String("operation", op),
		zap.String("tenant_id", tenant.Key()),
		zap.NamedError("primary_error", primaryErr),
		zap.NamedError("fallback_error", fallbackErr))
}

func primaryError[T any](res integration.Result[T], err error) error {
	if err != nil {
		return err
	}
	return res.Failure()
}

// Ensure ResilientProvider implements integration.Provider
var _ integration.Provider = (*ResilientProvider)(nil)
