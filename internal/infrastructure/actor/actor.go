// Package actor serializes ERP operations per tenant.
//
// A TenantActor owns one provider session exclusively and runs at most one
// operation at a time, in submission order. Different tenants run
// concurrently and never share a session or a circuit breaker.
package actor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/erp/erpcore/internal/domain/integration"
	"github.com/erp/erpcore/internal/infrastructure/resilience"
	"github.com/erp/erpcore/internal/infrastructure/telemetry"
)

// TenantActor runs operations for one tenant against its own provider session
type TenantActor struct {
	tenant   *integration.TenantContext
	provider integration.Provider
	pipeline *resilience.Pipeline
	logger   *zap.Logger
	metrics  *telemetry.IntegrationMetrics

	// binary semaphore; waiters are admitted in FIFO order
	sem *semaphore.Weighted

	initMu sync.Mutex
	ready  atomic.Bool

	disposed      atomic.Bool
	disposeCtx    context.Context
	disposeCancel context.CancelFunc
	disposeOnce   sync.Once
	disposeErr    error

	processed atomic.Int64
	failed    atomic.Int64
	queued    atomic.Int64
}

// Option configures a TenantActor
type Option func(*TenantActor)

// WithLogger sets the actor logger
func WithLogger(logger *zap.Logger) Option {
	return func(a *TenantActor) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics records queue depth and operation latency
func WithMetrics(metrics *telemetry.IntegrationMetrics) Option {
	return func(a *TenantActor) {
		a.metrics = metrics
	}
}

// NewTenantActor creates an actor that takes ownership of provider.
// The provider must not be used by anything else afterwards.
func NewTenantActor(tenant *integration.TenantContext, provider integration.Provider, pipeline *resilience.Pipeline, opts ...Option) *TenantActor {
	ctx, cancel := context.WithCancel(context.Background())
	a := &TenantActor{
		tenant:        tenant,
		provider:      provider,
		pipeline:      pipeline,
		logger:        zap.NewNop(),
		sem:           semaphore.NewWeighted(1),
		disposeCtx:    ctx,
		disposeCancel: cancel,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(zap.String("tenant_id", tenant.Key()))
	return a
}

// Tenant returns the tenant this actor serves
func (a *TenantActor) Tenant() *integration.TenantContext {
	return a.tenant
}

// Provider returns the provider session owned by the actor
func (a *TenantActor) Provider() integration.Provider {
	return a.provider
}

// Pipeline returns the tenant's resilience pipeline
func (a *TenantActor) Pipeline() *resilience.Pipeline {
	return a.pipeline
}

// IsReady returns true once Initialize succeeded
func (a *TenantActor) IsReady() bool {
	return a.ready.Load() && !a.disposed.Load()
}

// Initialize initializes the provider session. Calling it again after a
// success is a no-op; a failed initialization may be retried.
func (a *TenantActor) Initialize(ctx context.Context) error {
	a.initMu.Lock()
	defer a.initMu.Unlock()

	if a.disposed.Load() {
		return integration.ErrActorDisposed
	}
	if a.ready.Load() {
		return nil
	}
	if err := a.provider.Initialize(ctx, a.tenant); err != nil {
		a.logger.Warn("provider initialization failed", zap.Error(err))
		return fmt.Errorf("initialize %s provider: %w", a.provider.Type(), err)
	}
	a.ready.Store(true)
	a.logger.Info("tenant actor ready", zap.String("erp_type", a.provider.Type().String()))
	return nil
}

// Enqueue runs op after every previously enqueued operation of this actor
// finished. The error of the operation is returned unchanged.
//
// Cancelling ctx while the operation is queued prevents it from starting;
// such operations are not counted. Started operations count as processed or
// failed.
func (a *TenantActor) Enqueue(ctx context.Context, op integration.Operation) error {
	if a.disposed.Load() {
		return integration.ErrActorDisposed
	}
	if !a.ready.Load() {
		return integration.ErrActorNotInitialized
	}
	if !a.tenant.SameTenant(op.Tenant()) {
		return fmt.Errorf("%w: actor %s received operation %s for tenant %s",
			integration.ErrTenantMismatch, a.tenant.Key(), op.Name(), tenantKey(op.Tenant()))
	}
	if err := op.Claim(); err != nil {
		return err
	}

	start := time.Now()
	ctx, span := telemetry.StartOperationSpan(ctx, a.tenant.Key(), op.Name(),
		telemetry.WithAttribute(telemetry.SpanAttrERPType, a.provider.Type().String()))
	defer span.End()

	runCtx, stop := a.withDisposal(ctx)
	defer stop()

	depth := a.queued.Add(1)
	a.recordQueueDepth(ctx, depth)
	telemetry.SetAttribute(span, telemetry.SpanAttrQueueDepth, depth-1)

	err := a.sem.Acquire(runCtx, 1)
	a.recordQueueDepth(ctx, a.queued.Add(-1))
	if err != nil {
		err = a.cancelCause(runCtx, err)
		op.Complete(err)
		telemetry.RecordError(span, err)
		return err
	}

	if err := a.startErr(runCtx); err != nil {
		a.sem.Release(1)
		op.Complete(err)
		telemetry.RecordError(span, err)
		return err
	}

	err = a.pipeline.Execute(runCtx, func(ctx context.Context) error {
		return op.Attempt(ctx, a.provider)
	})
	a.sem.Release(1)

	if err != nil {
		err = a.cancelCause(runCtx, err)
		a.failed.Add(1)
		telemetry.RecordError(span, err)
		telemetry.SetAttribute(span, telemetry.SpanAttrErrorKind, integration.KindOf(err).String())
		a.logger.Debug("operation failed", zap.String("operation", op.Name()), zap.Error(err))
	} else {
		a.processed.Add(1)
		telemetry.SetOK(span)
	}
	op.Complete(err)
	if a.metrics != nil {
		a.metrics.RecordOperation(ctx, a.tenant.Key(), op.Name(), time.Since(start), err)
	}
	return err
}

// Statistics returns a snapshot of the actor counters
func (a *TenantActor) Statistics() integration.ActorStatistics {
	return integration.ActorStatistics{
		TenantID:  a.tenant.TenantID(),
		Processed: a.processed.Load(),
		Failed:    a.failed.Load(),
		Queued:    a.queued.Load(),
		Ready:     a.IsReady(),
	}
}

// Dispose cancels queued and running operations, waits for the running
// operation to return (bounded by ctx) and closes the provider session.
// Later calls return the result of the first.
func (a *TenantActor) Dispose(ctx context.Context) error {
	a.disposeOnce.Do(func() {
		a.disposed.Store(true)
		a.disposeCancel()

		if err := a.sem.Acquire(ctx, 1); err != nil {
			a.logger.Warn("closing provider while an operation is still running", zap.Error(err))
		} else {
			defer a.sem.Release(1)
		}

		if err := a.provider.Close(); err != nil {
			a.disposeErr = fmt.Errorf("close %s provider: %w", a.provider.Type(), err)
			a.logger.Error("failed to close provider session", zap.Error(err))
			return
		}
		a.logger.Info("tenant actor disposed",
			zap.Int64("processed", a.processed.Load()),
			zap.Int64("failed", a.failed.Load()),
		)
	})
	return a.disposeErr
}

// withDisposal derives a context that is also cancelled when the actor is disposed
func (a *TenantActor) withDisposal(ctx context.Context) (context.Context, func()) {
	runCtx, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(a.disposeCtx, func() {
		cancel(integration.ErrActorDisposed)
	})
	return runCtx, func() {
		stop()
		cancel(nil)
	}
}

// startErr reports why an operation that acquired the actor must not start
func (a *TenantActor) startErr(runCtx context.Context) error {
	if a.disposed.Load() {
		return integration.ErrActorDisposed
	}
	return a.cancelCause(runCtx, runCtx.Err())
}

// cancelCause reports disposal as ErrActorDisposed instead of context.Canceled
func (a *TenantActor) cancelCause(runCtx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(context.Cause(runCtx), integration.ErrActorDisposed) && errors.Is(err, context.Canceled) {
		return integration.ErrActorDisposed
	}
	return err
}

func (a *TenantActor) recordQueueDepth(ctx context.Context, depth int64) {
	if a.metrics != nil {
		a.metrics.RecordQueueDepth(ctx, a.tenant.Key(), depth)
	}
}

func tenantKey(t *integration.TenantContext) string {
	if t == nil {
		return "<nil>"
	}
	return t.Key()
}
