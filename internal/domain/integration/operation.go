package integration

import (
	"context"
	"sync"
	"sync/atomic"
)

// Operation is a bound unit of work executed by a tenant actor.
// It is claimed exactly once, may be attempted several times by the
// resilience pipeline, and is completed with its terminal outcome.
type Operation interface {
	// Tenant returns the tenant the operation is bound to
	Tenant() *TenantContext
	// Name identifies the operation for logs and metrics
	Name() string
	// Claim marks the operation as consumed; a second claim returns ErrOperationConsumed
	Claim() error
	// Attempt performs one attempt of the bound call against the provider
	Attempt(ctx context.Context, p Provider) error
	// Complete records the terminal outcome
	Complete(err error)
}

// ErpOperation binds a tenant to a typed provider call
type ErpOperation[T any] struct {
	tenant *TenantContext
	name   string
	fn     func(ctx context.Context, p Provider) (T, error)

	claimed atomic.Bool
	done    chan struct{}
	once    sync.Once

	mu    sync.Mutex
	value T
	err   error
}

// NewOperation creates an operation for the tenant
func NewOperation[T any](tenant *TenantContext, name string, fn func(ctx context.Context, p Provider) (T, error)) *ErpOperation[T] {
	return &ErpOperation[T]{
		tenant: tenant,
		name:   name,
		fn:     fn,
		done:   make(chan struct{}),
	}
}

// Tenant implements Operation
func (o *ErpOperation[T]) Tenant() *TenantContext {
	return o.tenant
}

// Name implements Operation
func (o *ErpOperation[T]) Name() string {
	return o.name
}

// Claim implements Operation
func (o *ErpOperation[T]) Claim() error {
	if !o.claimed.CompareAndSwap(false, true) {
		return ErrOperationConsumed
	}
	return nil
}

// Attempt implements Operation. The value of the latest attempt is kept.
func (o *ErpOperation[T]) Attempt(ctx context.Context, p Provider) error {
	v, err := o.fn(ctx, p)
	o.mu.Lock()
	o.value = v
	o.mu.Unlock()
	return err
}

// Complete implements Operation. Only the first call has an effect.
func (o *ErpOperation[T]) Complete(err error) {
	o.once.Do(func() {
		o.mu.Lock()
		o.err = err
		o.mu.Unlock()
		close(o.done)
	})
}

// Done is closed when the operation has completed
func (o *ErpOperation[T]) Done() <-chan struct{} {
	return o.done
}

// Outcome returns the value of the last attempt and the terminal error.
// It returns ErrOperationNotRun before the operation completed.
func (o *ErpOperation[T]) Outcome() (T, error) {
	select {
	case <-o.done:
	default:
		var zero T
		return zero, ErrOperationNotRun
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		var zero T
		return zero, o.err
	}
	return o.value, nil
}
