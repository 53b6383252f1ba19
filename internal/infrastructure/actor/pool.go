package actor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/erp/erpcore/internal/domain/integration"
)

// Builder constructs the actor for a tenant. The pool initializes it.
type Builder func(ctx context.Context, tenant *integration.TenantContext) (*TenantActor, error)

// Pool holds at most one actor per tenant
type Pool struct {
	build  Builder
	logger *zap.Logger

	mu     sync.RWMutex
	actors map[uuid.UUID]*TenantActor
	closed bool

	group         singleflight.Group
	createTimeout time.Duration
}

// PoolOption configures a Pool
type PoolOption func(*Pool)

// WithCreateTimeout bounds a shared actor construction. Zero means no bound.
func WithCreateTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		p.createTimeout = d
	}
}

// NewPool creates an actor pool
func NewPool(build Builder, logger *zap.Logger, opts ...PoolOption) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		build:  build,
		logger: logger.Named("actor_pool"),
		actors: make(map[uuid.UUID]*TenantActor),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get returns the actor of a tenant, or nil if none exists
func (p *Pool) Get(tenantID uuid.UUID) *TenantActor {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.actors[tenantID]
}

// Len returns the number of live actors
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.actors)
}

// GetOrCreate returns the tenant's actor, building and initializing it on
// first use. Concurrent first calls for one tenant share a single
// construction, which runs detached from any one caller's cancellation and
// is bounded by the create timeout; each caller stops waiting when its own
// ctx is done. A failed construction is not cached.
func (p *Pool) GetOrCreate(ctx context.Context, tenant *integration.TenantContext) (*TenantActor, error) {
	p.mu.RLock()
	closed := p.closed
	existing := p.actors[tenant.TenantID()]
	p.mu.RUnlock()

	if closed {
		return nil, integration.ErrPoolClosed
	}
	if existing != nil {
		return existing, nil
	}

	ch := p.group.DoChan(tenant.Key(), func() (any, error) {
		createCtx := context.WithoutCancel(ctx)
		if p.createTimeout > 0 {
			var cancel context.CancelFunc
			createCtx, cancel = context.WithTimeout(createCtx, p.createTimeout)
			defer cancel()
		}
		return p.create(createCtx, tenant)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*TenantActor), nil
	}
}

func (p *Pool) create(ctx context.Context, tenant *integration.TenantContext) (*TenantActor, error) {
	p.mu.RLock()
	existing := p.actors[tenant.TenantID()]
	p.mu.RUnlock()
	if existing != nil {
		return existing, nil
	}

	actor, err := p.build(ctx, tenant)
	if err != nil {
		return nil, err
	}
	if err := actor.Initialize(ctx); err != nil {
		_ = actor.Dispose(context.WithoutCancel(ctx))
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = actor.Dispose(context.WithoutCancel(ctx))
		return nil, integration.ErrPoolClosed
	}
	p.actors[tenant.TenantID()] = actor
	p.mu.Unlock()

	p.logger.Debug("actor created", zap.String("tenant_id", tenant.Key()))
	return actor, nil
}

// Remove disposes the tenant's actor and drops it from the pool.
// Removing an unknown tenant is a no-op.
func (p *Pool) Remove(ctx context.Context, tenantID uuid.UUID) error {
	p.mu.Lock()
	actor, ok := p.actors[tenantID]
	delete(p.actors, tenantID)
	p.mu.Unlock()

	if !ok {
		return nil
	}
	return actor.Dispose(ctx)
}

// Statistics returns per-tenant counters sorted by tenant ID
func (p *Pool) Statistics() []integration.ActorStatistics {
	p.mu.RLock()
	stats := make([]integration.ActorStatistics, 0, len(p.actors))
	for _, a := range p.actors {
		stats = append(stats, a.Statistics())
	}
	p.mu.RUnlock()

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].TenantID.String() < stats[j].TenantID.String()
	})
	return stats
}

// Close disposes every actor. Later calls return ErrPoolClosed.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return integration.ErrPoolClosed
	}
	p.closed = true
	actors := make([]*TenantActor, 0, len(p.actors))
	for _, a := range p.actors {
		actors = append(actors, a)
	}
	clear(p.actors)
	p.mu.Unlock()

	var g errgroup.Group
	for _, a := range actors {
		g.Go(func() error {
			return a.Dispose(ctx)
		})
	}
	err := g.Wait()
	p.logger.Info("actor pool closed", zap.Int("actors", len(actors)))
	return err
}
