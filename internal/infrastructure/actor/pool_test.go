package actor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/erp/erpcore/internal/domain/integration"
	"github.com/erp/erpcore/internal/infrastructure/resilience"
)

type countingBuilder struct {
	builds atomic.Int32
	delay  time.Duration
	err    error

	mu        sync.Mutex
	providers []*stubProvider
}

func newCountingBuilder() *countingBuilder {
	return &countingBuilder{}
}

func (b *countingBuilder) build(ctx context.Context, tenant *integration.TenantContext) (*TenantActor, error) {
	b.builds.Add(1)
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if b.err != nil {
		return nil, b.err
	}
	p := &stubProvider{}
	b.mu.Lock()
	b.providers = append(b.providers, p)
	b.mu.Unlock()
	return NewTenantActor(tenant, p, resilience.New(tenant.Key(), testPipelineConfig())), nil
}

func TestPool_GetOrCreateBuildsOnce(t *testing.T) {
	b := newCountingBuilder()
	b.delay = 20 * time.Millisecond
	pool := NewPool(b.build, nil)
	defer pool.Close(context.Background())

	tenant := newTenant()
	actors := make([]*TenantActor, 20)
	var g errgroup.Group
	for i := range actors {
		g.Go(func() error {
			a, err := pool.GetOrCreate(context.Background(), tenant)
			actors[i] = a
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), b.builds.Load())
	for _, a := range actors {
		assert.Same(t, actors[0], a)
	}
	assert.True(t, actors[0].IsReady())
	assert.Equal(t, 1, pool.Len())
	assert.Same(t, actors[0], pool.Get(tenant.TenantID()))
}

func TestPool_FailedBuildIsNotCached(t *testing.T) {
	b := newCountingBuilder()
	b.err = integration.NewConnectionError(errors.New("no route to host"))
	pool := NewPool(b.build, nil)
	defer pool.Close(context.Background())

	tenant := newTenant()
	_, err := pool.GetOrCreate(context.Background(), tenant)
	require.Error(t, err)
	assert.Nil(t, pool.Get(tenant.TenantID()))

	b.err = nil
	a, err := pool.GetOrCreate(context.Background(), tenant)
	require.NoError(t, err)
	assert.NotNil(t, a)
	assert.Equal(t, int32(2), b.builds.Load())
}

func TestPool_FailedInitializeDisposesActor(t *testing.T) {
	p := &stubProvider{initErr: errors.New("bad credentials")}
	pool := NewPool(func(ctx context.Context, tenant *integration.TenantContext) (*TenantActor, error) {
		return NewTenantActor(tenant, p, resilience.New(tenant.Key(), testPipelineConfig())), nil
	}, nil)
	defer pool.Close(context.Background())

	_, err := pool.GetOrCreate(context.Background(), newTenant())
	require.Error(t, err)
	assert.Equal(t, int32(1), p.closeCalls.Load())
	assert.Zero(t, pool.Len())
}

func TestPool_Remove(t *testing.T) {
	b := newCountingBuilder()
	pool := NewPool(b.build, nil)
	defer pool.Close(context.Background())

	tenant := newTenant()
	a, err := pool.GetOrCreate(context.Background(), tenant)
	require.NoError(t, err)

	require.NoError(t, pool.Remove(context.Background(), tenant.TenantID()))
	assert.Nil(t, pool.Get(tenant.TenantID()))
	assert.False(t, a.IsReady())
	assert.Equal(t, int32(1), b.providers[0].closeCalls.Load())

	assert.NoError(t, pool.Remove(context.Background(), uuid.New()))

	again, err := pool.GetOrCreate(context.Background(), tenant)
	require.NoError(t, err)
	assert.NotSame(t, a, again)
}

func TestPool_StatisticsSorted(t *testing.T) {
	pool := NewPool(newCountingBuilder().build, nil)
	defer pool.Close(context.Background())

	var ids []string
	for i := 0; i < 5; i++ {
		tenant := newTenant()
		ids = append(ids, tenant.Key())
		a, err := pool.GetOrCreate(context.Background(), tenant)
		require.NoError(t, err)
		require.NoError(t, a.Enqueue(context.Background(), funcOp(tenant, "noop", func(context.Context) error { return nil })))
	}
	sort.Strings(ids)

	stats := pool.Statistics()
	require.Len(t, stats, 5)
	for i, s := range stats {
		assert.Equal(t, ids[i], s.TenantID.String())
		assert.Equal(t, int64(1), s.Processed)
		assert.True(t, s.Ready)
	}
}

func TestPool_Close(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := newCountingBuilder()
	pool := NewPool(b.build, nil)

	tenants := []*integration.TenantContext{newTenant(), newTenant(), newTenant()}
	for _, tenant := range tenants {
		_, err := pool.GetOrCreate(context.Background(), tenant)
		require.NoError(t, err)
	}

	// leave one operation blocked on its context so Close has to cancel it
	blocked := make(chan error, 1)
	started := make(chan struct{})
	go func() {
		a := pool.Get(tenants[0].TenantID())
		blocked <- a.Enqueue(context.Background(), funcOp(tenants[0], "long", func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		}))
	}()
	<-started

	require.NoError(t, pool.Close(context.Background()))
	assert.ErrorIs(t, <-blocked, integration.ErrActorDisposed)
	assert.Zero(t, pool.Len())
	for _, p := range b.providers {
		assert.Equal(t, int32(1), p.closeCalls.Load())
	}

	assert.ErrorIs(t, pool.Close(context.Background()), integration.ErrPoolClosed)
	_, err := pool.GetOrCreate(context.Background(), newTenant())
	assert.ErrorIs(t, err, integration.ErrPoolClosed)
}

// gatedProvider blocks Initialize until released or its context ends
type gatedProvider struct {
	stubProvider
	started chan struct{}
	release chan struct{}
	sawDone atomic.Bool
}

func newGatedProvider() *gatedProvider {
	return &gatedProvider{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedProvider) Initialize(ctx context.Context, _ *integration.TenantContext) error {
	close(g.started)
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		g.sawDone.Store(true)
		return ctx.Err()
	}
}

func TestPool_SharedCreateOutlivesCanceledCaller(t *testing.T) {
	gp := newGatedProvider()
	var builds atomic.Int32
	pool := NewPool(func(ctx context.Context, tenant *integration.TenantContext) (*TenantActor, error) {
		builds.Add(1)
		return NewTenantActor(tenant, gp, resilience.New(tenant.Key(), testPipelineConfig())), nil
	}, nil)
	defer pool.Close(context.Background())
	tenant := newTenant()

	ctx1, cancel1 := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := pool.GetOrCreate(ctx1, tenant)
		first <- err
	}()
	<-gp.started

	second := make(chan *TenantActor, 1)
	go func() {
		a, err := pool.GetOrCreate(context.Background(), tenant)
		assert.NoError(t, err)
		second <- a
	}()

	cancel1()
	assert.ErrorIs(t, <-first, context.Canceled)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, gp.sawDone.Load(), "construction must not see the first caller's cancellation")

	close(gp.release)
	a := <-second
	require.NotNil(t, a)
	assert.True(t, a.IsReady())
	assert.Same(t, a, pool.Get(tenant.TenantID()))
	assert.Equal(t, int32(1), builds.Load())
}

func TestPool_CreateTimeout(t *testing.T) {
	gp := newGatedProvider()
	pool := NewPool(func(ctx context.Context, tenant *integration.TenantContext) (*TenantActor, error) {
		return NewTenantActor(tenant, gp, resilience.New(tenant.Key(), testPipelineConfig())), nil
	}, nil, WithCreateTimeout(20*time.Millisecond))
	defer pool.Close(context.Background())

	_, err := pool.GetOrCreate(context.Background(), newTenant())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, pool.Len())
	assert.Equal(t, int32(1), gp.closeCalls.Load())
}
