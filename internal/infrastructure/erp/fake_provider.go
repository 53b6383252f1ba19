package erp

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/erpcore/internal/domain/integration"
)

// fakeOrderNamespace derives stable order IDs from tenant and external reference
var fakeOrderNamespace = uuid.MustParse("6f1c8a52-3d0e-4b8e-9a43-5c2f0e7d1b90")

// fakeEpoch is the UpdatedAt of the first seeded entity
var fakeEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// onHoldThreshold is the order total above which the fake ERP blocks an order for credit review
var onHoldThreshold = decimal.NewFromInt(10000)

// DefaultFakeCapabilities is what the fake provider supports unless overridden
var DefaultFakeCapabilities = integration.Capabilities{
	SupportsCatalogSync:        true,
	SupportsOrderCreation:      true,
	SupportsCustomerManagement: true,
	SupportsDeltaSync:          true,
	MaxBatchSize:               100,
	MaxPageSize:                500,
	AuthTypes:                  []integration.AuthType{integration.AuthTypeNone},
}

// FakeProvider is a deterministic in-memory ERP. It serves seeded catalog and
// customer data, records created orders per tenant, and can be told to fail
// or slow down so callers can exercise their failure handling.
type FakeProvider struct {
	caps integration.Capabilities
	now  func() time.Time

	mu          sync.RWMutex
	products    []integration.Product
	customers   []integration.Customer
	orders      map[string]integration.Order // tenant/external ref -> order
	orderKeys   []string
	initialized bool
	closed      bool
	available   bool
	latency     time.Duration
	faults      []error
	calls       map[string]int
}

// FakeOption configures a FakeProvider
type FakeOption func(*FakeProvider)

// WithFakeClock sets the clock used for created orders and upserts
func WithFakeClock(now func() time.Time) FakeOption {
	return func(p *FakeProvider) {
		p.now = now
	}
}

// WithFakeCapabilities overrides the capability descriptor
func WithFakeCapabilities(caps integration.Capabilities) FakeOption {
	return func(p *FakeProvider) {
		p.caps = caps
	}
}

// WithFakeSeed sets how many products and customers are seeded
func WithFakeSeed(products, customers int) FakeOption {
	return func(p *FakeProvider) {
		p.products = seedProducts(products)
		p.customers = seedCustomers(customers)
	}
}

// WithFakeLatency delays every call by d, honoring cancellation
func WithFakeLatency(d time.Duration) FakeOption {
	return func(p *FakeProvider) {
		p.latency = d
	}
}

// NewFakeProvider creates a fake provider seeded with 250 products and 50 customers
func NewFakeProvider(opts ...FakeOption) *FakeProvider {
	p := &FakeProvider{
		caps:      DefaultFakeCapabilities,
		now:       time.Now,
		products:  seedProducts(250),
		customers: seedCustomers(50),
		orders:    make(map[string]integration.Order),
		available: true,
		calls:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func seedProducts(n int) []integration.Product {
	products := make([]integration.Product, 0, n)
	for i := 1; i <= n; i++ {
		products = append(products, integration.Product{
			ID:          fmt.Sprintf("P-%05d", i),
			SKU:         fmt.Sprintf("SKU-%05d", i),
			Name:        fmt.Sprintf("Product %05d", i),
			Description: fmt.Sprintf("Seeded catalog item %d", i),
			Price:       decimal.New(int64(1000+i*25), -2),
			Currency:    "EUR",
			Active:      i%10 != 0,
			UpdatedAt:   fakeEpoch.Add(time.Duration(i) * time.Minute),
		})
	}
	return products
}

func seedCustomers(n int) []integration.Customer {
	customers := make([]integration.Customer, 0, n)
	for i := 1; i <= n; i++ {
		customers = append(customers, integration.Customer{
			ID:        fmt.Sprintf("C-%05d", i),
			Name:      fmt.Sprintf("Customer %05d", i),
			Email:     fmt.Sprintf("customer%05d@example.com", i),
			Phone:     fmt.Sprintf("+49 30 %07d", i),
			Active:    true,
			UpdatedAt: fakeEpoch.Add(time.Duration(i) * time.Hour),
		})
	}
	return customers
}

// ---------------------------------------------------------------------------
// Test controls
// ---------------------------------------------------------------------------

// InjectFaults queues errors returned by the next calls, one per call
func (p *FakeProvider) InjectFaults(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.faults = append(p.faults, errs...)
}

// SetAvailable sets what CheckHealth reports
func (p *FakeProvider) SetAvailable(available bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.available = available
}

// PutProduct inserts or replaces a product. A zero UpdatedAt is set to now.
func (p *FakeProvider) PutProduct(product integration.Product) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = p.now()
	}
	if i := slices.IndexFunc(p.products, func(x integration.Product) bool { return x.ID == product.ID }); i >= 0 {
		p.products[i] = product
		return
	}
	p.products = append(p.products, product)
}

// PutCustomer inserts or replaces a customer. A zero UpdatedAt is set to now.
func (p *FakeProvider) PutCustomer(customer integration.Customer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if customer.UpdatedAt.IsZero() {
		customer.UpdatedAt = p.now()
	}
	if i := slices.IndexFunc(p.customers, func(x integration.Customer) bool { return x.ID == customer.ID }); i >= 0 {
		p.customers[i] = customer
		return
	}
	p.customers = append(p.customers, customer)
}

// Calls returns how many times an operation was invoked
func (p *FakeProvider) Calls(op string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.calls[op]
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Type returns the ERP type this provider implements
func (p *FakeProvider) Type() integration.ProviderType {
	return integration.ProviderTypeFake
}

// Initialize marks the provider ready. Repeated calls are no-ops.
func (p *FakeProvider) Initialize(ctx context.Context, _ *integration.TenantContext) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return integration.ErrProviderClosed
	}
	p.initialized = true
	return nil
}

// Close releases the provider; later calls fail with ErrProviderClosed
func (p *FakeProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// enter counts the call, applies queued faults and latency
func (p *FakeProvider) enter(ctx context.Context, op string) error {
	p.mu.Lock()
	p.calls[op]++
	var fault error
	switch {
	case p.closed:
		fault = integration.ErrProviderClosed
	case !p.initialized:
		fault = integration.ErrProviderNotReady
	case len(p.faults) > 0:
		fault = p.faults[0]
		p.faults = p.faults[1:]
	}
	latency := p.latency
	p.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if fault != nil {
		return fault
	}
	return ctx.Err()
}

// ---------------------------------------------------------------------------
// Health and Capabilities
// ---------------------------------------------------------------------------

// CheckHealth reports the configured availability
func (p *FakeProvider) CheckHealth(ctx context.Context, _ *integration.TenantContext) (integration.Result[*integration.HealthStatus], error) {
	start := time.Now()
	if err := p.enter(ctx, "check_health"); err != nil {
		return integration.Result[*integration.HealthStatus]{}, err
	}
	p.mu.RLock()
	available := p.available
	p.mu.RUnlock()

	msg := "fake ERP ready"
	if !available {
		msg = "fake ERP marked unavailable"
	}
	return integration.Ok(&integration.HealthStatus{
		Available: available,
		Latency:   time.Since(start),
		Message:   msg,
		CheckedAt: p.now(),
	}), nil
}

// Capabilities returns the capability descriptor
func (p *FakeProvider) Capabilities(context.Context, *integration.TenantContext) (integration.Capabilities, error) {
	caps := p.caps
	caps.AuthTypes = slices.Clone(p.caps.AuthTypes)
	return caps, nil
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// GetProduct reads a product; unknown IDs are Ok(nil)
func (p *FakeProvider) GetProduct(ctx context.Context, _ *integration.TenantContext, id string) (integration.Result[*integration.Product], error) {
	if err := p.enter(ctx, "get_product"); err != nil {
		return integration.Result[*integration.Product]{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, product := range p.products {
		if product.ID == id {
			return integration.Ok(&product), nil
		}
	}
	return integration.Ok[*integration.Product](nil), nil
}

// GetCustomer reads a customer; unknown IDs are Ok(nil)
func (p *FakeProvider) GetCustomer(ctx context.Context, _ *integration.TenantContext, id string) (integration.Result[*integration.Customer], error) {
	if err := p.enter(ctx, "get_customer"); err != nil {
		return integration.Result[*integration.Customer]{}, err
	}
	if !p.caps.SupportsCustomerManagement {
		return integration.Fail[*integration.Customer](integration.CodeUnsupported, "customer management is not supported", false), nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if c, ok := p.customerLocked(id); ok {
		return integration.Ok(&c), nil
	}
	return integration.Ok[*integration.Customer](nil), nil
}

// GetProducts reads many products; unknown IDs are omitted
func (p *FakeProvider) GetProducts(ctx context.Context, _ *integration.TenantContext, ids []string) (integration.Result[[]integration.Product], error) {
	if err := p.enter(ctx, "get_products"); err != nil {
		return integration.Result[[]integration.Product]{}, err
	}
	if f := checkBatchSize(len(ids), p.caps); f != nil {
		return integration.FailWith[[]integration.Product](f), nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]integration.Product, 0, len(ids))
	for _, id := range dedupe(ids) {
		if i := slices.IndexFunc(p.products, func(x integration.Product) bool { return x.ID == id }); i >= 0 {
			out = append(out, p.products[i])
		}
	}
	return integration.Ok(out), nil
}

// GetCustomers reads many customers; unknown IDs are omitted
func (p *FakeProvider) GetCustomers(ctx context.Context, _ *integration.TenantContext, ids []string) (integration.Result[[]integration.Customer], error) {
	if err := p.enter(ctx, "get_customers"); err != nil {
		return integration.Result[[]integration.Customer]{}, err
	}
	if f := checkBatchSize(len(ids), p.caps); f != nil {
		return integration.FailWith[[]integration.Customer](f), nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]integration.Customer, 0, len(ids))
	for _, id := range dedupe(ids) {
		if c, ok := p.customerLocked(id); ok {
			out = append(out, c)
		}
	}
	return integration.Ok(out), nil
}

func (p *FakeProvider) customerLocked(id string) (integration.Customer, bool) {
	i := slices.IndexFunc(p.customers, func(x integration.Customer) bool { return x.ID == id })
	if i < 0 {
		return integration.Customer{}, false
	}
	return p.customers[i], true
}

// ListProducts reads one page of products ordered by ID. The filter matches
// a case-insensitive prefix of the ID or the name.
func (p *FakeProvider) ListProducts(ctx context.Context, _ *integration.TenantContext, req integration.PageRequest) (integration.Result[*integration.PagedResult[integration.Product]], error) {
	if err := p.enter(ctx, "list_products"); err != nil {
		return integration.Result[*integration.PagedResult[integration.Product]]{}, err
	}
	p.mu.RLock()
	matched := filterSorted(p.products, req.Filter,
		func(x integration.Product) (string, string) { return x.ID, x.Name })
	p.mu.RUnlock()
	return pageOf(matched, req, p.caps)
}

// ListCustomers reads one page of customers ordered by ID
func (p *FakeProvider) ListCustomers(ctx context.Context, _ *integration.TenantContext, req integration.PageRequest) (integration.Result[*integration.PagedResult[integration.Customer]], error) {
	if err := p.enter(ctx, "list_customers"); err != nil {
		return integration.Result[*integration.PagedResult[integration.Customer]]{}, err
	}
	p.mu.RLock()
	matched := filterSorted(p.customers, req.Filter,
		func(x integration.Customer) (string, string) { return x.ID, x.Name })
	p.mu.RUnlock()
	return pageOf(matched, req, p.caps)
}

func filterSorted[T any](items []T, filter string, keys func(T) (id, name string)) []T {
	filter = strings.ToLower(filter)
	out := make([]T, 0, len(items))
	for _, item := range items {
		id, name := keys(item)
		if filter == "" || strings.HasPrefix(strings.ToLower(id), filter) || strings.HasPrefix(strings.ToLower(name), filter) {
			out = append(out, item)
		}
	}
	slices.SortFunc(out, func(a, b T) int {
		ida, _ := keys(a)
		idb, _ := keys(b)
		return strings.Compare(ida, idb)
	})
	return out
}

func pageOf[T any](items []T, req integration.PageRequest, caps integration.Capabilities) (integration.Result[*integration.PagedResult[T]], error) {
	offset, err := decodeOffsetToken(req.ContinuationToken)
	if err != nil {
		return integration.FailFrom[*integration.PagedResult[T]](err), nil
	}
	size := caps.ClampPageSize(req.SizeOrDefault())
	total := int64(len(items))

	if offset > len(items) {
		offset = len(items)
	}
	end := min(offset+size, len(items))
	page := slices.Clone(items[offset:end])

	return integration.Ok(&integration.PagedResult[T]{
		Items:             page,
		ContinuationToken: nextToken(offset, len(page), end < len(items)),
		TotalCount:        &total,
	}), nil
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// CreateOrder validates and records an order. The order ID is derived from
// tenant and external reference; resubmitting a reference is a conflict.
func (p *FakeProvider) CreateOrder(ctx context.Context, tenant *integration.TenantContext, order *integration.OrderRequest) (integration.Result[*integration.Order], error) {
	if err := p.enter(ctx, "create_order"); err != nil {
		return integration.Result[*integration.Order]{}, err
	}
	created, f := p.createOrder(tenant, order)
	if f != nil {
		return integration.FailWith[*integration.Order](f), nil
	}
	return integration.Ok(created), nil
}

// CreateOrders records many orders; each item succeeds or fails on its own
func (p *FakeProvider) CreateOrders(ctx context.Context, tenant *integration.TenantContext, orders []integration.OrderRequest) (integration.Result[*integration.BatchResult], error) {
	if err := p.enter(ctx, "create_orders"); err != nil {
		return integration.Result[*integration.BatchResult]{}, err
	}
	if f := checkBatchSize(len(orders), p.caps); f != nil {
		return integration.FailWith[*integration.BatchResult](f), nil
	}

	batch := integration.NewBatchBuilder(len(orders))
	for i := range orders {
		if _, f := p.createOrder(tenant, &orders[i]); f != nil {
			batch.Fail(orders[i].ExternalRef, f.Code, f.Message)
			continue
		}
		batch.Succeed()
	}
	return integration.Ok(batch.Result()), nil
}

func (p *FakeProvider) createOrder(tenant *integration.TenantContext, req *integration.OrderRequest) (*integration.Order, *integration.Failure) {
	if !p.caps.SupportsOrderCreation {
		return nil, &integration.Failure{Code: integration.CodeUnsupported, Message: "order creation is not supported"}
	}
	if err := integration.ValidateOrderRequest(req); err != nil {
		return nil, integration.FailFrom[struct{}](err).Failure()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.customerLocked(req.CustomerID); !ok {
		return nil, &integration.Failure{
			Code:    integration.CodeValidationFailed,
			Message: fmt.Sprintf("unknown customer %q", req.CustomerID),
		}
	}
	for _, line := range req.Lines {
		i := slices.IndexFunc(p.products, func(x integration.Product) bool { return x.ID == line.ProductID })
		if i < 0 || !p.products[i].Active {
			return nil, &integration.Failure{
				Code:    integration.CodeValidationFailed,
				Message: fmt.Sprintf("product %q is unknown or inactive", line.ProductID),
			}
		}
	}

	key := tenant.Key() + "/" + req.ExternalRef
	if _, exists := p.orders[key]; exists {
		return nil, &integration.Failure{
			Code:    integration.CodeConflict,
			Message: fmt.Sprintf("order %q already exists", req.ExternalRef),
		}
	}

	total := req.Total()
	status := integration.OrderStatusCreated
	if total.GreaterThan(onHoldThreshold) {
		status = integration.OrderStatusOnHold
	}
	order := integration.Order{
		ID:          uuid.NewSHA1(fakeOrderNamespace, []byte(key)).String(),
		ExternalRef: req.ExternalRef,
		CustomerID:  req.CustomerID,
		Status:      status,
		Total:       total,
		Currency:    req.Currency,
		CreatedAt:   p.now(),
	}
	p.orders[key] = order
	p.orderKeys = append(p.orderKeys, key)
	return &order, nil
}

// ---------------------------------------------------------------------------
// Sync
// ---------------------------------------------------------------------------

// Sync pages through a snapshot of the entity ordered by change time
func (p *FakeProvider) Sync(ctx context.Context, tenant *integration.TenantContext, req integration.SyncRequest, progress integration.ProgressReporter) (integration.Result[*integration.SyncResult], error) {
	if err := p.enter(ctx, "sync"); err != nil {
		return integration.Result[*integration.SyncResult]{}, err
	}
	if f := checkSyncRequest(req, p.caps); f != nil {
		return integration.FailWith[*integration.SyncResult](f), nil
	}
	limit := p.caps.ClampPageSize(req.PageSize)
	if limit <= 0 {
		limit = integration.DefaultPageSize
	}

	p.mu.RLock()
	var changes []time.Time
	switch req.Entity {
	case integration.EntityProduct:
		for _, x := range p.products {
			changes = append(changes, x.UpdatedAt)
		}
	case integration.EntityCustomer:
		for _, x := range p.customers {
			changes = append(changes, x.UpdatedAt)
		}
	case integration.EntityOrder:
		prefix := tenant.Key() + "/"
		for _, key := range p.orderKeys {
			if strings.HasPrefix(key, prefix) {
				changes = append(changes, p.orders[key].CreatedAt)
			}
		}
	}
	p.mu.RUnlock()
	slices.SortFunc(changes, func(a, b time.Time) int { return a.Compare(b) })

	since, _ := req.Watermark.Time()
	if req.Mode == integration.SyncModeDelta {
		start, _ := slices.BinarySearchFunc(changes, since, func(t, target time.Time) int {
			if t.After(target) {
				return 1
			}
			return -1
		})
		changes = changes[start:]
	}

	fetch := func(_ context.Context, offset, n int) (syncPage[time.Time], *integration.Failure, error) {
		end := min(offset+n, len(changes))
		return syncPage[time.Time]{Items: changes[offset:end], HasMore: end < len(changes)}, nil, nil
	}
	return runSync(ctx, req, progress, limit, fetch, func(t time.Time) time.Time { return t })
}

// Ensure FakeProvider implements Provider
var _ integration.Provider = (*FakeProvider)(nil)
