package erp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/erpcore/internal/domain/integration"
)

// OracleProvider implements integration.Provider against the Oracle Fusion
// Cloud REST resources (items, accounts, salesOrdersForOrderHub).
// Collections are paged with offset/limit and report hasMore.
type OracleProvider struct {
	cfg    OracleConfig
	client *restClient
	logger *zap.Logger
	now    func() time.Time

	mu          sync.Mutex
	initialized bool
	closed      bool
}

// OracleOption configures an OracleProvider
type OracleOption func(*OracleProvider)

// WithOracleLogger sets the logger
func WithOracleLogger(logger *zap.Logger) OracleOption {
	return func(p *OracleProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithOracleClock overrides the clock used for health timestamps
func WithOracleClock(now func() time.Time) OracleOption {
	return func(p *OracleProvider) {
		p.now = now
	}
}

// NewOracleProvider creates an Oracle provider
func NewOracleProvider(cfg OracleConfig, opts ...OracleOption) (*OracleProvider, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &OracleProvider{
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	auth := basicOrBearer(cfg.Username, cfg.Password, cfg.APIKey)
	client, err := newRESTClient("oracle", cfg.BaseURL, newHTTPClient(cfg.Timeout),
		NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		func(req *http.Request) {
			auth(req)
			req.Header.Set(oracleFrameworkHeader, oracleFrameworkValue)
		})
	if err != nil {
		return nil, err
	}
	p.client = client
	return p, nil
}

// Type returns the ERP type this provider implements
func (p *OracleProvider) Type() integration.ProviderType {
	return integration.ProviderTypeOracle
}

func (p *OracleProvider) scm(resource string) string {
	return path.Join(oracleSCMRoot, p.cfg.APIVersion, resource)
}

func (p *OracleProvider) crm(resource string) string {
	return path.Join(oracleCRMRoot, p.cfg.APIVersion, resource)
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Initialize verifies the credentials with a one-row read. Repeated calls are no-ops.
func (p *OracleProvider) Initialize(ctx context.Context, _ *integration.TenantContext) error {
	p.mu.Lock()
	closed, initialized := p.closed, p.initialized
	p.mu.Unlock()
	if closed {
		return integration.ErrProviderClosed
	}
	if initialized {
		return nil
	}

	resp, err := p.probe(ctx)
	if err != nil {
		return err
	}
	switch {
	case resp.Status == http.StatusUnauthorized || resp.Status == http.StatusForbidden:
		return authError("oracle", resp.Status)
	case !resp.OK():
		return oracleFailure(resp).AsError()
	}

	p.mu.Lock()
	p.initialized = true
	p.mu.Unlock()
	p.logger.Debug("Oracle session initialized",
		zap.String("base_url", p.cfg.BaseURL),
		zap.String("api_version", p.cfg.APIVersion))
	return nil
}

// Close ends the session
func (p *OracleProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.client.httpClient.CloseIdleConnections()
	return nil
}

func (p *OracleProvider) ensureReady() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.closed:
		return integration.ErrProviderClosed
	case !p.initialized:
		return integration.ErrProviderNotReady
	}
	return nil
}

func (p *OracleProvider) probe(ctx context.Context) (*apiResponse, error) {
	q := url.Values{}
	q.Set("limit", "1")
	q.Set("onlyData", "true")
	q.Set("fields", "ItemNumber")
	return p.client.do(ctx, http.MethodGet, p.scm(oracleItems), q, nil, nil)
}

// oracleFailure maps a REST framework error response to a failure
func oracleFailure(resp *apiResponse) *integration.Failure {
	body, f := decodeJSON[oracleError]("oracle", resp)
	message := ""
	if f == nil {
		message = strings.TrimSpace(body.Title + " " + body.Detail)
		if body.ErrorCode != "" {
			message = body.ErrorCode + ": " + message
		}
	} else if len(resp.Body) > 0 && len(resp.Body) < 512 {
		// the framework answers some failures with plain text
		message = strings.TrimSpace(string(resp.Body))
	}
	return statusFailure("oracle", resp, "", message)
}

// ---------------------------------------------------------------------------
// Health and Capabilities
// ---------------------------------------------------------------------------

// CheckHealth probes the items resource with a one-row read
func (p *OracleProvider) CheckHealth(ctx context.Context, _ *integration.TenantContext) (integration.Result[*integration.HealthStatus], error) {
	if err := p.ensureReady(); err != nil {
		return integration.Result[*integration.HealthStatus]{}, err
	}
	start := time.Now()
	resp, err := p.probe(ctx)
	if err != nil {
		return integration.Result[*integration.HealthStatus]{}, err
	}
	status := &integration.HealthStatus{
		Available: resp.OK(),
		Latency:   time.Since(start),
		Message:   "Oracle REST API " + p.cfg.APIVersion + " reachable",
		CheckedAt: p.now(),
	}
	if !resp.OK() {
		status.Message = oracleFailure(resp).Message
	}
	return integration.Ok(status), nil
}

// Capabilities returns the static Oracle capability descriptor
func (p *OracleProvider) Capabilities(context.Context, *integration.TenantContext) (integration.Capabilities, error) {
	return integration.Capabilities{
		SupportsCatalogSync:        true,
		SupportsOrderCreation:      true,
		SupportsCustomerManagement: true,
		SupportsDeltaSync:          true,
		MaxBatchSize:               p.cfg.MaxBatchSize,
		MaxPageSize:                p.cfg.MaxPageSize,
		AuthTypes:                  []integration.AuthType{integration.AuthTypeBasic, integration.AuthTypeOAuth2},
	}, nil
}

func (p *OracleProvider) caps() integration.Capabilities {
	caps, _ := p.Capabilities(context.Background(), nil)
	return caps
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// GetProduct finds an item by item number; no match is Ok(nil)
func (p *OracleProvider) GetProduct(ctx context.Context, _ *integration.TenantContext, id string) (integration.Result[*integration.Product], error) {
	if err := p.ensureReady(); err != nil {
		return integration.Result[*integration.Product]{}, err
	}
	if id == "" {
		return integration.Fail[*integration.Product](integration.CodeValidationFailed, "product id is required", false), nil
	}
	res, err := oracleGetMany(ctx, p, p.scm(oracleItems), "ItemNumber", []string{id}, toOracleProduct)
	if err != nil {
		return integration.Result[*integration.Product]{}, err
	}
	if res.IsFailure() {
		return integration.FailWith[*integration.Product](res.Failure()), nil
	}
	if items := res.Value(); len(items) > 0 {
		return integration.Ok(&items[0]), nil
	}
	return integration.Ok[*integration.Product](nil), nil
}

// GetCustomer reads an account by party number; 404 is Ok(nil)
func (p *OracleProvider) GetCustomer(ctx context.Context, _ *integration.TenantContext, id string) (integration.Result[*integration.Customer], error) {
	if err := p.ensureReady(); err != nil {
		return integration.Result[*integration.Customer]{}, err
	}
	if id == "" {
		return integration.Fail[*integration.Customer](integration.CodeValidationFailed, "customer id is required", false), nil
	}

	q := url.Values{}
	q.Set("onlyData", "true")
	resp, err := p.client.do(ctx, http.MethodGet, p.crm(oracleAccounts)+"/"+url.PathEscape(id), q, nil, nil)
	if err != nil {
		return integration.Result[*integration.Customer]{}, err
	}
	if resp.Status == http.StatusNotFound {
		return integration.Ok[*integration.Customer](nil), nil
	}
	if !resp.OK() {
		return integration.FailWith[*integration.Customer](oracleFailure(resp)), nil
	}

	account, f := decodeJSON[oracleAccount]("oracle", resp)
	if f != nil {
		return integration.FailWith[*integration.Customer](f), nil
	}
	customer, err := toOracleCustomer(account)
	if err != nil {
		return integration.Fail[*integration.Customer](integration.CodeBackendError, err.Error(), false), nil
	}
	return integration.Ok(&customer), nil
}

// GetProducts reads many items; unknown IDs are omitted
func (p *OracleProvider) GetProducts(ctx context.Context, _ *integration.TenantContext, ids []string) (integration.Result[[]integration.Product], error) {
	if err := p.ensureReady(); err != nil {
		return integration.Result[[]integration.Product]{}, err
	}
	if f := checkBatchSize(len(ids), p.caps()); f != nil {
		return integration.FailWith[[]integration.Product](f), nil
	}
	return oracleGetMany(ctx, p, p.scm(oracleItems), "ItemNumber", dedupe(ids), toOracleProduct)
}

// GetCustomers reads many accounts; unknown IDs are omitted
func (p *OracleProvider) GetCustomers(ctx context.Context, _ *integration.TenantContext, ids []string) (integration.Result[[]integration.Customer], error) {
	if err := p.ensureReady(); err != nil {
		return integration.Result[[]integration.Customer]{}, err
	}
	if f := checkBatchSize(len(ids), p.caps()); f != nil {
		return integration.FailWith[[]integration.Customer](f), nil
	}
	return oracleGetMany(ctx, p, p.crm(oracleAccounts), "PartyNumber", dedupe(ids), toOracleCustomer)
}

func oracleGetMany[S, T any](
	ctx context.Context,
	p *OracleProvider,
	resource, keyField string,
	ids []string,
	mapFn func(S) (T, error),
) (integration.Result[[]T], error) {
	out := make([]T, 0, len(ids))
	for start := 0; start < len(ids); start += oracleMaxFilterClause {
		chunk := ids[start:min(start+oracleMaxFilterClause, len(ids))]
		page, f, err := oracleFetch(ctx, p, resource, orFilter(keyField, "=", chunk), "", 0, len(chunk), mapFn)
		if err != nil {
			return integration.Result[[]T]{}, err
		}
		if f != nil {
			return integration.FailWith[[]T](f), nil
		}
		out = append(out, page.Items...)
	}
	return integration.Ok(out), nil
}

// oracleFetch reads the rows [offset, offset+limit) of a collection resource.
// Rows that cannot be mapped are logged and counted as failed.
func oracleFetch[S, T any](
	ctx context.Context,
	p *OracleProvider,
	resource, filter, orderBy string,
	offset, limit int,
	mapFn func(S) (T, error),
) (syncPage[T], *integration.Failure, error) {
	q := url.Values{}
	q.Set("onlyData", "true")
	q.Set("totalResults", "true")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	if filter != "" {
		q.Set("q", filter)
	}
	if orderBy != "" {
		q.Set("orderBy", orderBy)
	}

	resp, err := p.client.do(ctx, http.MethodGet, resource, q, nil, nil)
	if err != nil {
		return syncPage[T]{}, nil, err
	}
	if !resp.OK() {
		return syncPage[T]{}, oracleFailure(resp), nil
	}
	body, f := decodeJSON[oracleCollection[S]]("oracle", resp)
	if f != nil {
		return syncPage[T]{}, f, nil
	}

	page := syncPage[T]{
		Items:   make([]T, 0, len(body.Items)),
		HasMore: body.HasMore,
		Total:   body.TotalResults,
	}
	for _, raw := range body.Items {
		item, err := mapFn(raw)
		if err != nil {
			p.logger.Warn("Skipping unmappable Oracle row", zap.String("resource", resource), zap.Error(err))
			page.Failed++
			continue
		}
		page.Items = append(page.Items, item)
	}
	return page, nil, nil
}

// ---------------------------------------------------------------------------
// Paged reads
// ---------------------------------------------------------------------------

// ListProducts reads one page of items ordered by item number. The filter
// matches an item number prefix.
func (p *OracleProvider) ListProducts(ctx context.Context, _ *integration.TenantContext, req integration.PageRequest) (integration.Result[*integration.PagedResult[integration.Product]], error) {
	if err := p.ensureReady(); err != nil {
		return integration.Result[*integration.PagedResult[integration.Product]]{}, err
	}
	return oracleList(ctx, p, p.scm(oracleItems), likeFilter("ItemNumber", req.Filter), "ItemNumber:asc", req, toOracleProduct)
}

// ListCustomers reads one page of accounts ordered by party number. The
// filter matches an organization name prefix.
func (p *OracleProvider) ListCustomers(ctx context.Context, _ *integration.TenantContext, req integration.PageRequest) (integration.Result[*integration.PagedResult[integration.Customer]], error) {
	if err := p.ensureReady(); err != nil {
		return integration.Result[*integration.PagedResult[integration.Customer]]{}, err
	}
	return oracleList(ctx, p, p.crm(oracleAccounts), likeFilter("OrganizationName", req.Filter), "PartyNumber:asc", req, toOracleCustomer)
}

func oracleList[S, T any](
	ctx context.Context,
	p *OracleProvider,
	resource, filter, orderBy string,
	req integration.PageRequest,
	mapFn func(S) (T, error),
) (integration.Result[*integration.PagedResult[T]], error) {
	offset, err := decodeOffsetToken(req.ContinuationToken)
	if err != nil {
		return integration.FailFrom[*integration.PagedResult[T]](err), nil
	}
	size := p.caps().ClampPageSize(req.SizeOrDefault())

	page, f, err := oracleFetch(ctx, p, resource, filter, orderBy, offset, size, mapFn)
	if err != nil {
		return integration.Result[*integration.PagedResult[T]]{}, err
	}
	if f != nil {
		return integration.FailWith[*integration.PagedResult[T]](f), nil
	}
	return integration.Ok(&integration.PagedResult[T]{
		Items:             page.Items,
		ContinuationToken: nextToken(offset, len(page.Items)+page.Failed, page.HasMore),
		TotalCount:        page.Total,
	}), nil
}

func likeFilter(field, prefix string) string {
	if prefix == "" {
		return ""
	}
	return field + " LIKE " + quoteLiteral(prefix+"%")
}

// ---------------------------------------------------------------------------
// Sync
// ---------------------------------------------------------------------------

// Sync pages through items or accounts ordered by LastUpdateDate
func (p *OracleProvider) Sync(ctx context.Context, _ *integration.TenantContext, req integration.SyncRequest, progress integration.ProgressReporter) (integration.Result[*integration.SyncResult], error) {
	if err := p.ensureReady(); err != nil {
		return integration.Result[*integration.SyncResult]{}, err
	}
	caps := p.caps()
	if f := checkSyncRequest(req, caps); f != nil {
		return integration.FailWith[*integration.SyncResult](f), nil
	}
	since, err := req.Watermark.Time()
	if err != nil {
		return integration.FailFrom[*integration.SyncResult](err), nil
	}
	filter := ""
	if req.Mode == integration.SyncModeDelta && !since.IsZero() {
		filter = "LastUpdateDate > " + formatOracleTime(since)
	}
	limit := caps.ClampPageSize(req.PageSize)

	switch req.Entity {
	case integration.EntityProduct:
		return runSync(ctx, req, progress, limit,
			oraclePager(p, p.scm(oracleItems), filter, "LastUpdateDate:asc,ItemNumber:asc", toOracleProduct),
			func(x integration.Product) time.Time { return x.UpdatedAt })
	case integration.EntityCustomer:
		return runSync(ctx, req, progress, limit,
			oraclePager(p, p.crm(oracleAccounts), filter, "LastUpdateDate:asc,PartyNumber:asc", toOracleCustomer),
			func(x integration.Customer) time.Time { return x.UpdatedAt })
	default:
		return integration.Fail[*integration.SyncResult](integration.CodeUnsupported,
			fmt.Sprintf("oracle: sync of %s is not supported", req.Entity), false), nil
	}
}

func oraclePager[S, T any](p *OracleProvider, resource, filter, orderBy string, mapFn func(S) (T, error)) pageFetcher[T] {
	return func(ctx context.Context, offset, limit int) (syncPage[T], *integration.Failure, error) {
		return oracleFetch(ctx, p, resource, filter, orderBy, offset, limit, mapFn)
	}
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// CreateOrder submits a sales order through the order hub. The external
// reference is the source transaction, so resubmission is rejected as a conflict.
func (p *OracleProvider) CreateOrder(ctx context.Context, _ *integration.TenantContext, order *integration.OrderRequest) (integration.Result[*integration.Order], error) {
	if err := p.ensureReady(); err != nil {
		return integration.Result[*integration.Order]{}, err
	}
	if err := integration.ValidateOrderRequest(order); err != nil {
		return integration.FailFrom[*integration.Order](err), nil
	}

	resp, err := p.client.do(ctx, http.MethodPost, p.scm(oracleSalesOrders), nil, p.salesOrderPayload(order), nil)
	if err != nil {
		return integration.Result[*integration.Order]{}, err
	}
	if !resp.OK() {
		return integration.FailWith[*integration.Order](oracleFailure(resp)), nil
	}

	created, f := decodeJSON[oracleSalesOrder]("oracle", resp)
	if f != nil {
		return integration.FailWith[*integration.Order](f), nil
	}
	return integration.Ok(p.toOrder(created, order)), nil
}

// CreateOrders creates orders one by one; each item succeeds or fails on its own.
func (p *OracleProvider) CreateOrders(ctx context.Context, tenant *integration.TenantContext, orders []integration.OrderRequest) (integration.Result[*integration.BatchResult], error) {
	if err := p.ensureReady(); err != nil {
		return integration.Result[*integration.BatchResult]{}, err
	}
	if f := checkBatchSize(len(orders), p.caps()); f != nil {
		return integration.FailWith[*integration.BatchResult](f), nil
	}
	return createEach(ctx, orders, func(ctx context.Context, order *integration.OrderRequest) (integration.Result[*integration.Order], error) {
		return p.CreateOrder(ctx, tenant, order)
	})
}

func (p *OracleProvider) salesOrderPayload(order *integration.OrderRequest) oracleSalesOrderCreate {
	lines := make([]oracleSalesOrderLine, 0, len(order.Lines))
	for i, line := range order.Lines {
		n := strconv.Itoa(i + 1)
		lines = append(lines, oracleSalesOrderLine{
			SourceTransactionLineId:     n,
			SourceTransactionLineNumber: n,
			ProductNumber:               line.ProductID,
			OrderedQuantity:             line.Quantity,
			UnitSellingPrice:            line.UnitPrice,
		})
	}
	return oracleSalesOrderCreate{
		SourceTransactionNumber:   order.ExternalRef,
		SourceTransactionSystem:   oracleSourceSystem,
		SourceTransactionId:       order.ExternalRef,
		BusinessUnitName:          p.cfg.BusinessUnit,
		BuyingPartyNumber:         order.CustomerID,
		TransactionalCurrencyCode: order.Currency,
		SubmittedFlag:             true,
		Lines:                     lines,
	}
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

func toOracleProduct(item oracleItem) (integration.Product, error) {
	if item.ItemNumber == "" {
		return integration.Product{}, errors.New("oracle: item without number")
	}
	updated, err := parseOracleTime(item.LastUpdateDate)
	if err != nil {
		return integration.Product{}, fmt.Errorf("oracle: item %s: %w", item.ItemNumber, err)
	}
	if updated.IsZero() {
		if updated, err = parseOracleTime(item.CreationDate); err != nil {
			return integration.Product{}, fmt.Errorf("oracle: item %s: %w", item.ItemNumber, err)
		}
	}

	product := integration.Product{
		ID:          item.ItemNumber,
		SKU:         item.ItemNumber,
		Name:        orDefault(item.ItemDescription, item.ItemNumber),
		Description: item.LongDescription,
		Price:       decimal.Zero,
		Currency:    item.CurrencyCode,
		Active:      strings.EqualFold(item.ItemStatusValue, "Active"),
		UpdatedAt:   updated,
	}
	if item.ListPrice.Valid {
		product.Price = item.ListPrice.Decimal
	}
	return product, nil
}

func toOracleCustomer(account oracleAccount) (integration.Customer, error) {
	if account.PartyNumber == "" {
		return integration.Customer{}, errors.New("oracle: account without party number")
	}
	updated, err := parseOracleTime(account.LastUpdateDate)
	if err != nil {
		return integration.Customer{}, fmt.Errorf("oracle: account %s: %w", account.PartyNumber, err)
	}
	if updated.IsZero() {
		if updated, err = parseOracleTime(account.CreationDate); err != nil {
			return integration.Customer{}, fmt.Errorf("oracle: account %s: %w", account.PartyNumber, err)
		}
	}
	return integration.Customer{
		ID:        account.PartyNumber,
		Name:      account.OrganizationName,
		Email:     account.EmailAddress,
		Phone:     account.FormattedPhoneNumber,
		Active:    account.Status == "" || strings.EqualFold(account.Status, "A"),
		UpdatedAt: updated,
	}, nil
}

func (p *OracleProvider) toOrder(so oracleSalesOrder, req *integration.OrderRequest) *integration.Order {
	id := so.OrderNumber
	if id == "" && so.HeaderId != 0 {
		id = strconv.FormatInt(so.HeaderId, 10)
	}
	order := &integration.Order{
		ID:          id,
		ExternalRef: orDefault(so.SourceTransactionNumber, req.ExternalRef),
		CustomerID:  orDefault(so.BuyingPartyNumber, req.CustomerID),
		Status:      integration.OrderStatusCreated,
		Total:       req.Total(),
		Currency:    orDefault(so.TransactionalCurrencyCode, req.Currency),
		CreatedAt:   p.now().UTC(),
	}
	if so.TotalAmount.Valid {
		order.Total = so.TotalAmount.Decimal
	}
	if created, err := parseOracleTime(so.CreationDate); err == nil && !created.IsZero() {
		order.CreatedAt = created
	}
	if so.OnHold || strings.EqualFold(so.StatusCode, "ON_HOLD") {
		order.Status = integration.OrderStatusOnHold
	}
	return order
}

// Ensure OracleProvider implements integration.Provider
var _ integration.Provider = (*OracleProvider)(nil)
