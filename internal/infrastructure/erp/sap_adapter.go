package erp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/erpcore/internal/domain/integration"
)

// SAPProvider implements integration.Provider against the SAP S/4HANA OData V2
// APIs (API_PRODUCT_SRV, API_BUSINESS_PARTNER, API_SALES_ORDER_SRV).
// One instance is one tenant session and is owned by that tenant's actor.
type SAPProvider struct {
	cfg    SAPConfig
	client *restClient
	logger *zap.Logger
	now    func() time.Time

	mu          sync.Mutex
	csrfToken   string
	initialized bool
	closed      bool
}

// SAPOption configures a SAPProvider
type SAPOption func(*SAPProvider)

// WithSAPLogger sets the logger
func WithSAPLogger(logger *zap.Logger) SAPOption {
	return func(p *SAPProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithSAPClock overrides the clock used for health timestamps
func WithSAPClock(now func() time.Time) SAPOption {
	return func(p *SAPProvider) {
		p.now = now
	}
}

// NewSAPProvider creates a SAP provider. The session is opened by Initialize.
func NewSAPProvider(cfg SAPConfig, opts ...SAPOption) (*SAPProvider, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &SAPProvider{
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	client, err := newRESTClient("sap", cfg.BaseURL, newHTTPClient(cfg.Timeout),
		NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		basicOrBearer(cfg.Username, cfg.Password, cfg.APIKey))
	if err != nil {
		return nil, err
	}
	p.client = client
	return p, nil
}

// Type returns the ERP type this provider implements
func (p *SAPProvider) Type() integration.ProviderType {
	return integration.ProviderTypeSAP
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Initialize opens the session by fetching a CSRF token. Repeated calls are no-ops.
func (p *SAPProvider) Initialize(ctx context.Context, _ *integration.TenantContext) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return integration.ErrProviderClosed
	}
	if p.initialized {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token, err := p.fetchCSRFToken(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.csrfToken = token
	p.initialized = true
	p.logger.Debug("SAP session initialized",
		zap.String("base_url", p.cfg.BaseURL),
		zap.String("sap_client", p.cfg.Client))
	return nil
}

// Close ends the session
func (p *SAPProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.csrfToken = ""
	p.client.httpClient.CloseIdleConnections()
	return nil
}

func (p *SAPProvider) ensureReady() error {
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

// fetchCSRFToken asks the sales order service for a token bound to the session cookie
func (p *SAPProvider) fetchCSRFToken(ctx context.Context) (string, error) {
	header := http.Header{}
	header.Set(sapCSRFHeader, sapCSRFFetch)
	resp, err := p.client.do(ctx, http.MethodGet, sapSalesService+"/", p.query(), nil, header)
	if err != nil {
		return "", err
	}
	switch {
	case resp.Status == http.StatusUnauthorized || resp.Status == http.StatusForbidden:
		return "", authError("sap", resp.Status)
	case !resp.OK():
		return "", sapFailure(resp).AsError()
	}
	token := resp.Header.Get(sapCSRFHeader)
	if token == "" {
		return "", integration.NewTransientError(integration.CodeBackendError, "sap: gateway returned no CSRF token")
	}
	return token, nil
}

// query returns the parameters sent with every request
func (p *SAPProvider) query(kv ...string) url.Values {
	q := url.Values{}
	q.Set("sap-client", p.cfg.Client)
	q.Set("$format", "json")
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			q.Set(kv[i], kv[i+1])
		}
	}
	return q
}

// sapFailure maps an OData error response to a failure
func sapFailure(resp *apiResponse) *integration.Failure {
	body, f := decodeJSON[odataError]("sap", resp)
	message := ""
	if f == nil && body.Error.Message.Value != "" {
		message = body.Error.Message.Value
		if body.Error.Code != "" {
			message = body.Error.Code + ": " + message
		}
	}
	return statusFailure("sap", resp, "", message)
}

// ---------------------------------------------------------------------------
// Health and Capabilities
// ---------------------------------------------------------------------------

// CheckHealth probes the product service metadata document
func (p *SAPProvider) CheckHealth(ctx context.Context, _ *integration.TenantContext) (integration.Result[*integration.HealthStatus], error) {
	if err := p.ensureReady(); err != nil {
		return integration.Result[*integration.HealthStatus]{}, err
	}
	start := time.Now()
	resp, err := p.client.do(ctx, http.MethodGet, sapProductService+"/$metadata", url.Values{"sap-client": {p.cfg.Client}}, nil, nil)
	if err != nil {
		return integration.Result[*integration.HealthStatus]{}, err
	}

	status := &integration.HealthStatus{
		Available: resp.OK(),
		Latency:   time.Since(start),
		Message:   fmt.Sprintf("SAP gateway reachable (sap-client %s)", p.cfg.Client),
		CheckedAt: p.now(),
	}
	if !resp.OK() {
		status.Message = sapFailure(resp).Message
	}
	return integration.Ok(status), nil
}

// Capabilities returns the static SAP capability descriptor
func (p *SAPProvider) Capabilities(context.Context, *integration.TenantContext) (integration.Capabilities, error) {
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

func (p *SAPProvider) caps() integration.Capabilities {
	caps, _ := p.Capabilities(context.Background(), nil)
	return caps
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// GetProduct reads an A_Product entity; 404 is Ok(nil)
func (p *SAPProvider) GetProduct(ctx context.Context, _ *integration.TenantContext, id string) (integration.Result[*integration.Product], error) {
	if err := p.ensureReady(); err != nil {
		return integration.Result[*integration.Product]{}, err
	}
	if id == "" {
		return integration.Fail[*integration.Product](integration.CodeValidationFailed, "product id is required", false), nil
	}

	resp, err := p.client.do(ctx, http.MethodGet, sapKey(sapProductSet, id), p.query("$expand", sapProductExpand), nil, nil)
	if err != nil {
		return integration.Result[*integration.Product]{}, err
	}
	if resp.Status == http.StatusNotFound {
		return integration.Ok[*integration.Product](nil), nil
	}
	if !resp.OK() {
		return integration.FailWith[*integration.Product](sapFailure(resp)), nil
	}

	body, f := decodeJSON[odataEntity[sapProduct]]("sap", resp)
	if f != nil {
		return integration.FailWith[*integration.Product](f), nil
	}
	product, err := p.toProduct(body.D)
	if err != nil {
		return integration.Fail[*integration.Product](integration.CodeBackendError, err.Error(), false), nil
	}
	return integration.Ok(&product), nil
}

// GetCustomer reads an A_BusinessPartner entity; 404 is Ok(nil)
func (p *SAPProvider) GetCustomer(ctx context.Context, _ *integration.TenantContext, id string) (integration.Result[*integration.Customer], error) {
	if err := p.ensureReady(); err != nil {
		return integration.Result[*integration.Customer]{}, err
	}
	if id == "" {
		return integration.Fail[*integration.Customer](integration.CodeValidationFailed, "customer id is required", false), nil
	}

	resp, err := p.client.do(ctx, http.MethodGet, sapKey(sapPartnerSet, id), p.query("$expand", sapCustomerExpand), nil, nil)
	if err != nil {
		return integration.Result[*integration.Customer]{}, err
	}
	if resp.Status == http.StatusNotFound {
		return integration.Ok[*integration.Customer](nil), nil
	}
	if !resp.OK() {
		return integration.FailWith[*integration.Customer](sapFailure(resp)), nil
	}

	body, f := decodeJSON[odataEntity[sapBusinessPartner]]("sap", resp)
	if f != nil {
		return integration.FailWith[*integration.Customer](f), nil
	}
	customer, err := toSAPCustomer(body.D)
	if err != nil {
		return integration.Fail[*integration.Customer](integration.CodeBackendError, err.Error(), false), nil
	}
	return integration.Ok(&customer), nil
}

// GetProducts reads many products with $filter chunks; unknown IDs are omitted
func (p *SAPProvider) GetProducts(ctx context.Context, _ *integration.TenantContext, ids []string) (integration.Result[[]integration.Product], error) {
	if err := p.ensureReady(); err != nil {
		return integration.Result[[]integration.Product]{}, err
	}
	if f := checkBatchSize(len(ids), p.caps()); f != nil {
		return integration.FailWith[[]integration.Product](f), nil
	}
	return sapGetMany(ctx, p, sapProductSet, "Product", sapProductExpand, dedupe(ids), p.toProduct)
}

// GetCustomers reads many customers with $filter chunks; unknown IDs are omitted
func (p *SAPProvider) GetCustomers(ctx context.Context, _ *integration.TenantContext, ids []string) (integration.Result[[]integration.Customer], error) {
	if err := p.ensureReady(); err != nil {
		return integration.Result[[]integration.Customer]{}, err
	}
	if f := checkBatchSize(len(ids), p.caps()); f != nil {
		return integration.FailWith[[]integration.Customer](f), nil
	}
	return sapGetMany(ctx, p, sapPartnerSet, "BusinessPartner", sapCustomerExpand, dedupe(ids), toSAPCustomer)
}

func sapGetMany[S, T any](
	ctx context.Context,
	p *SAPProvider,
	set, keyField, expand string,
	ids []string,
	mapFn func(S) (T, error),
) (integration.Result[[]T], error) {
	out := make([]T, 0, len(ids))
	for start := 0; start < len(ids); start += sapMaxFilterClause {
		chunk := ids[start:min(start+sapMaxFilterClause, len(ids))]
		q := p.query(
			"$filter", orFilter(keyField, " eq ", chunk),
			"$expand", expand,
			"$top", strconv.Itoa(len(chunk)),
		)
		page, f, err := sapFetch(ctx, p, set, q, mapFn)
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

// sapFetch reads one collection page. Entities that cannot be mapped are
// logged and counted as failed.
func sapFetch[S, T any](
	ctx context.Context,
	p *SAPProvider,
	set string,
	q url.Values,
	mapFn func(S) (T, error),
) (syncPage[T], *integration.Failure, error) {
	resp, err := p.client.do(ctx, http.MethodGet, set, q, nil, nil)
	if err != nil {
		return syncPage[T]{}, nil, err
	}
	if !resp.OK() {
		return syncPage[T]{}, sapFailure(resp), nil
	}
	body, f := decodeJSON[odataCollection[S]]("sap", resp)
	if f != nil {
		return syncPage[T]{}, f, nil
	}

	page := syncPage[T]{Items: make([]T, 0, len(body.D.Results))}
	for _, raw := range body.D.Results {
		item, err := mapFn(raw)
		if err != nil {
			p.logger.Warn("Skipping unmappable SAP entity", zap.String("set", set), zap.Error(err))
			page.Failed++
			continue
		}
		page.Items = append(page.Items, item)
	}
	if body.D.Count != "" {
		if n, err := strconv.ParseInt(body.D.Count, 10, 64); err == nil {
			page.Total = &n
		}
	}
	page.HasMore = body.D.Next != ""
	if !page.HasMore && page.Total != nil {
		skip, _ := strconv.Atoi(q.Get("$skip"))
		page.HasMore = int64(skip+len(body.D.Results)) < *page.Total
	}
	return page, nil, nil
}

// ---------------------------------------------------------------------------
// Paged reads
// ---------------------------------------------------------------------------

// ListProducts reads one page of products ordered by product number. The
// filter matches a product number prefix.
func (p *SAPProvider) ListProducts(ctx context.Context, _ *integration.TenantContext, req integration.PageRequest) (integration.Result[*integration.PagedResult[integration.Product]], error) {
	if err := p.ensureReady(); err != nil {
		return integration.Result[*integration.PagedResult[integration.Product]]{}, err
	}
	filter := ""
	if req.Filter != "" {
		filter = "startswith(Product," + quoteLiteral(req.Filter) + ")"
	}
	return sapList(ctx, p, sapProductSet, filter, "Product", sapProductExpand, req, p.toProduct)
}

// ListCustomers reads one page of organization business partners ordered by
// partner number. The filter matches a full name prefix.
func (p *SAPProvider) ListCustomers(ctx context.Context, _ *integration.TenantContext, req integration.PageRequest) (integration.Result[*integration.PagedResult[integration.Customer]], error) {
	if err := p.ensureReady(); err != nil {
		return integration.Result[*integration.PagedResult[integration.Customer]]{}, err
	}
	filter := sapCustomerFilter
	if req.Filter != "" {
		filter += " and startswith(BusinessPartnerFullName," + quoteLiteral(req.Filter) + ")"
	}
	return sapList(ctx, p, sapPartnerSet, filter, "BusinessPartner", sapCustomerExpand, req, toSAPCustomer)
}

func sapList[S, T any](
	ctx context.Context,
	p *SAPProvider,
	set, filter, orderBy, expand string,
	req integration.PageRequest,
	mapFn func(S) (T, error),
) (integration.Result[*integration.PagedResult[T]], error) {
	offset, err := decodeOffsetToken(req.ContinuationToken)
	if err != nil {
		return integration.FailFrom[*integration.PagedResult[T]](err), nil
	}
	size := p.caps().ClampPageSize(req.SizeOrDefault())

	q := p.query(
		"$filter", filter,
		"$orderby", orderBy,
		"$expand", expand,
		"$top", strconv.Itoa(size),
		"$skip", strconv.Itoa(offset),
		"$inlinecount", "allpages",
	)
	page, f, err := sapFetch(ctx, p, set, q, mapFn)
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

// ---------------------------------------------------------------------------
// Sync
// ---------------------------------------------------------------------------

// Sync pages through products or business partners ordered by change time.
// Delta mode filters on the change timestamp after the watermark.
func (p *SAPProvider) Sync(ctx context.Context, _ *integration.TenantContext, req integration.SyncRequest, progress integration.ProgressReporter) (integration.Result[*integration.SyncResult], error) {
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
	limit := caps.ClampPageSize(req.PageSize)
	delta := req.Mode == integration.SyncModeDelta && !since.IsZero()

	switch req.Entity {
	case integration.EntityProduct:
		filter := ""
		if delta {
			filter = "LastChangeDateTime gt " + formatODataDateTimeOffset(since)
		}
		return runSync(ctx, req, progress, limit,
			sapPager(p, sapProductSet, filter, "LastChangeDateTime,Product", sapProductExpand, p.toProduct),
			func(x integration.Product) time.Time { return x.UpdatedAt })
	case integration.EntityCustomer:
		filter := sapCustomerFilter
		if delta {
			// LastChangeDate has day precision; runSync drops rows at or before the watermark
			filter += " and LastChangeDate ge " + formatODataDateTime(since)
		}
		return runSync(ctx, req, progress, limit,
			sapPager(p, sapPartnerSet, filter, "LastChangeDate,LastChangeTime,BusinessPartner", sapCustomerExpand, toSAPCustomer),
			func(x integration.Customer) time.Time { return x.UpdatedAt })
	default:
		return integration.Fail[*integration.SyncResult](integration.CodeUnsupported,
			fmt.Sprintf("sap: sync of %s is not supported", req.Entity), false), nil
	}
}

func sapPager[S, T any](p *SAPProvider, set, filter, orderBy, expand string, mapFn func(S) (T, error)) pageFetcher[T] {
	return func(ctx context.Context, offset, limit int) (syncPage[T], *integration.Failure, error) {
		q := p.query(
			"$filter", filter,
			"$orderby", orderBy,
			"$expand", expand,
			"$top", strconv.Itoa(limit),
			"$skip", strconv.Itoa(offset),
			"$inlinecount", "allpages",
		)
		return sapFetch(ctx, p, set, q, mapFn)
	}
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// CreateOrder deep-inserts an A_SalesOrder with its items. An expired CSRF
// token is refreshed once.
func (p *SAPProvider) CreateOrder(ctx context.Context, _ *integration.TenantContext, order *integration.OrderRequest) (integration.Result[*integration.Order], error) {
	if err := p.ensureReady(); err != nil {
		return integration.Result[*integration.Order]{}, err
	}
	if err := integration.ValidateOrderRequest(order); err != nil {
		return integration.FailFrom[*integration.Order](err), nil
	}

	payload := p.salesOrderPayload(order)
	resp, err := p.postSalesOrder(ctx, payload)
	if err != nil {
		return integration.Result[*integration.Order]{}, err
	}
	if resp.Status == http.StatusForbidden && strings.EqualFold(resp.Header.Get(sapCSRFHeader), sapCSRFRequired) {
		p.logger.Debug("SAP CSRF token expired, refreshing")
		token, err := p.fetchCSRFToken(ctx)
		if err != nil {
			return integration.Result[*integration.Order]{}, err
		}
		p.mu.Lock()
		p.csrfToken = token
		p.mu.Unlock()
		if resp, err = p.postSalesOrder(ctx, payload); err != nil {
			return integration.Result[*integration.Order]{}, err
		}
	}
	if !resp.OK() {
		return integration.FailWith[*integration.Order](sapFailure(resp)), nil
	}

	body, f := decodeJSON[odataEntity[sapSalesOrder]]("sap", resp)
	if f != nil {
		return integration.FailWith[*integration.Order](f), nil
	}
	return integration.Ok(p.toOrder(body.D, order)), nil
}

// CreateOrders creates orders one by one; each item succeeds or fails on its own.
func (p *SAPProvider) CreateOrders(ctx context.Context, tenant *integration.TenantContext, orders []integration.OrderRequest) (integration.Result[*integration.BatchResult], error) {
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

func (p *SAPProvider) postSalesOrder(ctx context.Context, payload sapSalesOrderCreate) (*apiResponse, error) {
	p.mu.Lock()
	token := p.csrfToken
	p.mu.Unlock()

	header := http.Header{}
	header.Set(sapCSRFHeader, token)
	return p.client.do(ctx, http.MethodPost, sapSalesOrderSet, p.query(), payload, header)
}

func (p *SAPProvider) salesOrderPayload(order *integration.OrderRequest) sapSalesOrderCreate {
	items := make([]sapSalesOrderItemCreate, 0, len(order.Lines))
	for i, line := range order.Lines {
		item := sapSalesOrderItemCreate{
			SalesOrderItem:    strconv.Itoa((i + 1) * 10),
			Material:          line.ProductID,
			RequestedQuantity: line.Quantity.String(),
		}
		if !line.UnitPrice.IsZero() {
			item.NetPriceAmount = line.UnitPrice.StringFixed(2)
		}
		items = append(items, item)
	}
	return sapSalesOrderCreate{
		SalesOrderType:          sapSalesOrderType,
		SalesOrganization:       p.cfg.SalesOrganization,
		DistributionChannel:     p.cfg.DistributionChannel,
		OrganizationDivision:    p.cfg.Division,
		SoldToParty:             order.CustomerID,
		PurchaseOrderByCustomer: order.ExternalRef,
		TransactionCurrency:     order.Currency,
		Items:                   odataDeferred[sapSalesOrderItemCreate]{Results: items},
	}
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

func (p *SAPProvider) toProduct(sp sapProduct) (integration.Product, error) {
	if sp.Product == "" {
		return integration.Product{}, errors.New("sap: product without key")
	}
	updated, err := parseODataDate(sp.LastChangeDateTime)
	if err != nil {
		return integration.Product{}, err
	}
	if updated.IsZero() {
		if updated, err = parseODataDate(sp.CreationDate); err != nil {
			return integration.Product{}, err
		}
	}

	product := integration.Product{
		ID:        sp.Product,
		SKU:       sp.Product,
		Name:      sp.Product,
		Active:    !sp.IsMarkedForDeletion,
		Price:     decimal.Zero,
		UpdatedAt: updated,
	}
	for i, d := range sp.Description.Results {
		if i == 0 || strings.EqualFold(d.Language, p.cfg.Language) {
			product.Name = d.ProductDescription
		}
	}
	if sp.ProductType != "" || sp.BaseUnit != "" {
		product.Description = strings.TrimSpace(sp.ProductType + " " + sp.BaseUnit)
	}
	if len(sp.Valuation.Results) > 0 {
		v := sp.Valuation.Results[0]
		if v.StandardPrice != "" {
			price, err := decimal.NewFromString(v.StandardPrice)
			if err != nil {
				return integration.Product{}, fmt.Errorf("sap: product %s: bad price %q", sp.Product, v.StandardPrice)
			}
			product.Price = price
		}
		product.Currency = v.Currency
	}
	return product, nil
}

func toSAPCustomer(bp sapBusinessPartner) (integration.Customer, error) {
	if bp.BusinessPartner == "" {
		return integration.Customer{}, errors.New("sap: business partner without key")
	}
	updated, err := parseODataDate(bp.LastChangeDate)
	if err != nil {
		return integration.Customer{}, err
	}
	if updated.IsZero() {
		if updated, err = parseODataDate(bp.CreationDate); err != nil {
			return integration.Customer{}, err
		}
	} else {
		at, err := parseODataTime(bp.LastChangeTime)
		if err != nil {
			return integration.Customer{}, err
		}
		updated = updated.Add(at)
	}

	customer := integration.Customer{
		ID:        bp.BusinessPartner,
		Name:      bp.BusinessPartnerFullName,
		Active:    !bp.BusinessPartnerIsBlocked,
		UpdatedAt: updated,
	}
	for _, addr := range bp.Addresses.Results {
		if customer.Email == "" && len(addr.Emails.Results) > 0 {
			customer.Email = addr.Emails.Results[0].EmailAddress
		}
		if customer.Phone == "" && len(addr.Phones.Results) > 0 {
			customer.Phone = addr.Phones.Results[0].PhoneNumber
		}
	}
	return customer, nil
}

// toOrder maps the created order. Billing, delivery or credit blocks put it on hold.
func (p *SAPProvider) toOrder(so sapSalesOrder, req *integration.OrderRequest) *integration.Order {
	order := &integration.Order{
		ID:          so.SalesOrder,
		ExternalRef: orDefault(so.PurchaseOrderByCustomer, req.ExternalRef),
		CustomerID:  orDefault(so.SoldToParty, req.CustomerID),
		Status:      integration.OrderStatusCreated,
		Total:       req.Total(),
		Currency:    orDefault(so.TransactionCurrency, req.Currency),
		CreatedAt:   p.now().UTC(),
	}
	if total, err := decimal.NewFromString(so.TotalNetAmount); err == nil {
		order.Total = total
	}
	if created, err := parseODataDate(so.CreationDate); err == nil && !created.IsZero() {
		order.CreatedAt = created
	}
	if so.HeaderBillingBlockReason != "" || so.DeliveryBlockReason != "" || so.TotalCreditCheckStatus == "B" {
		order.Status = integration.OrderStatusOnHold
	}
	return order
}

// Ensure SAPProvider implements integration.Provider
var _ integration.Provider = (*SAPProvider)(nil)
