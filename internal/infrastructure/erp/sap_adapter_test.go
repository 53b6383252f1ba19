package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/erpcore/internal/domain/integration"
)

// newSAPBackend returns a backend answering the CSRF token fetch with
// csrf-1, csrf-2, ... on every call
func newSAPBackend(t *testing.T) *testBackend {
	b := newTestBackend(t)
	var issued atomic.Int32
	b.handle(http.MethodGet, sapSalesService+"/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(sapCSRFHeader) == sapCSRFFetch {
			w.Header().Set(sapCSRFHeader, fmt.Sprintf("csrf-%d", issued.Add(1)))
		}
		w.WriteHeader(http.StatusOK)
	})
	return b
}

func newTestSAPProvider(t *testing.T, b *testBackend, opts ...SAPOption) *SAPProvider {
	t.Helper()
	p, err := NewSAPProvider(SAPConfig{BaseURL: b.URL, Username: "svc_erp", Password: "secret"}, opts...)
	require.NoError(t, err)
	require.NoError(t, p.Initialize(context.Background(), testTenant))
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func odataMillis(t time.Time) string {
	return "/Date(" + strconv.FormatInt(t.UnixMilli(), 10) + "+0000)/"
}

func sapProductJSON(id string, changed time.Time, price string) map[string]any {
	return map[string]any{
		"Product":             id,
		"ProductType":         "FERT",
		"BaseUnit":            "PC",
		"IsMarkedForDeletion": false,
		"LastChangeDateTime":  odataMillis(changed),
		"to_Description": map[string]any{"results": []map[string]any{
			{"Language": "DE", "ProductDescription": "Pumpe " + id},
			{"Language": "EN", "ProductDescription": "Pump " + id},
		}},
		"to_Valuation": map[string]any{"results": []map[string]any{
			{"ValuationArea": "1010", "StandardPrice": price, "Currency": "EUR"},
		}},
	}
}

func odataResults(count int, items ...map[string]any) map[string]any {
	return map[string]any{"d": map[string]any{"results": items, "__count": strconv.Itoa(count)}}
}

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestSAPConfigForTenant(t *testing.T) {
	defaults := SAPConfig{BaseURL: "https://s4.example.com", Username: "svc", Password: "pw"}

	t.Run("tenant params override defaults", func(t *testing.T) {
		tenant := integration.MustTenantContext(uuid.New(), map[string]string{
			integration.ParamBaseURL:    "https://tenant-s4.example.com",
			integration.ParamClient:     "200",
			ParamSAPSalesOrganization:   "2010",
			ParamRequestsPerSecond:      "2.5",
		})
		cfg, err := SAPConfigForTenant(defaults, tenant)
		require.NoError(t, err)
		assert.Equal(t, "https://tenant-s4.example.com", cfg.BaseURL)
		assert.Equal(t, "200", cfg.Client)
		assert.Equal(t, "2010", cfg.SalesOrganization)
		assert.Equal(t, "10", cfg.DistributionChannel)
		assert.Equal(t, "EN", cfg.Language)
		assert.InDelta(t, 2.5, cfg.RequestsPerSecond, 0.0001)
		assert.Equal(t, 30*time.Second, cfg.Timeout)
	})

	t.Run("invalid client", func(t *testing.T) {
		tenant := integration.MustTenantContext(uuid.New(), map[string]string{integration.ParamClient: "1"})
		_, err := SAPConfigForTenant(defaults, tenant)
		require.Error(t, err)
		assert.True(t, integration.IsValidation(err))
		assert.Contains(t, err.Error(), "Client")
	})

	t.Run("missing credentials", func(t *testing.T) {
		_, err := SAPConfigForTenant(SAPConfig{BaseURL: "https://s4.example.com"}, integration.MustTenantContext(uuid.New(), nil))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Username")
	})

	t.Run("api key replaces basic auth", func(t *testing.T) {
		tenant := integration.MustTenantContext(uuid.New(), map[string]string{integration.ParamAPIKey: "token"})
		cfg, err := SAPConfigForTenant(SAPConfig{BaseURL: "https://s4.example.com"}, tenant)
		require.NoError(t, err)
		assert.Equal(t, "token", cfg.APIKey)
	})
}

// ---------------------------------------------------------------------------
// Lifecycle Tests
// ---------------------------------------------------------------------------

func TestSAPProvider_Initialize(t *testing.T) {
	b := newSAPBackend(t)
	p := newTestSAPProvider(t, b)

	fetches := b.requestsTo(http.MethodGet, sapSalesService+"/")
	require.Len(t, fetches, 1)
	assert.Equal(t, sapCSRFFetch, fetches[0].Header.Get(sapCSRFHeader))
	assert.Equal(t, "100", fetches[0].Query.Get("sap-client"))
	assert.True(t, strings.HasPrefix(fetches[0].Header.Get("Authorization"), "Basic "))
	assert.Equal(t, "csrf-1", p.csrfToken)

	// repeated initialization does not open a new session
	require.NoError(t, p.Initialize(context.Background(), testTenant))
	assert.Len(t, b.requestsTo(http.MethodGet, sapSalesService+"/"), 1)
}

func TestSAPProvider_InitializeRejectedCredentials(t *testing.T) {
	b := newTestBackend(t)
	b.handle(http.MethodGet, sapSalesService+"/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	p, err := NewSAPProvider(SAPConfig{BaseURL: b.URL, Username: "svc", Password: "wrong"})
	require.NoError(t, err)

	err = p.Initialize(context.Background(), testTenant)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.True(t, integration.IsValidation(err))
	assert.False(t, integration.IsRetryable(err))
}

func TestSAPProvider_Lifecycle(t *testing.T) {
	b := newSAPBackend(t)
	p, err := NewSAPProvider(SAPConfig{BaseURL: b.URL, APIKey: "token"})
	require.NoError(t, err)

	_, err = p.GetProduct(context.Background(), testTenant, "P1")
	assert.ErrorIs(t, err, integration.ErrProviderNotReady)

	require.NoError(t, p.Initialize(context.Background(), testTenant))
	require.NoError(t, p.Close())

	_, err = p.GetProduct(context.Background(), testTenant, "P1")
	assert.ErrorIs(t, err, integration.ErrProviderClosed)
	assert.ErrorIs(t, p.Initialize(context.Background(), testTenant), integration.ErrProviderClosed)
}

// ---------------------------------------------------------------------------
// Health Tests
// ---------------------------------------------------------------------------

func TestSAPProvider_CheckHealth(t *testing.T) {
	b := newSAPBackend(t)
	status := http.StatusOK
	b.handle(http.MethodGet, sapProductService+"/$metadata", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
	checked := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	p := newTestSAPProvider(t, b, WithSAPClock(func() time.Time { return checked }))

	res, err := p.CheckHealth(context.Background(), testTenant)
	require.NoError(t, err)
	require.True(t, res.IsSuccess())
	assert.True(t, res.Value().Available)
	assert.Equal(t, checked, res.Value().CheckedAt)

	status = http.StatusServiceUnavailable
	res, err = p.CheckHealth(context.Background(), testTenant)
	require.NoError(t, err)
	require.True(t, res.IsSuccess())
	assert.False(t, res.Value().Available)
	assert.Contains(t, res.Value().Message, "503")
}

func TestSAPProvider_Capabilities(t *testing.T) {
	p := newTestSAPProvider(t, newSAPBackend(t))

	caps, err := p.Capabilities(context.Background(), testTenant)
	require.NoError(t, err)
	assert.True(t, caps.SupportsDeltaSync)
	assert.Equal(t, 100, caps.MaxBatchSize)
	assert.Equal(t, 1000, caps.MaxPageSize)
	assert.True(t, caps.SupportsAuth(integration.AuthTypeOAuth2))
}

// ---------------------------------------------------------------------------
// Read Tests
// ---------------------------------------------------------------------------

func TestSAPProvider_GetProduct(t *testing.T) {
	b := newSAPBackend(t)
	changed := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	b.handle(http.MethodGet, sapProductSet+"('P1')", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"d": sapProductJSON("P1", changed, "12.50")})
	})
	p := newTestSAPProvider(t, b)

	res, err := p.GetProduct(context.Background(), testTenant, "P1")
	require.NoError(t, err)
	require.True(t, res.IsSuccess())
	product := res.Value()
	require.NotNil(t, product)
	assert.Equal(t, "P1", product.ID)
	assert.Equal(t, "Pump P1", product.Name)
	assert.True(t, decimal.RequireFromString("12.50").Equal(product.Price))
	assert.Equal(t, "EUR", product.Currency)
	assert.True(t, product.Active)
	assert.True(t, changed.Equal(product.UpdatedAt))

	req := b.requestsTo(http.MethodGet, sapProductSet+"('P1')")[0]
	assert.Equal(t, sapProductExpand, req.Query.Get("$expand"))
	assert.Equal(t, "json", req.Query.Get("$format"))

	t.Run("not found is a nil success", func(t *testing.T) {
		res, err := p.GetProduct(context.Background(), testTenant, "missing")
		require.NoError(t, err)
		assert.True(t, res.IsSuccess())
		assert.Nil(t, res.Value())
	})

	t.Run("empty id", func(t *testing.T) {
		res, err := p.GetProduct(context.Background(), testTenant, "")
		require.NoError(t, err)
		require.True(t, res.IsFailure())
		assert.Equal(t, integration.CodeValidationFailed, res.Failure().Code)
	})
}

func TestSAPProvider_GetCustomer(t *testing.T) {
	b := newSAPBackend(t)
	b.handle(http.MethodGet, sapPartnerSet+"('1000042')", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"d": map[string]any{
			"BusinessPartner":          "1000042",
			"BusinessPartnerFullName":  "Acme GmbH",
			"BusinessPartnerIsBlocked": true,
			"LastChangeDate":           odataMillis(time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)),
			"LastChangeTime":           "PT14H03M07S",
			"to_BusinessPartnerAddress": map[string]any{"results": []map[string]any{{
				"to_EmailAddress": map[string]any{"results": []map[string]any{{"EmailAddress": "orders@acme.example"}}},
				"to_PhoneNumber":  map[string]any{"results": []map[string]any{{"PhoneNumber": "+49 30 1234"}}},
			}}},
		}})
	})
	p := newTestSAPProvider(t, b)

	res, err := p.GetCustomer(context.Background(), testTenant, "1000042")
	require.NoError(t, err)
	customer := res.Value()
	require.NotNil(t, customer)
	assert.Equal(t, "Acme GmbH", customer.Name)
	assert.Equal(t, "orders@acme.example", customer.Email)
	assert.Equal(t, "+49 30 1234", customer.Phone)
	assert.False(t, customer.Active)
	assert.Equal(t, time.Date(2024, 5, 2, 14, 3, 7, 0, time.UTC), customer.UpdatedAt)
}

func TestSAPProvider_GetProducts(t *testing.T) {
	b := newSAPBackend(t)
	changed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.handle(http.MethodGet, sapProductSet, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, odataResults(2,
			sapProductJSON("P1", changed, "1.00"),
			sapProductJSON("P2", changed, "2.00")))
	})
	p := newTestSAPProvider(t, b)

	res, err := p.GetProducts(context.Background(), testTenant, []string{"P1", "P2", "P1", "", "P9"})
	require.NoError(t, err)
	require.True(t, res.IsSuccess())
	assert.Len(t, res.Value(), 2)

	req := b.requestsTo(http.MethodGet, sapProductSet)[0]
	assert.Equal(t, "Product eq 'P1' or Product eq 'P2' or Product eq 'P9'", req.Query.Get("$filter"))
	assert.Equal(t, "3", req.Query.Get("$top"))

	t.Run("batch limit", func(t *testing.T) {
		ids := make([]string, 101)
		for i := range ids {
			ids[i] = fmt.Sprintf("P%d", i)
		}
		res, err := p.GetProducts(context.Background(), testTenant, ids)
		require.NoError(t, err)
		require.True(t, res.IsFailure())
		assert.Equal(t, integration.KindValidation.String(), res.Failure().Code)
	})
}

func TestSAPProvider_ListProducts(t *testing.T) {
	b := newSAPBackend(t)
	changed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	all := []map[string]any{
		sapProductJSON("P1", changed, "1.00"),
		sapProductJSON("P2", changed, "2.00"),
		sapProductJSON("P3", changed, "3.00"),
	}
	b.handle(http.MethodGet, sapProductSet, func(w http.ResponseWriter, r *http.Request) {
		skip, _ := strconv.Atoi(r.URL.Query().Get("$skip"))
		top, _ := strconv.Atoi(r.URL.Query().Get("$top"))
		end := min(skip+top, len(all))
		writeJSON(w, http.StatusOK, odataResults(len(all), all[skip:end]...))
	})
	p := newTestSAPProvider(t, b)

	first, err := p.ListProducts(context.Background(), testTenant, integration.PageRequest{PageSize: 2})
	require.NoError(t, err)
	require.True(t, first.IsSuccess())
	assert.Len(t, first.Value().Items, 2)
	require.True(t, first.Value().HasMore())
	require.NotNil(t, first.Value().TotalCount)
	assert.EqualValues(t, 3, *first.Value().TotalCount)

	second, err := p.ListProducts(context.Background(), testTenant, integration.PageRequest{
		PageSize:          2,
		ContinuationToken: first.Value().ContinuationToken,
	})
	require.NoError(t, err)
	require.True(t, second.IsSuccess())
	require.Len(t, second.Value().Items, 1)
	assert.Equal(t, "P3", second.Value().Items[0].ID)
	assert.False(t, second.Value().HasMore())

	reqs := b.requestsTo(http.MethodGet, sapProductSet)
	assert.Equal(t, "2", reqs[1].Query.Get("$skip"))
	assert.Equal(t, "allpages", reqs[1].Query.Get("$inlinecount"))

	t.Run("invalid token", func(t *testing.T) {
		res, err := p.ListProducts(context.Background(), testTenant, integration.PageRequest{ContinuationToken: "!!"})
		require.NoError(t, err)
		require.True(t, res.IsFailure())
		assert.False(t, res.Failure().Retryable)
	})
}

func TestSAPProvider_StatusMapping(t *testing.T) {
	tests := []struct {
		status    int
		wantCode  string
		retryable bool
	}{
		{http.StatusBadRequest, integration.CodeValidationFailed, false},
		{http.StatusForbidden, CodeAuthFailed, false},
		{http.StatusConflict, integration.CodeConflict, false},
		{http.StatusLocked, integration.CodeLocked, true},
		{http.StatusTooManyRequests, integration.CodeRateLimited, true},
		{http.StatusServiceUnavailable, integration.CodeBackendBusy, true},
		{http.StatusInternalServerError, integration.CodeBackendError, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			b := newSAPBackend(t)
			b.handle(http.MethodGet, sapProductSet+"('P1')", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]any{"error": map[string]any{
					"code":    "/IWBEP/CM_MGW_RT/020",
					"message": map[string]any{"lang": "en", "value": "backend says no"},
				}})
			})
			p := newTestSAPProvider(t, b)

			res, err := p.GetProduct(context.Background(), testTenant, "P1")
			require.NoError(t, err)
			require.True(t, res.IsFailure())
			assert.Equal(t, tt.wantCode, res.Failure().Code)
			assert.Equal(t, tt.retryable, res.Failure().Retryable)
			assert.Contains(t, res.Failure().Message, "backend says no")
		})
	}
}

// ---------------------------------------------------------------------------
// Order Tests
// ---------------------------------------------------------------------------

func testOrder(ref string) integration.OrderRequest {
	return integration.OrderRequest{
		ExternalRef: ref,
		CustomerID:  "1000042",
		Currency:    "EUR",
		Lines: []integration.OrderLine{
			{ProductID: "P1", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("12.50")},
		},
	}
}

func TestSAPProvider_CreateOrder(t *testing.T) {
	b := newSAPBackend(t)
	var posts atomic.Int32
	b.handle(http.MethodPost, sapSalesOrderSet, func(w http.ResponseWriter, r *http.Request) {
		if posts.Add(1) == 1 {
			// session token expired
			w.Header().Set(sapCSRFHeader, sapCSRFRequired)
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.Header.Get(sapCSRFHeader) != "csrf-2" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		var payload sapSalesOrderCreate
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"d": map[string]any{
			"SalesOrder":              "4711",
			"PurchaseOrderByCustomer": payload.PurchaseOrderByCustomer,
			"SoldToParty":             payload.SoldToParty,
			"TransactionCurrency":     payload.TransactionCurrency,
			"TotalNetAmount":          "25.00",
			"DeliveryBlockReason":     "01",
			"CreationDate":            odataMillis(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)),
		}})
	})
	p := newTestSAPProvider(t, b)

	order := testOrder("WEB-1001")
	res, err := p.CreateOrder(context.Background(), testTenant, &order)
	require.NoError(t, err)
	require.True(t, res.IsSuccess(), "failure: %v", res.Failure())

	created := res.Value()
	assert.Equal(t, "4711", created.ID)
	assert.Equal(t, "WEB-1001", created.ExternalRef)
	assert.Equal(t, integration.OrderStatusOnHold, created.Status)
	assert.True(t, decimal.NewFromInt(25).Equal(created.Total))
	assert.Equal(t, 2, int(posts.Load()))
	assert.Len(t, b.requestsTo(http.MethodGet, sapSalesService+"/"), 2)

	var payload sapSalesOrderCreate
	require.NoError(t, json.Unmarshal(b.requestsTo(http.MethodPost, sapSalesOrderSet)[1].Body, &payload))
	assert.Equal(t, sapSalesOrderType, payload.SalesOrderType)
	assert.Equal(t, "1010", payload.SalesOrganization)
	require.Len(t, payload.Items.Results, 1)
	assert.Equal(t, "10", payload.Items.Results[0].SalesOrderItem)
	assert.Equal(t, "P1", payload.Items.Results[0].Material)
	assert.Equal(t, "2", payload.Items.Results[0].RequestedQuantity)
	assert.Equal(t, "12.50", payload.Items.Results[0].NetPriceAmount)
}

func TestSAPProvider_CreateOrderInvalid(t *testing.T) {
	b := newSAPBackend(t)
	p := newTestSAPProvider(t, b)

	order := testOrder("")
	res, err := p.CreateOrder(context.Background(), testTenant, &order)
	require.NoError(t, err)
	require.True(t, res.IsFailure())
	assert.Equal(t, integration.CodeValidationFailed, res.Failure().Code)
	assert.Empty(t, b.requestsTo(http.MethodPost, sapSalesOrderSet))
}

func TestSAPProvider_CreateOrders(t *testing.T) {
	b := newSAPBackend(t)
	b.handle(http.MethodPost, sapSalesOrderSet, func(w http.ResponseWriter, r *http.Request) {
		var payload sapSalesOrderCreate
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload.PurchaseOrderByCustomer == "WEB-2" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{
				"code": "V1/391", "message": map[string]any{"value": "material P1 is blocked"},
			}})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"d": map[string]any{
			"SalesOrder":              "SO-" + payload.PurchaseOrderByCustomer,
			"PurchaseOrderByCustomer": payload.PurchaseOrderByCustomer,
		}})
	})
	p := newTestSAPProvider(t, b)

	orders := []integration.OrderRequest{testOrder("WEB-1"), testOrder("WEB-2"), testOrder("WEB-3")}
	res, err := p.CreateOrders(context.Background(), testTenant, orders)
	require.NoError(t, err)
	require.True(t, res.IsSuccess())

	batch := res.Value()
	require.NoError(t, batch.Validate())
	assert.Equal(t, 3, batch.Submitted)
	assert.Equal(t, 2, batch.SuccessCount)
	require.Len(t, batch.Errors, 1)
	assert.Equal(t, "WEB-2", batch.Errors[0].ItemID)
	assert.Equal(t, integration.CodeValidationFailed, batch.Errors[0].Code)
}

func TestSAPProvider_CreateOrdersCanceled(t *testing.T) {
	p := newTestSAPProvider(t, newSAPBackend(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.CreateOrders(ctx, testTenant, []integration.OrderRequest{testOrder("WEB-1")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSAPProvider_CreateOrdersAttemptDeadline(t *testing.T) {
	b := newSAPBackend(t)
	b.handle(http.MethodPost, sapSalesOrderSet, func(w http.ResponseWriter, r *http.Request) {
		var payload sapSalesOrderCreate
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload.PurchaseOrderByCustomer == "WEB-2" {
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"d": map[string]any{
			"SalesOrder":              "SO-" + payload.PurchaseOrderByCustomer,
			"PurchaseOrderByCustomer": payload.PurchaseOrderByCustomer,
		}})
	})
	p := newTestSAPProvider(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	orders := []integration.OrderRequest{testOrder("WEB-1"), testOrder("WEB-2"), testOrder("WEB-3"), testOrder("WEB-4")}
	res, err := p.CreateOrders(ctx, testTenant, orders)
	require.NoError(t, err)
	require.True(t, res.IsSuccess())

	batch := res.Value()
	require.NoError(t, batch.Validate())
	assert.Equal(t, 4, batch.Submitted)
	assert.Equal(t, 1, batch.SuccessCount)
	assert.Equal(t, 3, batch.FailureCount)
	require.Len(t, batch.Errors, 3)
	assert.Equal(t, "WEB-2", batch.Errors[0].ItemID)
	assert.Equal(t, "WEB-3", batch.Errors[1].ItemID)
	assert.Equal(t, CodeNotSubmitted, batch.Errors[1].Code)
	assert.Equal(t, "WEB-4", batch.Errors[2].ItemID)
	assert.Equal(t, CodeNotSubmitted, batch.Errors[2].Code)
	assert.Len(t, b.requestsTo(http.MethodPost, sapSalesOrderSet), 2)
}

// ---------------------------------------------------------------------------
// Sync Tests
// ---------------------------------------------------------------------------

func TestSAPProvider_SyncDelta(t *testing.T) {
	b := newSAPBackend(t)
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.handle(http.MethodGet, sapProductSet, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("$skip") != "0" {
			writeJSON(w, http.StatusOK, odataResults(3))
			return
		}
		writeJSON(w, http.StatusOK, odataResults(3,
			sapProductJSON("P1", since, "1.00"),
			sapProductJSON("P2", since.Add(time.Hour), "2.00"),
			sapProductJSON("P3", since.Add(2*time.Hour), "3.00")))
	})
	p := newTestSAPProvider(t, b)

	var reports []integration.SyncProgress
	req := integration.SyncRequest{
		Entity:    integration.EntityProduct,
		Mode:      integration.SyncModeDelta,
		Watermark: integration.WatermarkFromTime(since),
		PageSize:  10,
	}
	res, err := p.Sync(context.Background(), testTenant, req, integration.ProgressFunc(func(sp integration.SyncProgress) {
		reports = append(reports, sp)
	}))
	require.NoError(t, err)
	require.True(t, res.IsSuccess(), "failure: %v", res.Failure())

	result := res.Value()
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, integration.SyncStatusCompleted, result.Status)
	assert.Equal(t, integration.WatermarkFromTime(since.Add(2*time.Hour)), result.Watermark)
	require.NoError(t, result.CheckWatermark(req))
	require.NotEmpty(t, reports)
	assert.Equal(t, 3, reports[0].Total)

	query := b.requestsTo(http.MethodGet, sapProductSet)[0].Query
	assert.Equal(t, "LastChangeDateTime gt datetimeoffset'2024-01-01T00:00:00.0000000Z'", query.Get("$filter"))
	assert.Equal(t, "LastChangeDateTime,Product", query.Get("$orderby"))
}

func TestSAPProvider_SyncUnsupported(t *testing.T) {
	p := newTestSAPProvider(t, newSAPBackend(t))

	res, err := p.Sync(context.Background(), testTenant, integration.SyncRequest{
		Entity: integration.EntityOrder,
		Mode:   integration.SyncModeFull,
	}, nil)
	require.NoError(t, err)
	require.True(t, res.IsFailure())
	assert.Equal(t, integration.CodeUnsupported, res.Failure().Code)
}

// ---------------------------------------------------------------------------
// OData literal Tests
// ---------------------------------------------------------------------------

func TestParseODataDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"", time.Time{}, false},
		{"/Date(1704067200000)/", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"/Date(1704067200000+0060)/", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"2024-01-01", time.Time{}, true},
		{"/Date(abc)/", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseODataDate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}

func TestODataLiterals(t *testing.T) {
	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "datetimeoffset'2024-02-03T03:05:06.0000000Z'", formatODataDateTimeOffset(at))
	assert.Equal(t, "datetime'2024-02-03T00:00:00'", formatODataDateTime(at))

	d, err := parseODataTime("PT01H02M03S")
	require.NoError(t, err)
	assert.Equal(t, time.Hour+2*time.Minute+3*time.Second, d)

	_, err = parseODataTime("01:02:03")
	assert.Error(t, err)
}
