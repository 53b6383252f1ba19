package integration

import (
	"context"
	"time"
)

// ---------------------------------------------------------------------------
// ProviderType identifies an ERP connector
// ---------------------------------------------------------------------------

// ProviderType is the configured ERP type name of a tenant
type ProviderType string

const (
	// ProviderTypeFake is the deterministic in-memory provider used in tests and as fallback
	ProviderTypeFake ProviderType = "fake"
	// ProviderTypeMock is an alias of ProviderTypeFake kept for tenant configs that use it
	ProviderTypeMock ProviderType = "mock"
	// ProviderTypeSAP is the SAP OData connector
	ProviderTypeSAP ProviderType = "sap"
	// ProviderTypeOracle is the Oracle-class REST connector
	ProviderTypeOracle ProviderType = "oracle"
)

// String returns the string representation of ProviderType
func (t ProviderType) String() string {
	return string(t)
}

// HealthStatus is the result of a connectivity probe
type HealthStatus struct {
	// Available indicates the backend answered the probe
	Available bool `json:"available"`
	// Latency is the probe round-trip time
	Latency time.Duration `json:"latency"`
	// Message carries backend details (version, reason for unavailability)
	Message string `json:"message,omitempty"`
	// CheckedAt is when the probe ran
	CheckedAt time.Time `json:"checked_at"`
}

// ---------------------------------------------------------------------------
// Provider Port Interface
// ---------------------------------------------------------------------------

// Provider defines the port interface for ERP backends.
// This interface follows the Ports & Adapters pattern - it's defined in the domain
// layer, and concrete implementations (SAP, Oracle, fake) are in the infrastructure layer.
//
// Expected failure modes are reported through Result; the error return is
// reserved for unexpected faults that the resilience layer classifies.
type Provider interface {
	// Type returns the ERP type this provider implements
	Type() ProviderType

	// ---------------------------------------------------------------------------
	// Lifecycle
	// ---------------------------------------------------------------------------

	// Initialize prepares the provider for the tenant (session, login).
	// It must be called once before first use; repeated calls are no-ops.
	Initialize(ctx context.Context, tenant *TenantContext) error

	// Close releases any held connection resources
	Close() error

	// ---------------------------------------------------------------------------
	// Health and Capabilities
	// ---------------------------------------------------------------------------

	// CheckHealth performs a cheap connectivity probe
	CheckHealth(ctx context.Context, tenant *TenantContext) (Result[*HealthStatus], error)

	// Capabilities describes what this provider supports
	Capabilities(ctx context.Context, tenant *TenantContext) (Capabilities, error)

	// ---------------------------------------------------------------------------
	// Single-entity Operations
	// ---------------------------------------------------------------------------

	// GetProduct reads a product. Not found is a success with a nil payload.
	GetProduct(ctx context.Context, tenant *TenantContext, id string) (Result[*Product], error)

	// GetCustomer reads a customer. Not found is a success with a nil payload.
	GetCustomer(ctx context.Context, tenant *TenantContext, id string) (Result[*Customer], error)

	// CreateOrder creates a sales order
	CreateOrder(ctx context.Context, tenant *TenantContext, order *OrderRequest) (Result[*Order], error)

	// ---------------------------------------------------------------------------
	// Bulk Operations
	// ---------------------------------------------------------------------------

	// GetProducts reads many products; unknown IDs are omitted from the payload
	GetProducts(ctx context.Context, tenant *TenantContext, ids []string) (Result[[]Product], error)

	// GetCustomers reads many customers; unknown IDs are omitted from the payload
	GetCustomers(ctx context.Context, tenant *TenantContext, ids []string) (Result[[]Customer], error)

	// CreateOrders creates many orders. Partial failure is reported in the
	// BatchResult and never aborts the remaining items.
	CreateOrders(ctx context.Context, tenant *TenantContext, orders []OrderRequest) (Result[*BatchResult], error)

	// ---------------------------------------------------------------------------
	// Paged Operations
	// ---------------------------------------------------------------------------

	// ListProducts reads one page of products
	ListProducts(ctx context.Context, tenant *TenantContext, req PageRequest) (Result[*PagedResult[Product]], error)

	// ListCustomers reads one page of customers
	ListCustomers(ctx context.Context, tenant *TenantContext, req PageRequest) (Result[*PagedResult[Customer]], error)

	// ---------------------------------------------------------------------------
	// Sync
	// ---------------------------------------------------------------------------

	// Sync runs a full or delta synchronization of one entity type and returns
	// the new watermark. The reporter (may be nil) is invoked at least once per page.
	Sync(ctx context.Context, tenant *TenantContext, req SyncRequest, progress ProgressReporter) (Result[*SyncResult], error)
}
