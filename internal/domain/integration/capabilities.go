package integration

import "slices"

// AuthType is an authentication scheme supported by a connector
type AuthType string

const (
	// AuthTypeNone requires no credentials (fake provider)
	AuthTypeNone AuthType = "NONE"
	// AuthTypeBasic uses username/password
	AuthTypeBasic AuthType = "BASIC"
	// AuthTypeAPIKey uses an API key header
	AuthTypeAPIKey AuthType = "API_KEY"
	// AuthTypeOAuth2 uses an OAuth2 bearer token
	AuthTypeOAuth2 AuthType = "OAUTH2"
)

// Capabilities describes what a provider supports. It is produced once per
// provider and may be cached by callers.
type Capabilities struct {
	// SupportsCatalogSync indicates product catalog synchronization
	SupportsCatalogSync bool `json:"supports_catalog_sync"`
	// SupportsOrderCreation indicates single and bulk order creation
	SupportsOrderCreation bool `json:"supports_order_creation"`
	// SupportsCustomerManagement indicates customer reads and sync
	SupportsCustomerManagement bool `json:"supports_customer_management"`
	// SupportsDeltaSync indicates watermark-based delta synchronization
	SupportsDeltaSync bool `json:"supports_delta_sync"`
	// MaxBatchSize is the maximum number of items per bulk call
	MaxBatchSize int `json:"max_batch_size"`
	// MaxPageSize is the maximum number of items a page may contain
	MaxPageSize int `json:"max_page_size"`
	// AuthTypes lists the supported authentication schemes
	AuthTypes []AuthType `json:"auth_types"`
}

// Supports returns true if sync of the given entity type is available
func (c Capabilities) Supports(entity EntityType) bool {
	switch entity {
	case EntityProduct:
		return c.SupportsCatalogSync
	case EntityCustomer:
		return c.SupportsCustomerManagement
	case EntityOrder:
		return c.SupportsOrderCreation
	default:
		return false
	}
}

// SupportsAuth returns true if the auth type is supported
func (c Capabilities) SupportsAuth(t AuthType) bool {
	return slices.Contains(c.AuthTypes, t)
}

// ClampPageSize applies the provider's page size limit to a requested size.
// Non-positive requests get the maximum.
func (c Capabilities) ClampPageSize(requested int) int {
	if c.MaxPageSize <= 0 {
		return requested
	}
	if requested <= 0 || requested > c.MaxPageSize {
		return c.MaxPageSize
	}
	return requested
}
