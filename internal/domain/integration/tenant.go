package integration

import (
	"maps"
	"sort"

	"github.com/google/uuid"
)

// Well-known connection parameter keys. Connectors may define additional keys.
const (
	// ParamBaseURL overrides the connector's default API base URL
	ParamBaseURL = "base_url"
	// ParamClient is the ERP client/company identifier (SAP client, Oracle business unit)
	ParamClient = "client"
	// ParamUsername is the technical user for basic auth
	ParamUsername = "username"
	// ParamPassword is the technical user's password
	ParamPassword = "password"
	// ParamAPIKey is an API key or bearer token
	ParamAPIKey = "api_key"
)

// TenantContext identifies the tenant an ERP call is made for.
// It is an immutable value: it is constructed by the caller, passed by
// reference into every operation, and never mutated by the integration core.
type TenantContext struct {
	tenantID uuid.UUID
	params   map[string]string
}

// NewTenantContext creates a tenant context. The params map is copied.
func NewTenantContext(tenantID uuid.UUID, params map[string]string) (*TenantContext, error) {
	if tenantID == uuid.Nil {
		return nil, ErrInvalidTenantID
	}
	return &TenantContext{
		tenantID: tenantID,
		params:   maps.Clone(params),
	}, nil
}

// MustTenantContext is like NewTenantContext but panics on an invalid tenant ID.
// Intended for tests and static wiring.
func MustTenantContext(tenantID uuid.UUID, params map[string]string) *TenantContext {
	tc, err := NewTenantContext(tenantID, params)
	if err != nil {
		panic(err)
	}
	return tc
}

// TenantID returns the tenant identifier
func (t *TenantContext) TenantID() uuid.UUID {
	return t.tenantID
}

// Key returns the tenant identifier as a string, used for map keys and labels
func (t *TenantContext) Key() string {
	return t.tenantID.String()
}

// Param returns a connection parameter
func (t *TenantContext) Param(key string) (string, bool) {
	v, ok := t.params[key]
	return v, ok
}

// ParamOr returns a connection parameter or the given default when absent or empty
func (t *TenantContext) ParamOr(key, def string) string {
	if v, ok := t.params[key]; ok && v != "" {
		return v
	}
	return def
}

// Params returns a copy of all connection parameters
func (t *TenantContext) Params() map[string]string {
	return maps.Clone(t.params)
}

// ParamKeys returns the sorted parameter keys (values are omitted because they may hold secrets)
func (t *TenantContext) ParamKeys() []string {
	keys := make([]string, 0, len(t.params))
	for k := range t.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SameTenant reports whether both contexts identify the same tenant
func (t *TenantContext) SameTenant(other *TenantContext) bool {
	if t == nil || other == nil {
		return false
	}
	return t.tenantID == other.tenantID
}
