package erp

import (
	"strconv"
	"time"

	"github.com/erp/erpcore/internal/domain/integration"
)

// SAP-specific tenant connection parameters
const (
	ParamSAPSalesOrganization   = "sales_organization"
	ParamSAPDistributionChannel = "distribution_channel"
	ParamSAPDivision            = "division"
	ParamSAPLanguage            = "language"
)

// SAPConfig holds configuration for one tenant's SAP S/4HANA OData APIs
type SAPConfig struct {
	// BaseURL is the gateway host, e.g. https://my-s4.example.com
	BaseURL string `validate:"required,url"`
	// Client is the three-digit SAP client (sap-client)
	Client string `validate:"required,len=3,numeric"`
	// Username and Password authenticate a technical user
	Username string `validate:"required_without=APIKey"`
	Password string `validate:"required_with=Username"`
	// APIKey is an OAuth2 bearer token used instead of basic auth
	APIKey string
	// Sales area used for created orders
	SalesOrganization   string `validate:"required,max=4"`
	DistributionChannel string `validate:"required,max=2"`
	Division            string `validate:"required,max=2"`
	// Language selects product descriptions (ISO 639-1)
	Language string `validate:"required,len=2"`
	// Timeout is the HTTP request timeout
	Timeout           time.Duration
	RequestsPerSecond float64 `validate:"gte=0"`
	Burst             int     `validate:"gte=0"`
	MaxBatchSize      int     `validate:"gte=1,lte=1000"`
	MaxPageSize       int     `validate:"gte=1,lte=5000"`
}

// withDefaults fills zero values
func (c SAPConfig) withDefaults() SAPConfig {
	if c.Client == "" {
		c.Client = "100"
	}
	if c.SalesOrganization == "" {
		c.SalesOrganization = "1010"
	}
	if c.DistributionChannel == "" {
		c.DistributionChannel = "10"
	}
	if c.Division == "" {
		c.Division = "00"
	}
	if c.Language == "" {
		c.Language = "EN"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBatchSize == 0 {
		c.MaxBatchSize = 100
	}
	if c.MaxPageSize == 0 {
		c.MaxPageSize = 1000
	}
	return c
}

// Validate validates the SAP configuration
func (c *SAPConfig) Validate() error {
	return validateConnectorConfig("sap", c)
}

// SAPConfigForTenant overlays the tenant's connection parameters on the shared defaults
func SAPConfigForTenant(defaults SAPConfig, tenant *integration.TenantContext) (SAPConfig, error) {
	cfg := defaults
	cfg.BaseURL = tenant.ParamOr(integration.ParamBaseURL, cfg.BaseURL)
	cfg.Client = tenant.ParamOr(integration.ParamClient, cfg.Client)
	cfg.Username = tenant.ParamOr(integration.ParamUsername, cfg.Username)
	cfg.Password = tenant.ParamOr(integration.ParamPassword, cfg.Password)
	cfg.APIKey = tenant.ParamOr(integration.ParamAPIKey, cfg.APIKey)
	cfg.SalesOrganization = tenant.ParamOr(ParamSAPSalesOrganization, cfg.SalesOrganization)
	cfg.DistributionChannel = tenant.ParamOr(ParamSAPDistributionChannel, cfg.DistributionChannel)
	cfg.Division = tenant.ParamOr(ParamSAPDivision, cfg.Division)
	cfg.Language = tenant.ParamOr(ParamSAPLanguage, cfg.Language)
	if v, ok := tenant.Param(ParamRequestsPerSecond); ok {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RequestsPerSecond = rps
		}
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return SAPConfig{}, err
	}
	return cfg, nil
}
