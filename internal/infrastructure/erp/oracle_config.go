package erp

import (
	"strconv"
	"time"

	"github.com/erp/erpcore/internal/domain/integration"
)

// Oracle-specific tenant connection parameters
const (
	ParamOracleAPIVersion   = "api_version"
	ParamOracleBusinessUnit = "business_unit"
)

// OracleConfig holds configuration for one tenant's Oracle Fusion Cloud REST APIs
type OracleConfig struct {
	BaseURL    string `validate:"required,url"`
	APIVersion string `validate:"required"`
	// BusinessUnit is stamped on created orders; empty uses the account's default
	BusinessUnit string
	Username     string `validate:"required_without=APIKey"`
	Password     string `validate:"required_with=Username"`
	APIKey       string

	Timeout           time.Duration
	RequestsPerSecond float64 `validate:"gte=0"`
	Burst             int     `validate:"gte=0"`
	MaxBatchSize      int     `validate:"gte=1,lte=500"`
	MaxPageSize       int     `validate:"gte=1,lte=500"`
}

func (c OracleConfig) withDefaults() OracleConfig {
	if c.APIVersion == "" {
		c.APIVersion = "11.13.18.05"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBatchSize == 0 {
		c.MaxBatchSize = 50
	}
	if c.MaxPageSize == 0 {
		c.MaxPageSize = 500
	}
	return c
}

// Validate validates the Oracle configuration
func (c *OracleConfig) Validate() error {
	return validateConnectorConfig("oracle", c)
}

// OracleConfigForTenant overlays the tenant's connection parameters on the shared defaults
func OracleConfigForTenant(defaults OracleConfig, tenant *integration.TenantContext) (OracleConfig, error) {
	cfg := defaults
	cfg.BaseURL = tenant.ParamOr(integration.ParamBaseURL, cfg.BaseURL)
	cfg.Username = tenant.ParamOr(integration.ParamUsername, cfg.Username)
	cfg.Password = tenant.ParamOr(integration.ParamPassword, cfg.Password)
	cfg.APIKey = tenant.ParamOr(integration.ParamAPIKey, cfg.APIKey)
	cfg.APIVersion = tenant.ParamOr(ParamOracleAPIVersion, cfg.APIVersion)
	cfg.BusinessUnit = tenant.ParamOr(ParamOracleBusinessUnit, cfg.BusinessUnit)
	if v, ok := tenant.Param(ParamRequestsPerSecond); ok {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RequestsPerSecond = rps
		}
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return OracleConfig{}, err
	}
	return cfg, nil
}
