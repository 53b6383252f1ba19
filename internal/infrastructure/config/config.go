package config

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Log        LogConfig
	Redis      RedisConfig
	HTTP       HTTPConfig
	Telemetry  TelemetryConfig
	Resilience ResilienceConfig
	Actor      ActorConfig
	Fallback   FallbackConfig
	SAP        SAPConfig
	Oracle     OracleConfig
	Tenants    []TenantConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name    string
	Version string
	Env     string
	Port    string
}

// RedisConfig holds Redis connection settings for the shared capability cache
type RedisConfig struct {
	Enabled       bool
	Host          string
	Port          int
	Password      string
	DB            int
	KeyPrefix     string
	CapabilityTTL time.Duration
}

// HTTPConfig holds ops HTTP server configuration
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable tracing export
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces and metrics
	Insecure          bool    // Use insecure (non-TLS) connection (development only)

	MetricsEnabled        bool
	MetricsExportInterval time.Duration

	LogsExportEnabled bool
	LogsExportLevel   string
}

// ResilienceConfig holds the per-tenant timeout, retry and circuit breaker tuning
type ResilienceConfig struct {
	Timeout           time.Duration
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	Jitter            bool
	SamplingWindow    time.Duration
	WindowBuckets     int
	MinimumThroughput int
	FailureRatio      float64
	BreakDuration     time.Duration
}

// ActorConfig holds tenant actor lifecycle settings
type ActorConfig struct {
	InitTimeout    time.Duration // Bound on provider initialization when an actor is created
	DisposeTimeout time.Duration // Bound on waiting for in-flight work during pool shutdown
}

// FallbackConfig controls wrapping tenant providers with a fallback provider
type FallbackConfig struct {
	Enabled bool
	ERPType string
}

// SAPConfig holds defaults shared by all SAP tenants. Tenant params override them.
type SAPConfig struct {
	BaseURL             string
	Client              string
	SalesOrganization   string
	DistributionChannel string
	Division            string
	Timeout             time.Duration
	RequestsPerSecond   float64
	Burst               int
	MaxBatchSize        int
	MaxPageSize         int
}

// OracleConfig holds defaults shared by all Oracle tenants. Tenant params override them.
type OracleConfig struct {
	BaseURL           string
	APIVersion        string
	BusinessUnit      string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxBatchSize      int
	MaxPageSize       int
}

// TenantConfig selects the ERP backend of one tenant
type TenantConfig struct {
	ID      uuid.UUID
	ERPType string
	Params  map[string]string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with ERPCORE_ prefix (e.g., ERPCORE_SAP_BASE_URL)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/erpcore")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	return load(v)
}

// LoadFile loads configuration from an explicit TOML file plus environment variables
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("ERPCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Zero retries is a valid setting, so only an absent key falls back to the default
	maxRetries := -1
	if v.IsSet("resilience.max_retries") {
		maxRetries = v.GetInt("resilience.max_retries")
	}
	jitter := true
	if v.IsSet("resilience.jitter") {
		jitter = v.GetBool("resilience.jitter")
	}
	fallbackEnabled := true
	if v.IsSet("fallback.enabled") {
		fallbackEnabled = v.GetBool("fallback.enabled")
	}

	tenants, err := loadTenants(v)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("app.name"),
			Version: v.GetString("app.version"),
			Env:     v.GetString("app.env"),
			Port:    v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Redis: RedisConfig{
			Enabled:       v.GetBool("redis.enabled"),
			Host:          v.GetString("redis.host"),
			Port:          v.GetInt("redis.port"),
			Password:      v.GetString("redis.password"),
			DB:            v.GetInt("redis.db"),
			KeyPrefix:     v.GetString("redis.key_prefix"),
			CapabilityTTL: v.GetDuration("redis.capability_ttl"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:  v.GetInt("http.max_header_bytes"),
		},
		Telemetry: TelemetryConfig{
			Enabled:               v.GetBool("telemetry.enabled"),
			CollectorEndpoint:     v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:         v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:           v.GetString("telemetry.service_name"),
			Insecure:              v.GetBool("telemetry.insecure"),
			MetricsEnabled:        v.GetBool("telemetry.metrics_enabled"),
			MetricsExportInterval: v.GetDuration("telemetry.metrics_export_interval"),
			LogsExportEnabled:     v.GetBool("telemetry.logs_export_enabled"),
			LogsExportLevel:       v.GetString("telemetry.logs_export_level"),
		},
		Resilience: ResilienceConfig{
			Timeout:           v.GetDuration("resilience.timeout"),
			MaxRetries:        maxRetries,
			BaseDelay:         v.GetDuration("resilience.base_delay"),
			MaxDelay:          v.GetDuration("resilience.max_delay"),
			Jitter:            jitter,
			SamplingWindow:    v.GetDuration("resilience.sampling_window"),
			WindowBuckets:     v.GetInt("resilience.window_buckets"),
			MinimumThroughput: v.GetInt("resilience.minimum_throughput"),
			FailureRatio:      v.GetFloat64("resilience.failure_ratio"),
			BreakDuration:     v.GetDuration("resilience.break_duration"),
		},
		Actor: ActorConfig{
			InitTimeout:    v.GetDuration("actor.init_timeout"),
			DisposeTimeout: v.GetDuration("actor.dispose_timeout"),
		},
		Fallback: FallbackConfig{
			Enabled: fallbackEnabled,
			ERPType: v.GetString("fallback.erp_type"),
		},
		SAP: SAPConfig{
			BaseURL:             v.GetString("sap.base_url"),
			Client:              v.GetString("sap.client"),
			SalesOrganization:   v.GetString("sap.sales_organization"),
			DistributionChannel: v.GetString("sap.distribution_channel"),
			Division:            v.GetString("sap.division"),
			Timeout:             v.GetDuration("sap.timeout"),
			RequestsPerSecond:   v.GetFloat64("sap.requests_per_second"),
			Burst:               v.GetInt("sap.burst"),
			MaxBatchSize:        v.GetInt("sap.max_batch_size"),
			MaxPageSize:         v.GetInt("sap.max_page_size"),
		},
		Oracle: OracleConfig{
			BaseURL:           v.GetString("oracle.base_url"),
			APIVersion:        v.GetString("oracle.api_version"),
			BusinessUnit:      v.GetString("oracle.business_unit"),
			Timeout:           v.GetDuration("oracle.timeout"),
			RequestsPerSecond: v.GetFloat64("oracle.requests_per_second"),
			Burst:             v.GetInt("oracle.burst"),
			MaxBatchSize:      v.GetInt("oracle.max_batch_size"),
			MaxPageSize:       v.GetInt("oracle.max_page_size"),
		},
		Tenants: tenants,
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadTenants reads the [tenants.<uuid>] tables. Tenants are sorted by ID.
func loadTenants(v *viper.Viper) ([]TenantConfig, error) {
	raw := v.GetStringMap("tenants")
	tenants := make([]TenantConfig, 0, len(raw))
	for key := range raw {
		id, err := uuid.Parse(key)
		if err != nil {
			return nil, fmt.Errorf("tenants.%s: invalid tenant id: %w", key, err)
		}
		tenants = append(tenants, TenantConfig{
			ID:      id,
			ERPType: strings.ToLower(strings.TrimSpace(v.GetString("tenants." + key + ".erp_type"))),
			Params:  v.GetStringMapString("tenants." + key + ".params"),
		})
	}
	sort.Slice(tenants, func(i, j int) bool {
		return tenants[i].ID.String() < tenants[j].ID.String()
	})
	return tenants, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "erpcore"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "dev"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8090"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "erpcore:capabilities:"
	}
	if cfg.Redis.CapabilityTTL == 0 {
		cfg.Redis.CapabilityTTL = time.Hour
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}

	// Telemetry defaults
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsExportInterval == 0 {
		cfg.Telemetry.MetricsExportInterval = 60 * time.Second
	}
	if cfg.Telemetry.LogsExportLevel == "" {
		cfg.Telemetry.LogsExportLevel = "info"
	}

	// Resilience defaults
	if cfg.Resilience.Timeout == 0 {
		cfg.Resilience.Timeout = 30 * time.Second
	}
	if cfg.Resilience.MaxRetries < 0 {
		cfg.Resilience.MaxRetries = 3
	}
	if cfg.Resilience.BaseDelay == 0 {
		cfg.Resilience.BaseDelay = 200 * time.Millisecond
	}
	if cfg.Resilience.MaxDelay == 0 {
		cfg.Resilience.MaxDelay = 30 * time.Second
	}
	if cfg.Resilience.SamplingWindow == 0 {
		cfg.Resilience.SamplingWindow = 30 * time.Second
	}
	if cfg.Resilience.WindowBuckets == 0 {
		cfg.Resilience.WindowBuckets = 10
	}
	if cfg.Resilience.MinimumThroughput == 0 {
		cfg.Resilience.MinimumThroughput = 10
	}
	if cfg.Resilience.FailureRatio == 0 {
		cfg.Resilience.FailureRatio = 0.5
	}
	if cfg.Resilience.BreakDuration == 0 {
		cfg.Resilience.BreakDuration = 60 * time.Second
	}

	if cfg.Actor.InitTimeout == 0 {
		cfg.Actor.InitTimeout = 30 * time.Second
	}
	if cfg.Actor.DisposeTimeout == 0 {
		cfg.Actor.DisposeTimeout = 30 * time.Second
	}
	if cfg.Fallback.ERPType == "" {
		cfg.Fallback.ERPType = "fake"
	}

	// Connector defaults
	if cfg.SAP.Client == "" {
		cfg.SAP.Client = "100"
	}
	if cfg.SAP.Timeout == 0 {
		cfg.SAP.Timeout = 30 * time.Second
	}
	if cfg.SAP.RequestsPerSecond == 0 {
		cfg.SAP.RequestsPerSecond = 10
	}
	if cfg.SAP.Burst == 0 {
		cfg.SAP.Burst = 5
	}
	if cfg.SAP.MaxBatchSize == 0 {
		cfg.SAP.MaxBatchSize = 100
	}
	if cfg.SAP.MaxPageSize == 0 {
		cfg.SAP.MaxPageSize = 1000
	}
	if cfg.Oracle.APIVersion == "" {
		cfg.Oracle.APIVersion = "11.13.18.05"
	}
	if cfg.Oracle.Timeout == 0 {
		cfg.Oracle.Timeout = 30 * time.Second
	}
	if cfg.Oracle.RequestsPerSecond == 0 {
		cfg.Oracle.RequestsPerSecond = 10
	}
	if cfg.Oracle.Burst == 0 {
		cfg.Oracle.Burst = 5
	}
	if cfg.Oracle.MaxBatchSize == 0 {
		cfg.Oracle.MaxBatchSize = 50
	}
	if cfg.Oracle.MaxPageSize == 0 {
		cfg.Oracle.MaxPageSize = 500
	}
}

var validEnvironments = []string{"development", "testing", "staging", "production"}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if !slices.Contains(validEnvironments, c.App.Env) {
		return fmt.Errorf("app.env must be one of %v, got %q", validEnvironments, c.App.Env)
	}

	r := c.Resilience
	if r.Timeout < 0 || r.BaseDelay < 0 || r.MaxDelay < 0 || r.SamplingWindow < 0 || r.BreakDuration < 0 {
		return fmt.Errorf("resilience durations must be positive")
	}
	if r.BaseDelay > r.MaxDelay {
		return fmt.Errorf("resilience.base_delay (%s) cannot exceed resilience.max_delay (%s)", r.BaseDelay, r.MaxDelay)
	}
	if r.FailureRatio <= 0 || r.FailureRatio > 1 {
		return fmt.Errorf("resilience.failure_ratio must be in (0, 1], got %f", r.FailureRatio)
	}
	if r.MinimumThroughput < 0 {
		return fmt.Errorf("resilience.minimum_throughput cannot be negative")
	}
	if r.WindowBuckets < 0 {
		return fmt.Errorf("resilience.window_buckets cannot be negative")
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	for _, t := range c.Tenants {
		if t.ERPType == "" {
			return fmt.Errorf("tenants.%s.erp_type is required", t.ID)
		}
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Telemetry.Insecure {
			return fmt.Errorf("telemetry.insecure must be false in production")
		}
		if c.Redis.Enabled && c.Redis.Password == "" {
			return fmt.Errorf("redis.password is required in production")
		}
	}

	return nil
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
