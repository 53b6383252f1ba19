package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "erpcore", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8090", cfg.App.Port)
		assert.Equal(t, "erpcore", cfg.Telemetry.ServiceName)

		assert.Equal(t, 30*time.Second, cfg.Resilience.Timeout)
		assert.Equal(t, 3, cfg.Resilience.MaxRetries)
		assert.Equal(t, 200*time.Millisecond, cfg.Resilience.BaseDelay)
		assert.Equal(t, 30*time.Second, cfg.Resilience.MaxDelay)
		assert.True(t, cfg.Resilience.Jitter)
		assert.Equal(t, 30*time.Second, cfg.Resilience.SamplingWindow)
		assert.Equal(t, 10, cfg.Resilience.MinimumThroughput)
		assert.Equal(t, 0.5, cfg.Resilience.FailureRatio)
		assert.Equal(t, 60*time.Second, cfg.Resilience.BreakDuration)

		assert.True(t, cfg.Fallback.Enabled)
		assert.Equal(t, "fake", cfg.Fallback.ERPType)
		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
		assert.Equal(t, time.Hour, cfg.Redis.CapabilityTTL)
		assert.Empty(t, cfg.Tenants)
	})

	t.Run("loads values from environment variables with ERPCORE prefix", func(t *testing.T) {
		t.Setenv("ERPCORE_APP_NAME", "test-app")
		t.Setenv("ERPCORE_APP_ENV", "testing")
		t.Setenv("ERPCORE_RESILIENCE_TIMEOUT", "5s")
		t.Setenv("ERPCORE_RESILIENCE_FAILURE_RATIO", "0.25")
		t.Setenv("ERPCORE_SAP_BASE_URL", "https://sap.example.com")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "testing", cfg.App.Env)
		assert.Equal(t, 5*time.Second, cfg.Resilience.Timeout)
		assert.Equal(t, 0.25, cfg.Resilience.FailureRatio)
		assert.Equal(t, "https://sap.example.com", cfg.SAP.BaseURL)
	})

	t.Run("explicit zero retries is kept", func(t *testing.T) {
		t.Setenv("ERPCORE_RESILIENCE_MAX_RETRIES", "0")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 0, cfg.Resilience.MaxRetries)
	})

	t.Run("fallback can be disabled", func(t *testing.T) {
		t.Setenv("ERPCORE_FALLBACK_ENABLED", "false")

		cfg, err := Load()
		require.NoError(t, err)
		assert.False(t, cfg.Fallback.Enabled)
	})

	t.Run("rejects unknown environment", func(t *testing.T) {
		t.Setenv("ERPCORE_APP_ENV", "qa")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "app.env must be one of")
	})

	t.Run("rejects failure ratio above one", func(t *testing.T) {
		t.Setenv("ERPCORE_RESILIENCE_FAILURE_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "resilience.failure_ratio")
	})

	t.Run("rejects base delay above max delay", func(t *testing.T) {
		t.Setenv("ERPCORE_RESILIENCE_BASE_DELAY", "1m")
		t.Setenv("ERPCORE_RESILIENCE_MAX_DELAY", "1s")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})
}

func TestLoadFile_Tenants(t *testing.T) {
	path := writeConfig(t, `
[app]
env = "testing"

[tenants.9b2d7c9e-0000-4000-8000-000000000002]
erp_type = "oracle"

[tenants.9b2d7c9e-0000-4000-8000-000000000001]
erp_type = "SAP"

[tenants.9b2d7c9e-0000-4000-8000-000000000001.params]
base_url = "https://sap.tenant-a.example.com"
username = "svc_erp"
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, cfg.Tenants, 2)

	first := cfg.Tenants[0]
	assert.Equal(t, uuid.MustParse("9b2d7c9e-0000-4000-8000-000000000001"), first.ID)
	assert.Equal(t, "sap", first.ERPType)
	assert.Equal(t, "https://sap.tenant-a.example.com", first.Params["base_url"])
	assert.Equal(t, "svc_erp", first.Params["username"])

	second := cfg.Tenants[1]
	assert.Equal(t, "oracle", second.ERPType)
	assert.Empty(t, second.Params)
}

func TestLoadFile_InvalidTenants(t *testing.T) {
	t.Run("tenant id must be a uuid", func(t *testing.T) {
		path := writeConfig(t, `
[tenants.acme]
erp_type = "sap"
`)
		_, err := LoadFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid tenant id")
	})

	t.Run("tenant erp type is required", func(t *testing.T) {
		path := writeConfig(t, `
[tenants.9b2d7c9e-0000-4000-8000-000000000001.params]
client = "200"
`)
		_, err := LoadFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "erp_type is required")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
		require.Error(t, err)
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	t.Run("rejects insecure telemetry in production", func(t *testing.T) {
		t.Setenv("ERPCORE_APP_ENV", "production")
		t.Setenv("ERPCORE_TELEMETRY_INSECURE", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "telemetry.insecure must be false in production")
	})

	t.Run("requires redis password when redis is enabled in production", func(t *testing.T) {
		t.Setenv("ERPCORE_APP_ENV", "production")
		t.Setenv("ERPCORE_REDIS_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis.password is required in production")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		t.Setenv("ERPCORE_APP_ENV", "production")
		t.Setenv("ERPCORE_REDIS_ENABLED", "true")
		t.Setenv("ERPCORE_REDIS_PASSWORD", "secure-password")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}
