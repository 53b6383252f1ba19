package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/erpcore/internal/infrastructure/config"
)

func TestFactoryConfig(t *testing.T) {
	cfg := &config.Config{
		Resilience: config.ResilienceConfig{
			Timeout:           5 * time.Second,
			MaxRetries:        2,
			BaseDelay:         100 * time.Millisecond,
			MaxDelay:          time.Second,
			Jitter:            true,
			SamplingWindow:    20 * time.Second,
			WindowBuckets:     4,
			MinimumThroughput: 8,
			FailureRatio:      0.4,
			BreakDuration:     15 * time.Second,
		},
		SAP:      config.SAPConfig{BaseURL: "https://s4.example.com", Client: "200", MaxPageSize: 250},
		Oracle:   config.OracleConfig{BaseURL: "https://fa.example.com", APIVersion: "11.13.18.05", MaxBatchSize: 20},
		Fallback: config.FallbackConfig{Enabled: true, ERPType: "fake"},
		Actor:    config.ActorConfig{InitTimeout: 7 * time.Second},
		Redis:    config.RedisConfig{CapabilityTTL: 10 * time.Minute},
	}

	fc := factoryConfig(cfg)
	assert.Equal(t, 5*time.Second, fc.Resilience.Timeout)
	assert.Equal(t, 2, fc.Resilience.MaxRetries)
	assert.Equal(t, 4, fc.Resilience.WindowBuckets)
	assert.Equal(t, 0.4, fc.Resilience.FailureRatio)
	assert.Equal(t, 15*time.Second, fc.Resilience.BreakDuration)
	require.NoError(t, fc.Resilience.Validate())

	assert.Equal(t, "https://s4.example.com", fc.SAP.BaseURL)
	assert.Equal(t, "200", fc.SAP.Client)
	assert.Equal(t, 250, fc.SAP.MaxPageSize)
	assert.Equal(t, "https://fa.example.com", fc.Oracle.BaseURL)
	assert.Equal(t, 20, fc.Oracle.MaxBatchSize)
	assert.True(t, fc.Fallback)
	assert.Equal(t, 7*time.Second, fc.InitTimeout)
	assert.Equal(t, 10*time.Minute, fc.CapabilityTTL)
}

func TestCheckFallback(t *testing.T) {
	assert.NoError(t, checkFallback(config.FallbackConfig{Enabled: false, ERPType: "sap"}))
	assert.NoError(t, checkFallback(config.FallbackConfig{Enabled: true, ERPType: "fake"}))
	assert.NoError(t, checkFallback(config.FallbackConfig{Enabled: true, ERPType: "mock"}))
	assert.Error(t, checkFallback(config.FallbackConfig{Enabled: true, ERPType: "oracle"}))
}

func TestNewTelemetry_Disabled(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Telemetry.Enabled = false
	cfg.Telemetry.MetricsEnabled = false
	cfg.Telemetry.LogsExportEnabled = false

	tel, err := newTelemetry(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, tel.metrics)

	log := zap.NewNop()
	assert.Same(t, log, tel.bridge(log, "info"))
	assert.NoError(t, tel.shutdown(context.Background()))
}
