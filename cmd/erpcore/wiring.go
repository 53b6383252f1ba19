package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/erp/erpcore/internal/domain/integration"
	"github.com/erp/erpcore/internal/infrastructure/config"
	"github.com/erp/erpcore/internal/infrastructure/erp"
	"github.com/erp/erpcore/internal/infrastructure/logger"
	"github.com/erp/erpcore/internal/infrastructure/resilience"
	"github.com/erp/erpcore/internal/infrastructure/telemetry"
)

// factoryConfig maps the loaded configuration onto the provider factory
func factoryConfig(cfg *config.Config) erp.FactoryConfig {
	r := cfg.Resilience
	return erp.FactoryConfig{
		Resilience: resilience.Config{
			Timeout:           r.Timeout,
			MaxRetries:        r.MaxRetries,
			BaseDelay:         r.BaseDelay,
			MaxDelay:          r.MaxDelay,
			Jitter:            r.Jitter,
			SamplingWindow:    r.SamplingWindow,
			WindowBuckets:     r.WindowBuckets,
			MinimumThroughput: r.MinimumThroughput,
			FailureRatio:      r.FailureRatio,
			BreakDuration:     r.BreakDuration,
		},
		SAP: erp.SAPConfig{
			BaseURL:             cfg.SAP.BaseURL,
			Client:              cfg.SAP.Client,
			SalesOrganization:   cfg.SAP.SalesOrganization,
			DistributionChannel: cfg.SAP.DistributionChannel,
			Division:            cfg.SAP.Division,
			Timeout:             cfg.SAP.Timeout,
			RequestsPerSecond:   cfg.SAP.RequestsPerSecond,
			Burst:               cfg.SAP.Burst,
			MaxBatchSize:        cfg.SAP.MaxBatchSize,
			MaxPageSize:         cfg.SAP.MaxPageSize,
		},
		Oracle: erp.OracleConfig{
			BaseURL:           cfg.Oracle.BaseURL,
			APIVersion:        cfg.Oracle.APIVersion,
			BusinessUnit:      cfg.Oracle.BusinessUnit,
			Timeout:           cfg.Oracle.Timeout,
			RequestsPerSecond: cfg.Oracle.RequestsPerSecond,
			Burst:             cfg.Oracle.Burst,
			MaxBatchSize:      cfg.Oracle.MaxBatchSize,
			MaxPageSize:       cfg.Oracle.MaxPageSize,
		},
		Fallback:      cfg.Fallback.Enabled,
		InitTimeout:   cfg.Actor.InitTimeout,
		CapabilityTTL: cfg.Redis.CapabilityTTL,
	}
}

// checkFallback rejects fallback types other than the built-in fake provider
func checkFallback(cfg config.FallbackConfig) error {
	if !cfg.Enabled {
		return nil
	}
	switch integration.ProviderType(cfg.ERPType) {
	case "", integration.ProviderTypeFake, integration.ProviderTypeMock:
		return nil
	}
	return fmt.Errorf("fallback.erp_type %q is not supported, only %q can serve as fallback",
		cfg.ERPType, integration.ProviderTypeFake)
}

// telemetryStack holds the OpenTelemetry providers of the process
type telemetryStack struct {
	tracer  *telemetry.TracerProvider
	meter   *telemetry.MeterProvider
	logs    *telemetry.LoggerProvider
	metrics *telemetry.IntegrationMetrics
}

func newTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) (*telemetryStack, error) {
	t := cfg.Telemetry
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.TracingConfig{
		Enabled:           t.Enabled,
		CollectorEndpoint: t.CollectorEndpoint,
		SamplingRatio:     t.SamplingRatio,
		ServiceName:       t.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          t.Insecure,
	}, log.Named("telemetry"))
	if err != nil {
		return nil, err
	}
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           t.MetricsEnabled,
		CollectorEndpoint: t.CollectorEndpoint,
		ExportInterval:    t.MetricsExportInterval,
		ServiceName:       t.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          t.Insecure,
	}, log.Named("telemetry"))
	if err != nil {
		return nil, errors.Join(err, tp.Shutdown(ctx))
	}
	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           t.LogsExportEnabled,
		CollectorEndpoint: t.CollectorEndpoint,
		ServiceName:       t.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          t.Insecure,
	}, log.Named("telemetry"))
	if err != nil {
		return nil, errors.Join(err, tp.Shutdown(ctx), mp.Shutdown(ctx))
	}
	metrics, err := telemetry.NewIntegrationMetrics(telemetry.IntegrationMetricsConfig{
		Meter:  mp.Meter(telemetry.TracerName),
		Logger: log.Named("metrics"),
	})
	if err != nil {
		return nil, errors.Join(err, tp.Shutdown(ctx), mp.Shutdown(ctx), lp.Shutdown(ctx))
	}
	return &telemetryStack{tracer: tp, meter: mp, logs: lp, metrics: metrics}, nil
}

// bridge also exports log entries at or above the configured level over OTLP
func (t *telemetryStack) bridge(log *zap.Logger, level string) *zap.Logger {
	lvl, err := logger.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	return t.logs.Bridge(log, lvl)
}

func (t *telemetryStack) shutdown(ctx context.Context) error {
	return errors.Join(t.tracer.Shutdown(ctx), t.meter.Shutdown(ctx), t.logs.Shutdown(ctx))
}
