package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Outcome attribute values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Attribute keys shared by metrics and spans
var (
	AttrTenant      = attribute.Key("tenant")
	AttrOperation   = attribute.Key("operation")
	AttrOutcome     = attribute.Key("outcome")
	AttrErrorKind   = attribute.Key("error_kind")
	AttrBreakerFrom = attribute.Key("breaker.from")
	AttrBreakerTo   = attribute.Key("breaker.to")
	AttrERPType     = attribute.Key("erp.type")
)

// OperationDurationBuckets (seconds) cover queueing plus retries against slow backends.
var OperationDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// IntegrationMetrics records ERP integration metrics: resilience pipeline
// activity, operation latency and actor queue depth.
type IntegrationMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics
	attemptFailures    *Counter
	retries            *Counter
	timeouts           *Counter
	breakerTransitions *Counter
	rejectedCalls      *Counter
	operations         *Counter

	// Histogram metrics
	operationDuration *Histogram

	// Gauge metrics
	queueDepth *Gauge
}

// IntegrationMetricsConfig holds configuration for integration metrics.
type IntegrationMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewIntegrationMetrics creates a new IntegrationMetrics instance.
func NewIntegrationMetrics(cfg IntegrationMetricsConfig) (*IntegrationMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	im := &IntegrationMetrics{
		meter:  cfg.Meter,
		logger: logger,
	}

	counters := []struct {
		target      **Counter
		name        string
		description string
		unit        string
	}{
		{&im.attemptFailures, "erpcore_attempt_failures_total", "Total number of failed ERP call attempts", "{attempts}"},
		{&im.retries, "erpcore_retries_total", "Total number of scheduled ERP call retries", "{retries}"},
		{&im.timeouts, "erpcore_attempt_timeouts_total", "Total number of ERP call attempts that exceeded their timeout", "{attempts}"},
		{&im.breakerTransitions, "erpcore_breaker_transitions_total", "Total number of circuit breaker state transitions", "{transitions}"},
		{&im.rejectedCalls, "erpcore_breaker_rejected_total", "Total number of calls rejected by an open circuit breaker", "{calls}"},
		{&im.operations, "erpcore_operations_total", "Total number of ERP operations executed by tenant actors", "{operations}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.description, c.unit)
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}

	var err error
	im.operationDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "erpcore_operation_duration_seconds",
		Description: "Duration of ERP operations including queueing and retries",
		Unit:        "s",
		Boundaries:  OperationDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	im.queueDepth, err = NewGauge(
		cfg.Meter,
		"erpcore_actor_queue_depth",
		"Number of operations waiting in a tenant actor",
		"{operations}",
	)
	if err != nil {
		return nil, err
	}

	logger.Debug("Integration metrics initialized")
	return im, nil
}

// RecordAttemptFailure records a failed attempt and, when another attempt follows, a retry.
func (im *IntegrationMetrics) RecordAttemptFailure(ctx context.Context, tenant, kind string, willRetry bool) {
	attrs := []attribute.KeyValue{AttrTenant.String(tenant), AttrErrorKind.String(kind)}
	im.attemptFailures.Inc(ctx, attrs...)
	if willRetry {
		im.retries.Inc(ctx, attrs...)
	}
}

// RecordTimeout records an attempt that exceeded its timeout.
func (im *IntegrationMetrics) RecordTimeout(ctx context.Context, tenant string) {
	im.timeouts.Inc(ctx, AttrTenant.String(tenant))
}

// RecordBreakerTransition records a circuit breaker state change.
func (im *IntegrationMetrics) RecordBreakerTransition(ctx context.Context, tenant, from, to string) {
	im.breakerTransitions.Inc(ctx,
		AttrTenant.String(tenant),
		AttrBreakerFrom.String(from),
		AttrBreakerTo.String(to),
	)
}

// RecordRejected records a call rejected by an open breaker.
func (im *IntegrationMetrics) RecordRejected(ctx context.Context, tenant string) {
	im.rejectedCalls.Inc(ctx, AttrTenant.String(tenant))
}

// RecordOperation records a completed actor operation.
func (im *IntegrationMetrics) RecordOperation(ctx context.Context, tenant, operation string, d time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	attrs := []attribute.KeyValue{
		AttrTenant.String(tenant),
		AttrOperation.String(operation),
		AttrOutcome.String(outcome),
	}
	im.operations.Inc(ctx, attrs...)
	im.operationDuration.RecordDuration(ctx, d, attrs...)
}

// RecordQueueDepth records the number of operations waiting in a tenant actor.
func (im *IntegrationMetrics) RecordQueueDepth(ctx context.Context, tenant string, depth int64) {
	im.queueDepth.Record(ctx, depth, AttrTenant.String(tenant))
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewIntegrationMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
