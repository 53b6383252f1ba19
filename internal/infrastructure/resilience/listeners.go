package resilience

import (
	"context"

	"go.uber.org/zap"

	"github.com/erp/erpcore/internal/infrastructure/telemetry"
)

// ---------------------------------------------------------------------------
// Logging listener
// ---------------------------------------------------------------------------

type loggingListener struct {
	logger *zap.Logger
}

// NewLoggingListener returns a listener that logs pipeline events
func NewLoggingListener(logger *zap.Logger) Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &loggingListener{logger: logger.Named("resilience")}
}

func (l *loggingListener) OnEvent(e Event) {
	fields := []zap.Field{zap.String("pipeline", e.Pipeline)}

	switch e.Type {
	case EventAttemptFailed:
		fields = append(fields,
			zap.Int("attempt", e.Attempt),
			zap.String("kind", e.Kind.String()),
			zap.Error(e.Err),
		)
		if e.WillRetry() {
			l.logger.Warn("ERP call attempt failed, retrying", append(fields, zap.Duration("delay", e.Delay))...)
			return
		}
		l.logger.Debug("ERP call attempt failed", fields...)

	case EventTimeout:
		l.logger.Warn("ERP call attempt timed out", append(fields, zap.Int("attempt", e.Attempt))...)

	case EventBreakerStateChanged:
		fields = append(fields, zap.Stringer("from", e.From), zap.Stringer("to", e.To))
		if e.To == StateOpen {
			l.logger.Error("Circuit breaker opened", fields...)
			return
		}
		l.logger.Info("Circuit breaker state changed", fields...)

	case EventCallRejected:
		l.logger.Debug("Call rejected by open circuit breaker", fields...)
	}
}

// ---------------------------------------------------------------------------
// Metrics listener
// ---------------------------------------------------------------------------

type metricsListener struct {
	metrics *telemetry.IntegrationMetrics
}

// NewMetricsListener returns a listener that records pipeline events as metrics.
// A nil metrics value yields a listener that does nothing.
func NewMetricsListener(metrics *telemetry.IntegrationMetrics) Listener {
	if metrics == nil {
		return nopListener{}
	}
	return &metricsListener{metrics: metrics}
}

func (l *metricsListener) OnEvent(e Event) {
	ctx := context.Background()
	switch e.Type {
	case EventAttemptFailed:
		l.metrics.RecordAttemptFailure(ctx, e.Pipeline, e.Kind.String(), e.WillRetry())
	case EventTimeout:
		l.metrics.RecordTimeout(ctx, e.Pipeline)
	case EventBreakerStateChanged:
		l.metrics.RecordBreakerTransition(ctx, e.Pipeline, e.From.String(), e.To.String())
	case EventCallRejected:
		l.metrics.RecordRejected(ctx, e.Pipeline)
	}
}
