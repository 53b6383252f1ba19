package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/erpcore/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// setupTestTracer installs a tracer provider backed by an in-memory span recorder.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestStartSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "erp.check_health",
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute("attempt", 2),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "erp.check_health", spans[0].Name())
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind())

	v, ok := attrValue(spans[0].Attributes(), "attempt")
	require.True(t, ok)
	assert.Equal(t, int64(2), v.AsInt64())
}

func TestStartOperationSpan(t *testing.T) {
	sr := setupTestTracer(t)
	tenant := uuid.New()

	ctx, span := telemetry.StartOperationSpan(context.Background(), tenant.String(), "create_order",
		telemetry.WithAttribute(telemetry.SpanAttrERPType, "sap"))
	assert.NotEmpty(t, telemetry.GetTraceID(ctx))
	assert.NotEmpty(t, telemetry.GetSpanID(ctx))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "erp.create_order", spans[0].Name())

	v, ok := attrValue(spans[0].Attributes(), telemetry.SpanAttrTenant)
	require.True(t, ok)
	assert.Equal(t, tenant.String(), v.AsString())

	v, ok = attrValue(spans[0].Attributes(), telemetry.SpanAttrERPType)
	require.True(t, ok)
	assert.Equal(t, "sap", v.AsString())
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "erp.failing")
	telemetry.RecordError(span, errors.New("backend unavailable"))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "backend unavailable", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestSpanHelpers(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "erp.helpers")
	telemetry.SetAttribute(span, telemetry.SpanAttrQueueDepth, int64(4))
	telemetry.AddEvent(span, "retry_scheduled", "attempt", 1, "odd")
	telemetry.RecordError(span, nil)
	telemetry.SetOK(span)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Ok, spans[0].Status().Code)

	v, ok := attrValue(spans[0].Attributes(), telemetry.SpanAttrQueueDepth)
	require.True(t, ok)
	assert.Equal(t, int64(4), v.AsInt64())

	require.Len(t, spans[0].Events(), 1)
	assert.Len(t, spans[0].Events()[0].Attributes, 1)
}

func TestSpanHelpers_NilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.RecordError(nil, errors.New("x"))
		telemetry.SetOK(nil)
		telemetry.SetAttribute(nil, "k", "v")
		telemetry.AddEvent(nil, "e")
	})
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, telemetry.GetTraceID(context.Background()))
	assert.Empty(t, telemetry.GetSpanID(context.Background()))
}

func TestTracerProvider_Disabled(t *testing.T) {
	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.TracingConfig{}, nil)
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestLoggerProvider_Disabled(t *testing.T) {
	lp, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{}, nil)
	require.NoError(t, err)
	assert.False(t, lp.IsEnabled())
	assert.NoError(t, lp.Shutdown(context.Background()))
}

func TestLoggerProvider_BridgeDisabledReturnsSameLogger(t *testing.T) {
	lp, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{}, nil)
	require.NoError(t, err)

	base := zap.NewNop()
	assert.Same(t, base, lp.Bridge(base, zapcore.InfoLevel))
}
