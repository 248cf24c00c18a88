package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/clubledger/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func attrMap(attrs []attribute.KeyValue) map[string]string {
	out := make(map[string]string, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func TestStartServiceSpan(t *testing.T) {
	recorder := installRecorder(t)
	invoiceID := uuid.New()

	ctx, span := telemetry.StartServiceSpan(context.Background(), "ledger", "record_payment",
		telemetry.SpanAttrInvoiceID, invoiceID,
		telemetry.SpanAttrAmount, decimal.RequireFromString("49.90"),
		42, "non-string key is skipped",
	)
	assert.NotEmpty(t, telemetry.GetTraceID(ctx))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "ledger.record_payment", spans[0].Name())
	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, invoiceID.String(), attrs["invoice_id"])
	assert.Equal(t, "49.9", attrs["amount"])
	assert.Len(t, attrs, 2)
}

func TestRecordError(t *testing.T) {
	recorder := installRecorder(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "webhook", "process")
	telemetry.RecordError(span, nil)
	telemetry.RecordError(span, errors.New("boom"))
	telemetry.RecordError(nil, errors.New("ignored"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	assert.Len(t, spans[0].Events(), 1)
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, telemetry.GetTraceID(context.Background()))
}
