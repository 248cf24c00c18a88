package telemetry_test

import (
	"context"
	"testing"
	"time"

	billingapp "github.com/clubledger/backend/internal/application/billing"
	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/domain/membership"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/clubledger/backend/internal/infrastructure/event"
	"github.com/clubledger/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

var _ billingapp.WebhookObserver = (*telemetry.BillingMetrics)(nil)

func newTestMetrics(t *testing.T) (*telemetry.BillingMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	bm, err := telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{
		Meter:  mp.Meter("test"),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	return bm, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func intTotal(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewBillingMetrics_NilMeter(t *testing.T) {
	bm, err := telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{})
	require.Error(t, err)
	assert.Nil(t, bm)
	assert.Equal(t, "NewBillingMetrics: meter cannot be nil", err.Error())
}

func TestBillingMetrics_HandleThroughEventBus(t *testing.T) {
	bm, reader := newTestMetrics(t)
	bus := event.NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(bm)

	ctx := context.Background()
	tenantID := uuid.New()
	invoiceID := uuid.New()

	err := bus.Publish(ctx,
		&billing.PaymentRecordedEvent{
			BaseDomainEvent: shared.NewBaseDomainEvent(billing.EventTypePaymentRecorded, billing.AggregateTypeInvoice, invoiceID, tenantID),
			Amount:          decimal.RequireFromString("40.00"),
			Method:          billing.PaymentMethodCash,
			Status:          billing.InvoiceStatusPartiallyPaid,
		},
		&billing.PaymentRecordedEvent{
			BaseDomainEvent: shared.NewBaseDomainEvent(billing.EventTypePaymentRecorded, billing.AggregateTypeInvoice, invoiceID, tenantID),
			Amount:          decimal.RequireFromString("60.00"),
			Method:          billing.PaymentMethodCash,
			Status:          billing.InvoiceStatusPaid,
		},
		&billing.RefundRecordedEvent{
			BaseDomainEvent: shared.NewBaseDomainEvent(billing.EventTypeRefundRecorded, billing.AggregateTypeInvoice, invoiceID, tenantID),
			Amount:          decimal.RequireFromString("25.00"),
			Status:          billing.InvoiceStatusPartiallyPaid,
		},
		&membership.TransitionedEvent{
			BaseDomainEvent: shared.NewBaseDomainEvent(membership.EventTypeMembershipTransitioned, membership.AggregateTypeMembership, uuid.New(), tenantID),
			Transition:      membership.EventPaused,
		},
	)
	require.NoError(t, err)

	data := collect(t, reader)
	assert.Equal(t, int64(2), intTotal(t, data["clubledger_payments_total"]))
	assert.Equal(t, int64(1), intTotal(t, data["clubledger_refunds_total"]))
	assert.Equal(t, int64(1), intTotal(t, data["clubledger_membership_transitions_total"]))

	amount, ok := data["clubledger_payment_amount_total"].(metricdata.Sum[float64])
	require.True(t, ok)
	var paid float64
	for _, dp := range amount.DataPoints {
		paid += dp.Value
	}
	assert.InDelta(t, 100.0, paid, 0.0001)
}

func TestBillingMetrics_WebhookHandled(t *testing.T) {
	bm, reader := newTestMetrics(t)
	ctx := context.Background()

	bm.WebhookHandled(ctx, "stripe", "payment_intent.succeeded", billingapp.OutcomeProcessed, 20*time.Millisecond)
	bm.WebhookHandled(ctx, "stripe", "payment_intent.succeeded", billingapp.OutcomeDuplicate, 2*time.Millisecond)
	bm.WebhookHandled(ctx, "stripe", "", billingapp.OutcomeRejected, time.Millisecond)

	data := collect(t, reader)
	sum, ok := data["clubledger_webhooks_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, sum.DataPoints, 3)
	for _, dp := range sum.DataPoints {
		outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
		assert.Contains(t, []string{billingapp.OutcomeProcessed, billingapp.OutcomeDuplicate, billingapp.OutcomeRejected}, outcome.AsString())
	}

	hist, ok := data["clubledger_webhook_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}
