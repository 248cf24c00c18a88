package telemetry

import (
	"context"
	"time"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/domain/membership"
	"github.com/clubledger/backend/internal/domain/shared"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BillingMetrics counts ledger activity. It subscribes to the event bus
// for committed domain events and observes webhook deliveries directly.
type BillingMetrics struct {
	logger *zap.Logger

	invoicesCreated   *Counter
	invoicesCancelled *Counter
	payments          *Counter
	paymentAmount     *FloatCounter
	paymentsFailed    *Counter
	refunds           *Counter
	refundAmount      *FloatCounter
	couponRedemptions *Counter
	transitions       *Counter
	webhooks          *Counter
	webhookDuration   *Histogram
}

// BillingMetricsConfig holds configuration for BillingMetrics
type BillingMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewBillingMetrics creates the instruments on cfg.Meter
func NewBillingMetrics(cfg BillingMetricsConfig) (*BillingMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	bm := &BillingMetrics{logger: cfg.Logger}
	if bm.logger == nil {
		bm.logger = zap.NewNop()
	}

	counters := []struct {
		dst        **Counter
		name, desc string
		unit       string
	}{
		{&bm.invoicesCreated, "clubledger_invoices_created_total", "Invoices created", "{invoices}"},
		{&bm.invoicesCancelled, "clubledger_invoices_cancelled_total", "Invoices cancelled", "{invoices}"},
		{&bm.payments, "clubledger_payments_total", "Completed invoice payments", "{payments}"},
		{&bm.paymentsFailed, "clubledger_payments_failed_total", "Failed invoice payments", "{payments}"},
		{&bm.refunds, "clubledger_refunds_total", "Completed refunds with credit notes", "{refunds}"},
		{&bm.couponRedemptions, "clubledger_coupon_redemptions_total", "Coupon redemptions", "{redemptions}"},
		{&bm.transitions, "clubledger_membership_transitions_total", "Membership lifecycle transitions", "{transitions}"},
		{&bm.webhooks, "clubledger_webhooks_total", "Webhook deliveries by outcome", "{deliveries}"},
	}
	var err error
	for _, c := range counters {
		if *c.dst, err = NewCounter(cfg.Meter, c.name, c.desc, c.unit); err != nil {
			return nil, err
		}
	}

	if bm.paymentAmount, err = NewFloatCounter(cfg.Meter, "clubledger_payment_amount_total", "Sum of completed payment amounts", "{currency}"); err != nil {
		return nil, err
	}
	if bm.refundAmount, err = NewFloatCounter(cfg.Meter, "clubledger_refund_amount_total", "Sum of completed refund amounts", "{currency}"); err != nil {
		return nil, err
	}
	if bm.webhookDuration, err = NewHistogram(cfg.Meter, "clubledger_webhook_duration_seconds",
		"Time to process a webhook delivery", "s", WebhookDurationBuckets...); err != nil {
		return nil, err
	}
	return bm, nil
}

// EventTypes lists the domain events BillingMetrics counts
func (bm *BillingMetrics) EventTypes() []string {
	return []string{
		billing.EventTypeInvoiceCreated,
		billing.EventTypeInvoiceCancelled,
		billing.EventTypePaymentRecorded,
		billing.EventTypePaymentFailed,
		billing.EventTypeRefundRecorded,
		billing.EventTypeCouponRedeemed,
		membership.EventTypeMembershipTransitioned,
	}
}

// Handle records one committed domain event
func (bm *BillingMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	tenant := AttrTenantID.String(event.TenantID().String())

	switch e := event.(type) {
	case *billing.InvoiceCreatedEvent:
		bm.invoicesCreated.Inc(ctx, tenant)
	case *billing.InvoiceCancelledEvent:
		bm.invoicesCancelled.Inc(ctx, tenant)
	case *billing.PaymentRecordedEvent:
		attrs := []attribute.KeyValue{tenant, AttrPaymentMethod.String(string(e.Method)), AttrInvoiceStatus.String(string(e.Status))}
		bm.payments.Inc(ctx, attrs...)
		bm.paymentAmount.Add(ctx, e.Amount.InexactFloat64(), tenant, AttrPaymentMethod.String(string(e.Method)))
	case *billing.PaymentFailedEvent:
		bm.paymentsFailed.Inc(ctx, tenant)
	case *billing.RefundRecordedEvent:
		bm.refunds.Inc(ctx, tenant, AttrInvoiceStatus.String(string(e.Status)))
		bm.refundAmount.Add(ctx, e.Amount.InexactFloat64(), tenant)
	case *billing.CouponRedeemedEvent:
		bm.couponRedemptions.Inc(ctx, tenant, AttrCouponCode.String(e.Code))
	case *membership.TransitionedEvent:
		bm.transitions.Inc(ctx, tenant, AttrTransition.String(string(e.Transition)))
	default:
		bm.logger.Debug("Unhandled event in billing metrics", zap.String("event_type", event.EventType()))
	}
	return nil
}

// WebhookHandled records a webhook delivery outcome and its latency
func (bm *BillingMetrics) WebhookHandled(ctx context.Context, gateway, eventType, outcome string, elapsed time.Duration) {
	attrs := []attribute.KeyValue{
		AttrGateway.String(gateway),
		AttrEventType.String(eventType),
		AttrOutcome.String(outcome),
	}
	bm.webhooks.Inc(ctx, attrs...)
	bm.webhookDuration.RecordDuration(ctx, elapsed, AttrGateway.String(gateway), AttrOutcome.String(outcome))
}

var _ shared.EventHandler = (*BillingMetrics)(nil)

// ErrMeterNil is returned when a metrics constructor gets no meter
var ErrMeterNil = &MetricsError{Op: "NewBillingMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics setup error
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
