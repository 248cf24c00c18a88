// Package gateway adapts payment provider webhooks to the billing
// PaymentGateway port.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

// StripeName is the gateway key used in webhook URLs
const StripeName = "stripe"

// Metadata keys read from PaymentIntent and Checkout Session metadata
const (
	MetadataInvoiceID = "invoice_id"
	MetadataOrderID   = "order_id"
)

// Stripe event types the ledger reacts to
const (
	EventPaymentIntentSucceeded     = "payment_intent.succeeded"
	EventPaymentIntentPaymentFailed = "payment_intent.payment_failed"
	EventCheckoutSessionCompleted   = "checkout.session.completed"
	EventChargeRefunded             = "charge.refunded"
	EventRefundCreated              = "refund.created"
	EventRefundUpdated              = "refund.updated"
	EventRefundFailed               = "refund.failed"
)

// zeroDecimalCurrencies are charged in whole units rather than cents
var zeroDecimalCurrencies = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true, "KMF": true,
	"KRW": true, "MGA": true, "PYG": true, "RWF": true, "UGX": true, "VND": true,
	"VUV": true, "XAF": true, "XOF": true, "XPF": true,
}

// StripeConfig holds the webhook settings for Stripe
type StripeConfig struct {
	// WebhookSecret is the endpoint signing secret (whsec_...). Empty
	// disables verification.
	WebhookSecret string

	// Tolerance bounds the age of the signature timestamp. Zero accepts
	// any timestamp.
	Tolerance time.Duration
}

// Stripe verifies Stripe-Signature headers and decodes Stripe event
// envelopes into ledger terms.
type Stripe struct {
	config StripeConfig
}

// NewStripe creates a new Stripe gateway
func NewStripe(cfg StripeConfig) *Stripe {
	return &Stripe{config: cfg}
}

var _ billing.PaymentGateway = (*Stripe)(nil)

// Name returns the gateway key
func (s *Stripe) Name() string { return StripeName }

// Verify checks the "t=...,v1=..." header. The v1 value is an HMAC-SHA256
// of "{t}.{payload}" compared in constant time.
func (s *Stripe) Verify(payload []byte, signatureHeader string) (bool, error) {
	if s.config.WebhookSecret == "" {
		return false, nil
	}
	var err error
	if s.config.Tolerance > 0 {
		err = webhook.ValidatePayloadWithTolerance(payload, signatureHeader, s.config.WebhookSecret, s.config.Tolerance)
	} else {
		err = webhook.ValidatePayloadIgnoringTolerance(payload, signatureHeader, s.config.WebhookSecret)
	}
	if err != nil {
		return false, fmt.Errorf("stripe: %w", err)
	}
	return true, nil
}

// Parse decodes a Stripe event. Types the ledger does not handle decode
// to GatewayIgnored.
func (s *Stripe) Parse(payload []byte) (*billing.GatewayEvent, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("stripe: decode event: %w", err)
	}
	if event.ID == "" || event.Type == "" {
		return nil, errors.New("stripe: event id and type are required")
	}

	out := &billing.GatewayEvent{
		ID:   event.ID,
		Type: string(event.Type),
		Kind: billing.GatewayIgnored,
	}
	if event.Data == nil {
		return out, nil
	}

	var err error
	switch out.Type {
	case EventPaymentIntentSucceeded, EventPaymentIntentPaymentFailed:
		err = decodePaymentIntent(event.Data.Raw, out)
	case EventCheckoutSessionCompleted:
		err = decodeCheckoutSession(event.Data.Raw, out)
	case EventChargeRefunded:
		err = decodeCharge(event.Data.Raw, out)
	case EventRefundCreated, EventRefundUpdated, EventRefundFailed:
		err = decodeRefund(event.Data.Raw, out)
	}
	if err != nil {
		return nil, fmt.Errorf("stripe: decode %s: %w", out.Type, err)
	}
	return out, nil
}

func decodePaymentIntent(raw json.RawMessage, out *billing.GatewayEvent) error {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(raw, &pi); err != nil {
		return err
	}
	invoiceID, err := metadataInvoiceID(pi.Metadata)
	if err != nil {
		return err
	}
	out.InvoiceID = invoiceID
	out.Currency = strings.ToUpper(string(pi.Currency))
	out.GatewayPaymentID = pi.ID
	out.GatewayOrderID = pi.Metadata[MetadataOrderID]

	if out.Type == EventPaymentIntentPaymentFailed {
		out.Kind = billing.GatewayPaymentFailed
		out.Amount = minorToDecimal(pi.Amount, out.Currency)
		out.FailureReason = "payment failed"
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			out.FailureReason = pi.LastPaymentError.Msg
		}
		return nil
	}

	out.Kind = billing.GatewayPaymentSucceeded
	amount := pi.AmountReceived
	if amount == 0 {
		amount = pi.Amount
	}
	out.Amount = minorToDecimal(amount, out.Currency)
	return nil
}

func decodeCheckoutSession(raw json.RawMessage, out *billing.GatewayEvent) error {
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(raw, &cs); err != nil {
		return err
	}
	// async payment methods complete the session before the money arrives
	if cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil
	}
	invoiceID, err := metadataInvoiceID(cs.Metadata)
	if err != nil {
		return err
	}
	if invoiceID == nil && cs.ClientReferenceID != "" {
		id, perr := uuid.Parse(cs.ClientReferenceID)
		if perr != nil {
			return fmt.Errorf("client_reference_id is not an invoice id: %w", perr)
		}
		invoiceID = &id
	}

	out.Kind = billing.GatewayPaymentSucceeded
	out.InvoiceID = invoiceID
	out.Currency = strings.ToUpper(string(cs.Currency))
	out.Amount = minorToDecimal(cs.AmountTotal, out.Currency)
	out.GatewayOrderID = cs.ID
	out.GatewayPaymentID = cs.ID
	if cs.PaymentIntent != nil && cs.PaymentIntent.ID != "" {
		out.GatewayPaymentID = cs.PaymentIntent.ID
	}
	return nil
}

// decodeCharge uses the newest refund on the charge. Charges delivered
// without an expanded refund list cannot be attributed and are ignored;
// the matching refund.* event carries the same refund.
func decodeCharge(raw json.RawMessage, out *billing.GatewayEvent) error {
	var ch stripe.Charge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return err
	}
	if ch.Refunds == nil || len(ch.Refunds.Data) == 0 {
		return nil
	}
	latest := ch.Refunds.Data[0]
	if latest.Charge == nil {
		latest.Charge = &ch
	}
	if latest.PaymentIntent == nil {
		latest.PaymentIntent = ch.PaymentIntent
	}
	applyRefund(latest, out)
	return nil
}

func decodeRefund(raw json.RawMessage, out *billing.GatewayEvent) error {
	var r stripe.Refund
	if err := json.Unmarshal(raw, &r); err != nil {
		return err
	}
	applyRefund(&r, out)
	return nil
}

func applyRefund(r *stripe.Refund, out *billing.GatewayEvent) {
	out.Currency = strings.ToUpper(string(r.Currency))
	out.Amount = minorToDecimal(r.Amount, out.Currency)
	out.GatewayRefundID = r.ID
	switch {
	case r.PaymentIntent != nil && r.PaymentIntent.ID != "":
		out.GatewayPaymentID = r.PaymentIntent.ID
	case r.Charge != nil && r.Charge.PaymentIntent != nil:
		out.GatewayPaymentID = r.Charge.PaymentIntent.ID
	case r.Charge != nil:
		out.GatewayPaymentID = r.Charge.ID
	}

	switch r.Status {
	case stripe.RefundStatusSucceeded:
		out.Kind = billing.GatewayRefundSucceeded
	case stripe.RefundStatusFailed, stripe.RefundStatusCanceled:
		out.Kind = billing.GatewayRefundFailed
		out.FailureReason = string(r.FailureReason)
		if out.FailureReason == "" {
			out.FailureReason = "refund " + string(r.Status)
		}
	default:
		out.Kind = billing.GatewayIgnored
	}
}

func metadataInvoiceID(md map[string]string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(md[MetadataInvoiceID])
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("metadata.%s is not a uuid: %w", MetadataInvoiceID, err)
	}
	return &id, nil
}

// minorToDecimal converts Stripe's integer minor units into a decimal amount
func minorToDecimal(amount int64, currency string) decimal.Decimal {
	if zeroDecimalCurrencies[currency] {
		return decimal.NewFromInt(amount)
	}
	return decimal.New(amount, -2)
}
