package billing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GatewayEventKind is what a gateway event means for the ledger
type GatewayEventKind string

const (
	GatewayPaymentSucceeded GatewayEventKind = "PAYMENT_SUCCEEDED"
	GatewayPaymentFailed    GatewayEventKind = "PAYMENT_FAILED"
	GatewayRefundSucceeded  GatewayEventKind = "REFUND_SUCCEEDED"
	GatewayRefundFailed     GatewayEventKind = "REFUND_FAILED"
	GatewayIgnored          GatewayEventKind = "IGNORED"
)

// GatewayEvent is a verified gateway delivery decoded into ledger terms.
// InvoiceID is set for payment events whose metadata names the invoice;
// refunds are located through GatewayPaymentID instead.
type GatewayEvent struct {
	ID               string
	Type             string
	Kind             GatewayEventKind
	InvoiceID        *uuid.UUID
	Amount           decimal.Decimal
	Currency         string
	GatewayOrderID   string
	GatewayPaymentID string
	GatewayRefundID  string
	FailureReason    string
}

// PaymentGateway verifies and decodes the deliveries of one payment provider
type PaymentGateway interface {
	// Name is the lowercase gateway key used in webhook URLs and dedupe keys
	Name() string

	// Verify checks the signature header against payload. It returns
	// false, nil when no secret is configured and verification is skipped.
	Verify(payload []byte, signatureHeader string) (bool, error)

	// Parse decodes payload. Unknown event types decode to GatewayIgnored.
	Parse(payload []byte) (*GatewayEvent, error)
}
