package billing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryStatus is the outcome of a payment or refund row.
// Only COMPLETED rows count toward invoice totals.
type EntryStatus string

const (
	EntryStatusCompleted EntryStatus = "COMPLETED"
	EntryStatusFailed    EntryStatus = "FAILED"
)

// IsValid checks if the status is a valid EntryStatus
func (s EntryStatus) IsValid() bool {
	return s == EntryStatusCompleted || s == EntryStatusFailed
}

// PaymentMethod is how money moved
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodOnline       PaymentMethod = "ONLINE"
	PaymentMethodWallet       PaymentMethod = "WALLET"
)

// IsValid checks if the method is a known PaymentMethod
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodBankTransfer,
		PaymentMethodOnline, PaymentMethodWallet:
		return true
	}
	return false
}

// ParsePaymentMethod normalizes user input into a PaymentMethod
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(raw)))
	if !m.IsValid() {
		return "", ErrInvalidMethod.WithMessage("unknown payment method %q", raw)
	}
	return m, nil
}

// GatewayRefs identifies a payment at the gateway. Both fields are optional.
type GatewayRefs struct {
	OrderID   string
	PaymentID string
}

// InvoicePayment is an append-only payment row. A COMPLETED payment is
// never updated or deleted.
type InvoicePayment struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	InvoiceID        uuid.UUID
	Amount           decimal.Decimal
	Method           PaymentMethod
	GatewayOrderID   string
	GatewayPaymentID string
	Status           EntryStatus
	FailureReason    string
	RecordedBy       string
	CreatedAt        time.Time
}

// NewCompletedPayment creates a COMPLETED payment for invoice
func NewCompletedPayment(invoice *Invoice, amount decimal.Decimal, method PaymentMethod, refs GatewayRefs, actorID string) (*InvoicePayment, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	if !method.IsValid() {
		return nil, ErrInvalidMethod
	}
	return &InvoicePayment{
		ID:               uuid.New(),
		TenantID:         invoice.TenantID,
		InvoiceID:        invoice.ID,
		Amount:           amount,
		Method:           method,
		GatewayOrderID:   refs.OrderID,
		GatewayPaymentID: refs.PaymentID,
		Status:           EntryStatusCompleted,
		RecordedBy:       actorID,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// NewFailedPayment creates a FAILED stub. It records the gateway's failure
// reason and never affects totals.
func NewFailedPayment(invoice *Invoice, amount decimal.Decimal, method PaymentMethod, refs GatewayRefs, reason, actorID string) *InvoicePayment {
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return &InvoicePayment{
		ID:               uuid.New(),
		TenantID:         invoice.TenantID,
		InvoiceID:        invoice.ID,
		Amount:           amount,
		Method:           method,
		GatewayOrderID:   refs.OrderID,
		GatewayPaymentID: refs.PaymentID,
		Status:           EntryStatusFailed,
		FailureReason:    reason,
		RecordedBy:       actorID,
		CreatedAt:        time.Now().UTC(),
	}
}

// IsCompleted reports whether the payment counts toward totals
func (p *InvoicePayment) IsCompleted() bool {
	return p.Status == EntryStatusCompleted
}
