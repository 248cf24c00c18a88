package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceRefund is an append-only refund row carrying a credit note number
type InvoiceRefund struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	InvoiceID        uuid.UUID
	PaymentID        *uuid.UUID
	Amount           decimal.Decimal
	Method           PaymentMethod
	Reason           string
	CreditNoteNumber string
	GatewayRefundID  string
	Status           EntryStatus
	RecordedBy       string
	CreatedAt        time.Time
}

// RefundRequest describes a refund before it is checked against the ledger
type RefundRequest struct {
	Amount          decimal.Decimal
	Method          PaymentMethod
	Reason          string
	GatewayRefundID string
	PaymentID       *uuid.UUID
}

// newCompletedRefund builds the row; the bound check lives on Invoice.AddRefund
func newCompletedRefund(invoice *Invoice, req RefundRequest, actorID string) (*InvoiceRefund, error) {
	if err := ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if !req.Method.IsValid() {
		return nil, ErrInvalidMethod
	}
	now := time.Now().UTC()
	id := uuid.New()
	return &InvoiceRefund{
		ID:               id,
		TenantID:         invoice.TenantID,
		InvoiceID:        invoice.ID,
		PaymentID:        req.PaymentID,
		Amount:           req.Amount,
		Method:           req.Method,
		Reason:           strings.TrimSpace(req.Reason),
		CreditNoteNumber: CreditNoteNumber(id, now),
		GatewayRefundID:  req.GatewayRefundID,
		Status:           EntryStatusCompleted,
		RecordedBy:       actorID,
		CreatedAt:        now,
	}, nil
}

// CreditNoteNumber derives the accounting reference of a refund from its id
// and issue date, e.g. CN-20240131-9F86D081.
func CreditNoteNumber(refundID uuid.UUID, issuedAt time.Time) string {
	hex := strings.ReplaceAll(refundID.String(), "-", "")
	return fmt.Sprintf("CN-%s-%s", issuedAt.UTC().Format("20060102"), strings.ToUpper(hex[:8]))
}

// IsCompleted reports whether the refund counts toward totals
func (r *InvoiceRefund) IsCompleted() bool {
	return r.Status == EntryStatusCompleted
}

// NewFailedRefund records a refund the gateway reported as failed.
// It never affects totals.
func NewFailedRefund(invoice *Invoice, amount decimal.Decimal, method PaymentMethod, gatewayRefundID, reason, actorID string) *InvoiceRefund {
	now := time.Now().UTC()
	id := uuid.New()
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return &InvoiceRefund{
		ID:               id,
		TenantID:         invoice.TenantID,
		InvoiceID:        invoice.ID,
		Amount:           amount,
		Method:           method,
		Reason:           reason,
		CreditNoteNumber: CreditNoteNumber(id, now),
		GatewayRefundID:  gatewayRefundID,
		Status:           EntryStatusFailed,
		RecordedBy:       actorID,
		CreatedAt:        now,
	}
}
