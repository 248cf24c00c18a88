package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusRefunded      InvoiceStatus = "REFUNDED"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusPartiallyPaid, InvoiceStatusPaid,
		InvoiceStatusRefunded, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// CanAcceptPayment returns true if payments can be recorded in this status
func (s InvoiceStatus) CanAcceptPayment() bool {
	return s != InvoiceStatusRefunded && s != InvoiceStatusCancelled
}

// Invoice is the ledger aggregate. PaidAmount, BalanceAmount and Status are
// derived from the payment and refund history and only change via Reconcile.
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber string
	MemberID      *uuid.UUID
	Currency      string
	TotalAmount   decimal.Decimal
	PaidAmount    decimal.Decimal
	BalanceAmount decimal.Decimal
	Status        InvoiceStatus
	DueDate       *time.Time
}

// FormatInvoiceNumber renders {prefix}-{YYYYMMDD}-{seq}, seq zero-padded to four digits
func FormatInvoiceNumber(prefix string, day time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, day.UTC().Format("20060102"), seq)
}

// NewInvoice creates a DRAFT invoice with nothing paid
func NewInvoice(tenantID uuid.UUID, branchID *uuid.UUID, number string, memberID *uuid.UUID, total decimal.Decimal, dueDate *time.Time) (*Invoice, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrUnauthorized.WithMessage("tenant is required")
	}
	if number == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if err := ValidateAmount(total); err != nil {
		return nil, err
	}

	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, branchID),
		InvoiceNumber:       number,
		Currency:            DefaultCurrency,
		MemberID:            shared.CloneUUID(memberID),
		TotalAmount:         total,
		PaidAmount:          decimal.Zero,
		BalanceAmount:       total,
		Status:              InvoiceStatusDraft,
		DueDate:             dueDate,
	}
	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))
	return inv, nil
}

// SetCurrency sets the invoice currency. Only a DRAFT invoice with nothing
// recorded against it may change currency.
func (inv *Invoice) SetCurrency(code string) error {
	normalized, err := NormalizeCurrency(code)
	if err != nil {
		return err
	}
	if inv.Status != InvoiceStatusDraft || !inv.PaidAmount.IsZero() {
		return shared.ErrInvalidState.WithMessage("currency of invoice %s is fixed", inv.InvoiceNumber)
	}
	inv.Currency = normalized
	return nil
}

// CheckCurrency rejects money in a currency other than the invoice's.
// An empty code is accepted, as manual entries carry none.
func (inv *Invoice) CheckCurrency(code string) error {
	if strings.TrimSpace(code) == "" {
		return nil
	}
	normalized, err := NormalizeCurrency(code)
	if err != nil {
		return err
	}
	if normalized != inv.Currency {
		return ErrCurrencyMismatch.WithMessage("invoice %s is in %s, got %s", inv.InvoiceNumber, inv.Currency, normalized)
	}
	return nil
}

// History is the full payment and refund record of one invoice
type History struct {
	Payments []InvoicePayment
	Refunds  []InvoiceRefund
}

// Totals are the sums derived from a History
type Totals struct {
	GrossPaid decimal.Decimal
	Refunded  decimal.Decimal
}

// NetPaid is gross paid minus completed refunds
func (t Totals) NetPaid() decimal.Decimal {
	return t.GrossPaid.Sub(t.Refunded)
}

// Totals sums COMPLETED rows. The result depends only on the set of rows,
// never on their order.
func (h History) Totals() Totals {
	t := Totals{GrossPaid: decimal.Zero, Refunded: decimal.Zero}
	for i := range h.Payments {
		if h.Payments[i].IsCompleted() {
			t.GrossPaid = t.GrossPaid.Add(h.Payments[i].Amount)
		}
	}
	for i := range h.Refunds {
		if h.Refunds[i].IsCompleted() {
			t.Refunded = t.Refunded.Add(h.Refunds[i].Amount)
		}
	}
	return t
}

// EntryKind names the ledger entry a status is derived after
type EntryKind int

const (
	EntryPayment EntryKind = iota
	EntryRefund
)

// LastEntry reports the kind of the most recent COMPLETED row. A refund
// wins a timestamp tie since it can only follow a payment.
func (h History) LastEntry() EntryKind {
	var lastPayment, lastRefund time.Time
	var hasRefund bool
	for i := range h.Payments {
		if h.Payments[i].IsCompleted() && h.Payments[i].CreatedAt.After(lastPayment) {
			lastPayment = h.Payments[i].CreatedAt
		}
	}
	for i := range h.Refunds {
		if !h.Refunds[i].IsCompleted() {
			continue
		}
		hasRefund = true
		if h.Refunds[i].CreatedAt.After(lastRefund) {
			lastRefund = h.Refunds[i].CreatedAt
		}
	}
	if hasRefund && !lastRefund.Before(lastPayment) {
		return EntryRefund
	}
	return EntryPayment
}

// DeriveStatus maps invoice total and history totals to a status.
// CANCELLED is sticky. After a refund the invoice is REFUNDED once
// everything paid went back, PARTIALLY_PAID while money remains and DRAFT
// otherwise; PAID is only reachable after a payment.
func DeriveStatus(current InvoiceStatus, total decimal.Decimal, t Totals, last EntryKind) InvoiceStatus {
	if current == InvoiceStatusCancelled {
		return current
	}
	net := t.NetPaid()
	if last == EntryRefund && t.Refunded.IsPositive() {
		switch {
		case t.Refunded.GreaterThanOrEqual(t.GrossPaid):
			return InvoiceStatusRefunded
		case net.IsPositive():
			return InvoiceStatusPartiallyPaid
		default:
			return InvoiceStatusDraft
		}
	}
	switch {
	case t.GrossPaid.IsPositive() && total.Sub(net).LessThanOrEqual(decimal.Zero):
		return InvoiceStatusPaid
	case net.IsPositive():
		return InvoiceStatusPartiallyPaid
	default:
		return InvoiceStatusDraft
	}
}

// Reconcile recomputes PaidAmount, BalanceAmount and Status from h.
// This is the only code path that writes those fields. PaidAmount is net
// of refunds on every path, so BalanceAmount is total minus net paid.
func (inv *Invoice) Reconcile(h History) Totals {
	return inv.reconcile(h, h.LastEntry())
}

func (inv *Invoice) reconcile(h History, last EntryKind) Totals {
	t := h.Totals()
	inv.PaidAmount = t.NetPaid()
	inv.BalanceAmount = inv.TotalAmount.Sub(inv.PaidAmount)
	inv.Status = DeriveStatus(inv.Status, inv.TotalAmount, t, last)
	inv.Touch()
	return t
}

// AddPayment appends a COMPLETED payment to h and reconciles.
// The returned history includes the new payment.
func (inv *Invoice) AddPayment(h History, p *InvoicePayment) (History, error) {
	if !inv.Status.CanAcceptPayment() {
		return h, ErrInvoiceNotPayable.WithMessage("invoice %s is %s", inv.InvoiceNumber, inv.Status)
	}
	if p.InvoiceID != inv.ID || !p.IsCompleted() {
		return h, shared.NewDomainError("INVALID_PAYMENT", "Payment does not belong to this invoice")
	}

	next := History{
		Payments: append(append([]InvoicePayment(nil), h.Payments...), *p),
		Refunds:  h.Refunds,
	}
	inv.reconcile(next, EntryPayment)
	inv.IncrementVersion()
	inv.AddDomainEvent(NewPaymentRecordedEvent(inv, p))
	return next, nil
}

// AddRefund checks the refund bound, builds the refund row and reconciles.
// Σ completed refunds may equal but never exceed Σ completed payments.
func (inv *Invoice) AddRefund(h History, req RefundRequest, actorID string) (*InvoiceRefund, History, error) {
	t := h.Totals()
	if t.Refunded.Add(req.Amount).GreaterThan(t.GrossPaid) {
		return nil, h, ErrRefundExceedsPaid.WithMessage(
			"refund of %s exceeds refundable amount %s", req.Amount.StringFixed(2), t.NetPaid().StringFixed(2))
	}

	r, err := newCompletedRefund(inv, req, actorID)
	if err != nil {
		return nil, h, err
	}

	next := History{
		Payments: h.Payments,
		Refunds:  append(append([]InvoiceRefund(nil), h.Refunds...), *r),
	}
	inv.reconcile(next, EntryRefund)
	inv.IncrementVersion()
	inv.AddDomainEvent(NewRefundRecordedEvent(inv, r))
	return r, next, nil
}

// Cancel voids an invoice that has no money on it
func (inv *Invoice) Cancel(h History) error {
	if inv.Status == InvoiceStatusCancelled {
		return ErrInvoiceNotCancelable.WithMessage("invoice %s is already cancelled", inv.InvoiceNumber)
	}
	if !h.Totals().NetPaid().IsZero() {
		return ErrInvoiceNotCancelable.WithMessage("invoice %s has money applied", inv.InvoiceNumber)
	}
	if inv.Status == InvoiceStatusRefunded {
		return ErrInvoiceNotCancelable.WithMessage("invoice %s is refunded", inv.InvoiceNumber)
	}
	inv.Status = InvoiceStatusCancelled
	inv.Touch()
	inv.IncrementVersion()
	inv.AddDomainEvent(NewInvoiceCancelledEvent(inv))
	return nil
}
