package billing

import (
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeInvoice is the aggregate type for invoice events
const AggregateTypeInvoice = "Invoice"

// Event type constants
const (
	EventTypeInvoiceCreated   = "InvoiceCreated"
	EventTypePaymentRecorded  = "InvoicePaymentRecorded"
	EventTypeRefundRecorded   = "InvoiceRefundRecorded"
	EventTypeInvoiceCancelled = "InvoiceCancelled"
	EventTypePaymentFailed    = "InvoicePaymentFailed"
	EventTypeCouponRedeemed   = "CouponRedeemed"
)

// AggregateTypeCoupon is the aggregate type for coupon events
const AggregateTypeCoupon = "Coupon"

// InvoiceCreatedEvent is raised when a DRAFT invoice is issued
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCreated, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		TotalAmount:     inv.TotalAmount,
	}
}

// PaymentRecordedEvent is raised after a payment was applied and totals recomputed
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	PaymentID     uuid.UUID       `json:"payment_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	BalanceAmount decimal.Decimal `json:"balance_amount"`
	Status        InvoiceStatus   `json:"status"`
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent
func NewPaymentRecordedEvent(inv *Invoice, p *InvoicePayment) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, AggregateTypeInvoice, inv.ID, inv.TenantID),
		PaymentID:       p.ID,
		Amount:          p.Amount,
		Method:          p.Method,
		PaidAmount:      inv.PaidAmount,
		BalanceAmount:   inv.BalanceAmount,
		Status:          inv.Status,
	}
}

// RefundRecordedEvent is raised after a refund was applied and totals recomputed
type RefundRecordedEvent struct {
	shared.BaseDomainEvent
	RefundID         uuid.UUID       `json:"refund_id"`
	Amount           decimal.Decimal `json:"amount"`
	CreditNoteNumber string          `json:"credit_note_number"`
	PaidAmount       decimal.Decimal `json:"paid_amount"`
	BalanceAmount    decimal.Decimal `json:"balance_amount"`
	Status           InvoiceStatus   `json:"status"`
}

// NewRefundRecordedEvent creates a new RefundRecordedEvent
func NewRefundRecordedEvent(inv *Invoice, r *InvoiceRefund) *RefundRecordedEvent {
	return &RefundRecordedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeRefundRecorded, AggregateTypeInvoice, inv.ID, inv.TenantID),
		RefundID:         r.ID,
		Amount:           r.Amount,
		CreditNoteNumber: r.CreditNoteNumber,
		PaidAmount:       inv.PaidAmount,
		BalanceAmount:    inv.BalanceAmount,
		Status:           inv.Status,
	}
}

// InvoiceCancelledEvent is raised when an invoice is voided
type InvoiceCancelledEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string `json:"invoice_number"`
}

// NewInvoiceCancelledEvent creates a new InvoiceCancelledEvent
func NewInvoiceCancelledEvent(inv *Invoice) *InvoiceCancelledEvent {
	return &InvoiceCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCancelled, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
	}
}

// PaymentFailedEvent is raised when a gateway reports a failed payment
type PaymentFailedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID       `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
}

// NewPaymentFailedEvent creates a new PaymentFailedEvent
func NewPaymentFailedEvent(inv *Invoice, p *InvoicePayment) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentFailed, AggregateTypeInvoice, inv.ID, inv.TenantID),
		PaymentID:       p.ID,
		Amount:          p.Amount,
		Reason:          p.FailureReason,
	}
}

// CouponRedeemedEvent is raised after a redemption was counted
type CouponRedeemedEvent struct {
	shared.BaseDomainEvent
	Code           string          `json:"code"`
	UsageID        uuid.UUID       `json:"usage_id"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// NewCouponRedeemedEvent creates a new CouponRedeemedEvent
func NewCouponRedeemedEvent(c *Coupon, u *CouponUsage) *CouponRedeemedEvent {
	return &CouponRedeemedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCouponRedeemed, AggregateTypeCoupon, c.ID, c.TenantID),
		Code:            c.Code,
		UsageID:         u.ID,
		DiscountAmount:  u.DiscountAmount,
	}
}
