package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
// Columns are declared directly so the (tenant_id, invoice_number) unique
// index can span both.
type InvoiceModel struct {
	ID            uuid.UUID             `gorm:"type:uuid;primary_key"`
	TenantID      uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:idx_invoices_tenant_number,priority:1"`
	BranchID      *uuid.UUID            `gorm:"type:uuid;index"`
	InvoiceNumber string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoices_tenant_number,priority:2"`
	MemberID      *uuid.UUID            `gorm:"type:uuid;index"`
	Currency      string                `gorm:"type:char(3);not null;default:'USD'"`
	TotalAmount   decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	PaidAmount    decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	BalanceAmount decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Status        billing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	DueDate       *time.Time
	Version       int       `gorm:"not null;default:1"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	return &billing.Invoice{
		TenantAggregateRoot: shared.TenantAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
				Version:    m.Version,
			},
			TenantID: m.TenantID,
			BranchID: shared.CloneUUID(m.BranchID),
		},
		InvoiceNumber: m.InvoiceNumber,
		MemberID:      shared.CloneUUID(m.MemberID),
		Currency:      m.Currency,
		TotalAmount:   m.TotalAmount,
		PaidAmount:    m.PaidAmount,
		BalanceAmount: m.BalanceAmount,
		Status:        m.Status,
		DueDate:       m.DueDate,
	}
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.ID = inv.ID
	m.TenantID = inv.TenantID
	m.BranchID = shared.CloneUUID(inv.BranchID)
	m.InvoiceNumber = inv.InvoiceNumber
	m.MemberID = shared.CloneUUID(inv.MemberID)
	m.Currency = inv.Currency
	m.TotalAmount = inv.TotalAmount
	m.PaidAmount = inv.PaidAmount
	m.BalanceAmount = inv.BalanceAmount
	m.Status = inv.Status
	m.DueDate = inv.DueDate
	m.Version = inv.Version
	m.CreatedAt = inv.CreatedAt
	m.UpdatedAt = inv.UpdatedAt
}

// InvoiceModelFromDomain creates a new InvoiceModel from a domain Invoice
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// InvoiceSequenceModel holds the last issued invoice number per tenant and day
type InvoiceSequenceModel struct {
	TenantID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Day       string    `gorm:"type:varchar(8);primaryKey"`
	LastValue int       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceSequenceModel) TableName() string {
	return "invoice_sequences"
}

// InvoicePaymentModel is the append-only payment row
type InvoicePaymentModel struct {
	ID               uuid.UUID             `gorm:"type:uuid;primary_key"`
	TenantID         uuid.UUID             `gorm:"type:uuid;not null;index"`
	InvoiceID        uuid.UUID             `gorm:"type:uuid;not null;index"`
	Amount           decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Method           billing.PaymentMethod `gorm:"type:varchar(20);not null"`
	GatewayOrderID   string                `gorm:"type:varchar(100)"`
	GatewayPaymentID string                `gorm:"type:varchar(100);index"`
	Status           billing.EntryStatus   `gorm:"type:varchar(20);not null;index"`
	FailureReason    string                `gorm:"type:varchar(500)"`
	RecordedBy       string                `gorm:"type:varchar(100);not null"`
	CreatedAt        time.Time             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoicePaymentModel) TableName() string {
	return "invoice_payments"
}

// ToDomain converts the persistence model to a domain InvoicePayment
func (m *InvoicePaymentModel) ToDomain() billing.InvoicePayment {
	return billing.InvoicePayment{
		ID:               m.ID,
		TenantID:         m.TenantID,
		InvoiceID:        m.InvoiceID,
		Amount:           m.Amount,
		Method:           m.Method,
		GatewayOrderID:   m.GatewayOrderID,
		GatewayPaymentID: m.GatewayPaymentID,
		Status:           m.Status,
		FailureReason:    m.FailureReason,
		RecordedBy:       m.RecordedBy,
		CreatedAt:        m.CreatedAt,
	}
}

// InvoicePaymentModelFromDomain creates the row for p
func InvoicePaymentModelFromDomain(p *billing.InvoicePayment) *InvoicePaymentModel {
	return &InvoicePaymentModel{
		ID:               p.ID,
		TenantID:         p.TenantID,
		InvoiceID:        p.InvoiceID,
		Amount:           p.Amount,
		Method:           p.Method,
		GatewayOrderID:   p.GatewayOrderID,
		GatewayPaymentID: p.GatewayPaymentID,
		Status:           p.Status,
		FailureReason:    p.FailureReason,
		RecordedBy:       p.RecordedBy,
		CreatedAt:        p.CreatedAt,
	}
}

// InvoiceRefundModel is the append-only refund row
type InvoiceRefundModel struct {
	ID               uuid.UUID             `gorm:"type:uuid;primary_key"`
	TenantID         uuid.UUID             `gorm:"type:uuid;not null;index"`
	InvoiceID        uuid.UUID             `gorm:"type:uuid;not null;index"`
	PaymentID        *uuid.UUID            `gorm:"type:uuid"`
	Amount           decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Method           billing.PaymentMethod `gorm:"type:varchar(20);not null"`
	Reason           string                `gorm:"type:varchar(500)"`
	CreditNoteNumber string                `gorm:"type:varchar(30);not null;uniqueIndex"`
	GatewayRefundID  string                `gorm:"type:varchar(100);index"`
	Status           billing.EntryStatus   `gorm:"type:varchar(20);not null;index"`
	RecordedBy       string                `gorm:"type:varchar(100);not null"`
	CreatedAt        time.Time             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceRefundModel) TableName() string {
	return "invoice_refunds"
}

// ToDomain converts the persistence model to a domain InvoiceRefund
func (m *InvoiceRefundModel) ToDomain() billing.InvoiceRefund {
	return billing.InvoiceRefund{
		ID:               m.ID,
		TenantID:         m.TenantID,
		InvoiceID:        m.InvoiceID,
		PaymentID:        shared.CloneUUID(m.PaymentID),
		Amount:           m.Amount,
		Method:           m.Method,
		Reason:           m.Reason,
		CreditNoteNumber: m.CreditNoteNumber,
		GatewayRefundID:  m.GatewayRefundID,
		Status:           m.Status,
		RecordedBy:       m.RecordedBy,
		CreatedAt:        m.CreatedAt,
	}
}

// InvoiceRefundModelFromDomain creates the row for r
func InvoiceRefundModelFromDomain(r *billing.InvoiceRefund) *InvoiceRefundModel {
	return &InvoiceRefundModel{
		ID:               r.ID,
		TenantID:         r.TenantID,
		InvoiceID:        r.InvoiceID,
		PaymentID:        shared.CloneUUID(r.PaymentID),
		Amount:           r.Amount,
		Method:           r.Method,
		Reason:           r.Reason,
		CreditNoteNumber: r.CreditNoteNumber,
		GatewayRefundID:  r.GatewayRefundID,
		Status:           r.Status,
		RecordedBy:       r.RecordedBy,
		CreatedAt:        r.CreatedAt,
	}
}

// WebhookEventModel is the webhook audit row. The composite unique index
// on (gateway, event_id) is the authoritative dedupe key; rejected
// deliveries store a NULL event_id and never collide.
type WebhookEventModel struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key"`
	TenantID     *uuid.UUID `gorm:"type:uuid;index"`
	Gateway      string     `gorm:"type:varchar(30);not null;uniqueIndex:idx_webhook_events_gateway_event,priority:1"`
	EventType    string     `gorm:"type:varchar(100)"`
	EventID      *string    `gorm:"type:varchar(255);uniqueIndex:idx_webhook_events_gateway_event,priority:2"`
	Payload      string     `gorm:"type:text;not null"`
	Signature    string     `gorm:"type:varchar(500)"`
	IsVerified   bool       `gorm:"not null;default:false"`
	IsProcessed  bool       `gorm:"not null;default:false;index"`
	ProcessedAt  *time.Time
	ErrorMessage string    `gorm:"type:text"`
	Attempts     int       `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (WebhookEventModel) TableName() string {
	return "webhook_events"
}

// ToDomain converts the persistence model to a domain WebhookEvent
func (m *WebhookEventModel) ToDomain() *billing.WebhookEvent {
	return &billing.WebhookEvent{
		ID:           m.ID,
		TenantID:     shared.CloneUUID(m.TenantID),
		Gateway:      m.Gateway,
		EventType:    m.EventType,
		EventID:      m.EventID,
		Payload:      m.Payload,
		Signature:    m.Signature,
		IsVerified:   m.IsVerified,
		IsProcessed:  m.IsProcessed,
		ProcessedAt:  m.ProcessedAt,
		ErrorMessage: m.ErrorMessage,
		Attempts:     m.Attempts,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// WebhookEventModelFromDomain creates the row for e
func WebhookEventModelFromDomain(e *billing.WebhookEvent) *WebhookEventModel {
	return &WebhookEventModel{
		ID:           e.ID,
		TenantID:     shared.CloneUUID(e.TenantID),
		Gateway:      e.Gateway,
		EventType:    e.EventType,
		EventID:      e.EventID,
		Payload:      e.Payload,
		Signature:    e.Signature,
		IsVerified:   e.IsVerified,
		IsProcessed:  e.IsProcessed,
		ProcessedAt:  e.ProcessedAt,
		ErrorMessage: e.ErrorMessage,
		Attempts:     e.Attempts,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

// UUIDList stores a list of ids as a JSON array
type UUIDList []uuid.UUID

// Value implements driver.Valuer
func (l UUIDList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]uuid.UUID(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (l *UUIDList) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into UUIDList", value)
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(raw, &ids); err != nil {
		return err
	}
	*l = ids
	return nil
}

// CouponModel is the persistence model for coupons
type CouponModel struct {
	ID                uuid.UUID            `gorm:"type:uuid;primary_key"`
	TenantID          uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_coupons_tenant_code,priority:1"`
	Code              string               `gorm:"type:varchar(50);not null;uniqueIndex:idx_coupons_tenant_code,priority:2"`
	Description       string               `gorm:"type:varchar(500)"`
	DiscountType      billing.DiscountType `gorm:"type:varchar(20);not null"`
	DiscountValue     decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	MaxDiscountAmount *decimal.Decimal     `gorm:"type:decimal(18,4)"`
	MinPurchaseAmount decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	ValidFrom         time.Time            `gorm:"not null"`
	ValidUntil        *time.Time
	MaxUsageCount     *int
	CurrentUsageCount int                  `gorm:"not null;default:0"`
	ApplicablePlans   UUIDList             `gorm:"type:jsonb;not null;default:'[]'"`
	Status            billing.CouponStatus `gorm:"type:varchar(20);not null;default:'ACTIVE'"`
	CreatedAt         time.Time            `gorm:"not null"`
	UpdatedAt         time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CouponModel) TableName() string {
	return "coupons"
}

// ToDomain converts the persistence model to a domain Coupon
func (m *CouponModel) ToDomain() *billing.Coupon {
	return &billing.Coupon{
		ID:                m.ID,
		TenantID:          m.TenantID,
		Code:              m.Code,
		Description:       m.Description,
		DiscountType:      m.DiscountType,
		DiscountValue:     m.DiscountValue,
		MaxDiscountAmount: m.MaxDiscountAmount,
		MinPurchaseAmount: m.MinPurchaseAmount,
		ValidFrom:         m.ValidFrom,
		ValidUntil:        m.ValidUntil,
		MaxUsageCount:     m.MaxUsageCount,
		CurrentUsageCount: m.CurrentUsageCount,
		ApplicablePlans:   append([]uuid.UUID(nil), m.ApplicablePlans...),
		Status:            m.Status,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// CouponModelFromDomain creates the row for c
func CouponModelFromDomain(c *billing.Coupon) *CouponModel {
	return &CouponModel{
		ID:                c.ID,
		TenantID:          c.TenantID,
		Code:              c.Code,
		Description:       c.Description,
		DiscountType:      c.DiscountType,
		DiscountValue:     c.DiscountValue,
		MaxDiscountAmount: c.MaxDiscountAmount,
		MinPurchaseAmount: c.MinPurchaseAmount,
		ValidFrom:         c.ValidFrom,
		ValidUntil:        c.ValidUntil,
		MaxUsageCount:     c.MaxUsageCount,
		CurrentUsageCount: c.CurrentUsageCount,
		ApplicablePlans:   UUIDList(c.ApplicablePlans),
		Status:            c.Status,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

// CouponUsageModel is the immutable redemption row
type CouponUsageModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	CouponID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	MemberID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	PlanID         *uuid.UUID      `gorm:"type:uuid"`
	InvoiceID      *uuid.UUID      `gorm:"type:uuid"`
	PurchaseAmount decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UsedBy         string          `gorm:"type:varchar(100);not null"`
	CreatedAt      time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CouponUsageModel) TableName() string {
	return "coupon_usages"
}

// CouponUsageModelFromDomain creates the row for u
func CouponUsageModelFromDomain(u *billing.CouponUsage) *CouponUsageModel {
	return &CouponUsageModel{
		ID:             u.ID,
		TenantID:       u.TenantID,
		CouponID:       u.CouponID,
		MemberID:       u.MemberID,
		PlanID:         shared.CloneUUID(u.PlanID),
		InvoiceID:      shared.CloneUUID(u.InvoiceID),
		PurchaseAmount: u.PurchaseAmount,
		DiscountAmount: u.DiscountAmount,
		UsedBy:         u.UsedBy,
		CreatedAt:      u.CreatedAt,
	}
}
