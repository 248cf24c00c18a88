package models

import (
	"time"

	"github.com/clubledger/backend/internal/domain/membership"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemberMembershipModel is the persistence model for the MemberMembership aggregate root
type MemberMembershipModel struct {
	TenantAggregateModel
	MemberID        uuid.UUID `gorm:"type:uuid;not null;index"`
	PlanID          uuid.UUID `gorm:"type:uuid;not null;index"`
	StartDate       time.Time `gorm:"not null"`
	EndDate         time.Time `gorm:"not null"`
	OriginalEndDate *time.Time
	Status          membership.Status `gorm:"type:varchar(20);not null;default:'ACTIVE';index"`
	FreezeDays      int               `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (MemberMembershipModel) TableName() string {
	return "member_memberships"
}

// ToDomain converts the persistence model to a domain MemberMembership
func (m *MemberMembershipModel) ToDomain() *membership.MemberMembership {
	return &membership.MemberMembership{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		MemberID:            m.MemberID,
		PlanID:              m.PlanID,
		StartDate:           m.StartDate,
		EndDate:             m.EndDate,
		OriginalEndDate:     m.OriginalEndDate,
		Status:              m.Status,
		FreezeDays:          m.FreezeDays,
	}
}

// MemberMembershipModelFromDomain creates a model from a domain MemberMembership
func MemberMembershipModelFromDomain(mm *membership.MemberMembership) *MemberMembershipModel {
	m := &MemberMembershipModel{
		MemberID:        mm.MemberID,
		PlanID:          mm.PlanID,
		StartDate:       mm.StartDate,
		EndDate:         mm.EndDate,
		OriginalEndDate: mm.OriginalEndDate,
		Status:          mm.Status,
		FreezeDays:      mm.FreezeDays,
	}
	m.FromDomainTenantAggregateRoot(mm.TenantAggregateRoot)
	return m
}

// MembershipPlanModel is the persistence model for plans
type MembershipPlanModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name         string          `gorm:"type:varchar(100);not null"`
	Price        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DurationDays int             `gorm:"not null"`
	IsActive     bool            `gorm:"not null"`
	CreatedAt    time.Time       `gorm:"not null"`
	UpdatedAt    time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MembershipPlanModel) TableName() string {
	return "membership_plans"
}

// ToDomain converts the persistence model to a domain Plan
func (m *MembershipPlanModel) ToDomain() *membership.Plan {
	return &membership.Plan{
		ID:           m.ID,
		TenantID:     m.TenantID,
		Name:         m.Name,
		Price:        m.Price,
		DurationDays: m.DurationDays,
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// MembershipPlanModelFromDomain creates a model from a domain Plan
func MembershipPlanModelFromDomain(p *membership.Plan) *MembershipPlanModel {
	return &MembershipPlanModel{
		ID:           p.ID,
		TenantID:     p.TenantID,
		Name:         p.Name,
		Price:        p.Price,
		DurationDays: p.DurationDays,
		IsActive:     p.IsActive,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// MembershipLifecycleEventModel is the append-only transition audit row
type MembershipLifecycleEventModel struct {
	ID              uuid.UUID            `gorm:"type:uuid;primary_key"`
	TenantID        uuid.UUID            `gorm:"type:uuid;not null;index"`
	MembershipID    uuid.UUID            `gorm:"type:uuid;not null;index"`
	EventType       membership.EventType `gorm:"type:varchar(20);not null"`
	EffectiveDate   time.Time            `gorm:"not null"`
	DurationDays    *int
	OldPlanID       *uuid.UUID          `gorm:"type:uuid"`
	NewPlanID       *uuid.UUID          `gorm:"type:uuid"`
	Reason          string              `gorm:"type:varchar(500)"`
	RefundAmount    *decimal.Decimal    `gorm:"type:decimal(18,4)"`
	RefundReference string              `gorm:"type:varchar(100)"`
	ProrationCredit *decimal.Decimal    `gorm:"type:decimal(18,4)"`
	PreviousData    membership.Snapshot `gorm:"type:jsonb;not null"`
	PerformedBy     string              `gorm:"type:varchar(100);not null"`
	CreatedAt       time.Time           `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (MembershipLifecycleEventModel) TableName() string {
	return "membership_lifecycle_events"
}

// ToDomain converts the persistence model to a domain LifecycleEvent
func (m *MembershipLifecycleEventModel) ToDomain() membership.LifecycleEvent {
	return membership.LifecycleEvent{
		ID:              m.ID,
		TenantID:        m.TenantID,
		MembershipID:    m.MembershipID,
		EventType:       m.EventType,
		EffectiveDate:   m.EffectiveDate,
		DurationDays:    m.DurationDays,
		OldPlanID:       shared.CloneUUID(m.OldPlanID),
		NewPlanID:       shared.CloneUUID(m.NewPlanID),
		Reason:          m.Reason,
		RefundAmount:    m.RefundAmount,
		RefundReference: m.RefundReference,
		ProrationCredit: m.ProrationCredit,
		PreviousData:    m.PreviousData,
		PerformedBy:     m.PerformedBy,
		CreatedAt:       m.CreatedAt,
	}
}

// MembershipLifecycleEventModelFromDomain creates the row for e
func MembershipLifecycleEventModelFromDomain(e *membership.LifecycleEvent) *MembershipLifecycleEventModel {
	return &MembershipLifecycleEventModel{
		ID:              e.ID,
		TenantID:        e.TenantID,
		MembershipID:    e.MembershipID,
		EventType:       e.EventType,
		EffectiveDate:   e.EffectiveDate,
		DurationDays:    e.DurationDays,
		OldPlanID:       shared.CloneUUID(e.OldPlanID),
		NewPlanID:       shared.CloneUUID(e.NewPlanID),
		Reason:          e.Reason,
		RefundAmount:    e.RefundAmount,
		RefundReference: e.RefundReference,
		ProrationCredit: e.ProrationCredit,
		PreviousData:    e.PreviousData,
		PerformedBy:     e.PerformedBy,
		CreatedAt:       e.CreatedAt,
	}
}

// AllModels lists every persisted model, in dependency order
func AllModels() []any {
	return []any{
		&InvoiceModel{},
		&InvoiceSequenceModel{},
		&InvoicePaymentModel{},
		&InvoiceRefundModel{},
		&WebhookEventModel{},
		&CouponModel{},
		&CouponUsageModel{},
		&MembershipPlanModel{},
		&MemberMembershipModel{},
		&MembershipLifecycleEventModel{},
	}
}
