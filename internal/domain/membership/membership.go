// Package membership models a member's subscription to a plan and the
// freeze/resume/upgrade/cancel state machine over it.
package membership

import (
	"strings"
	"time"

	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the status of a membership
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusFrozen   Status = "FROZEN"
	StatusInactive Status = "INACTIVE"
)

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusFrozen || s == StatusInactive
}

// MaxPauseDays bounds a single freeze
const MaxPauseDays = 365

// MemberMembership is a member's entitlement to a plan between StartDate
// and EndDate. It is mutated only through the transition methods below.
type MemberMembership struct {
	shared.TenantAggregateRoot
	MemberID        uuid.UUID
	PlanID          uuid.UUID
	StartDate       time.Time
	EndDate         time.Time
	OriginalEndDate *time.Time
	Status          Status
	FreezeDays      int
}

// NewMemberMembership creates an ACTIVE membership
func NewMemberMembership(tenantID uuid.UUID, branchID *uuid.UUID, memberID, planID uuid.UUID, start, end time.Time) (*MemberMembership, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrUnauthorized.WithMessage("tenant is required")
	}
	if memberID == uuid.Nil || planID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_MEMBERSHIP", "Member and plan are required")
	}
	if !end.After(start) {
		return nil, shared.NewDomainError("INVALID_MEMBERSHIP", "End date must be after start date")
	}
	return &MemberMembership{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, branchID),
		MemberID:            memberID,
		PlanID:              planID,
		StartDate:           start,
		EndDate:             end,
		Status:              StatusActive,
	}, nil
}

// Pause freezes an ACTIVE membership and pushes EndDate out by days
func (m *MemberMembership) Pause(days int, effective time.Time, reason, actorID string) (*LifecycleEvent, error) {
	if m.Status != StatusActive {
		return nil, ErrNotActive.WithMessage("membership is %s, only ACTIVE memberships can be paused", m.Status)
	}
	if days < 1 || days > MaxPauseDays {
		return nil, ErrInvalidPauseDuration
	}

	ev := m.newEvent(EventPaused, effective, reason, actorID)
	ev.DurationDays = &days

	if m.OriginalEndDate == nil {
		original := m.EndDate
		m.OriginalEndDate = &original
	}
	m.EndDate = m.EndDate.AddDate(0, 0, days)
	m.FreezeDays += days
	m.Status = StatusFrozen
	m.touch()
	m.raise(ev)
	return ev, nil
}

// Resume reactivates a FROZEN membership. EndDate was already extended at
// pause time and is left alone.
func (m *MemberMembership) Resume(effective time.Time, reason, actorID string) (*LifecycleEvent, error) {
	if m.Status != StatusFrozen {
		return nil, ErrNotFrozen.WithMessage("membership is %s, only FROZEN memberships can be resumed", m.Status)
	}

	ev := m.newEvent(EventResumed, effective, reason, actorID)
	m.Status = StatusActive
	m.touch()
	m.raise(ev)
	return ev, nil
}

// Upgrade swaps the plan. Status and dates are unchanged; billing for the
// change is a separate checkout step. credit is whatever the configured
// proration policy computed and is only recorded.
func (m *MemberMembership) Upgrade(newPlan *Plan, effective time.Time, reason string, credit decimal.Decimal, actorID string) (*LifecycleEvent, error) {
	if m.Status == StatusInactive {
		return nil, ErrTerminated.WithMessage("membership is cancelled and cannot change plan")
	}
	if newPlan == nil || newPlan.TenantID != m.TenantID {
		return nil, ErrPlanNotFound
	}
	if newPlan.ID == m.PlanID {
		return nil, ErrSamePlan
	}

	ev := m.newEvent(EventUpgraded, effective, reason, actorID)
	oldPlan := m.PlanID
	ev.OldPlanID = &oldPlan
	newPlanID := newPlan.ID
	ev.NewPlanID = &newPlanID
	if !credit.IsZero() {
		ev.ProrationCredit = &credit
	}

	m.PlanID = newPlan.ID
	m.touch()
	m.raise(ev)
	return ev, nil
}

// CancelRequest carries the optional refund reference recorded with a cancel
type CancelRequest struct {
	EffectiveDate   time.Time
	Reason          string
	RefundAmount    *decimal.Decimal
	RefundReference string
}

// Cancel terminates the membership, ending entitlement at the effective date
func (m *MemberMembership) Cancel(req CancelRequest, actorID string) (*LifecycleEvent, error) {
	if m.Status == StatusInactive {
		return nil, ErrTerminated.WithMessage("membership is already cancelled")
	}
	if req.RefundAmount != nil && req.RefundAmount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_REFUND_AMOUNT", "Refund amount cannot be negative")
	}

	ev := m.newEvent(EventCancelled, req.EffectiveDate, req.Reason, actorID)
	ev.RefundAmount = req.RefundAmount
	ev.RefundReference = strings.TrimSpace(req.RefundReference)

	m.Status = StatusInactive
	m.EndDate = req.EffectiveDate
	m.touch()
	m.raise(ev)
	return ev, nil
}

// Snapshot captures the current state for the audit trail
func (m *MemberMembership) Snapshot() Snapshot {
	return Snapshot{
		SchemaVersion:   SnapshotSchemaVersion,
		MemberID:        m.MemberID,
		PlanID:          m.PlanID,
		BranchID:        shared.CloneUUID(m.BranchID),
		StartDate:       m.StartDate,
		EndDate:         m.EndDate,
		OriginalEndDate: m.OriginalEndDate,
		Status:          m.Status,
		FreezeDays:      m.FreezeDays,
		Version:         m.Version,
	}
}

// newEvent must run before any field changes so the snapshot is pre-transition
func (m *MemberMembership) newEvent(eventType EventType, effective time.Time, reason, actorID string) *LifecycleEvent {
	return &LifecycleEvent{
		ID:            uuid.New(),
		TenantID:      m.TenantID,
		MembershipID:  m.ID,
		EventType:     eventType,
		EffectiveDate: effective,
		Reason:        strings.TrimSpace(reason),
		PreviousData:  m.Snapshot(),
		PerformedBy:   actorID,
		CreatedAt:     time.Now().UTC(),
	}
}

func (m *MemberMembership) raise(ev *LifecycleEvent) {
	m.AddDomainEvent(NewTransitionedEvent(m, ev))
}

func (m *MemberMembership) touch() {
	m.Touch()
	m.IncrementVersion()
}
