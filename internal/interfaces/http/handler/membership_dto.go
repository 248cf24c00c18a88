package handler

import (
	"time"

	membershipapp "github.com/clubledger/backend/internal/application/membership"
	"github.com/clubledger/backend/internal/domain/membership"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PauseMembershipRequest is the body of POST /memberships/:id/pause
type PauseMembershipRequest struct {
	DurationDays  int        `json:"duration_days" binding:"required,min=1"`
	Reason        string     `json:"reason" binding:"max=500"`
	EffectiveDate *time.Time `json:"effective_date"`
}

// ResumeMembershipRequest is the body of POST /memberships/:id/resume
type ResumeMembershipRequest struct {
	Reason        string     `json:"reason" binding:"max=500"`
	EffectiveDate *time.Time `json:"effective_date"`
}

// UpgradeMembershipRequest is the body of POST /memberships/:id/upgrade
type UpgradeMembershipRequest struct {
	NewPlanID     string     `json:"new_plan_id" binding:"required,uuid"`
	Reason        string     `json:"reason" binding:"max=500"`
	EffectiveDate *time.Time `json:"effective_date"`
}

// CancelMembershipRequest is the body of POST /memberships/:id/cancel
type CancelMembershipRequest struct {
	Reason          string           `json:"reason" binding:"max=500"`
	EffectiveDate   *time.Time       `json:"effective_date"`
	RefundAmount    *decimal.Decimal `json:"refund_amount" binding:"omitempty,decimal_gte0"`
	RefundReference string           `json:"refund_reference" binding:"max=255"`
}

// MembershipResponse is the wire form of a membership
type MembershipResponse struct {
	ID              uuid.UUID  `json:"id"`
	TenantID        uuid.UUID  `json:"tenant_id"`
	BranchID        *uuid.UUID `json:"branch_id,omitempty"`
	MemberID        uuid.UUID  `json:"member_id"`
	PlanID          uuid.UUID  `json:"plan_id"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         time.Time  `json:"end_date"`
	OriginalEndDate *time.Time `json:"original_end_date,omitempty"`
	Status          string     `json:"status"`
	FreezeDays      int        `json:"freeze_days"`
	Version         int        `json:"version"`
}

// LifecycleEventResponse is the wire form of a lifecycle event
type LifecycleEventResponse struct {
	ID              uuid.UUID           `json:"id"`
	MembershipID    uuid.UUID           `json:"membership_id"`
	EventType       string              `json:"event_type"`
	EffectiveDate   time.Time           `json:"effective_date"`
	DurationDays    *int                `json:"duration_days,omitempty"`
	OldPlanID       *uuid.UUID          `json:"old_plan_id,omitempty"`
	NewPlanID       *uuid.UUID          `json:"new_plan_id,omitempty"`
	Reason          string              `json:"reason,omitempty"`
	RefundAmount    *decimal.Decimal    `json:"refund_amount,omitempty"`
	RefundReference string              `json:"refund_reference,omitempty"`
	ProrationCredit *decimal.Decimal    `json:"proration_credit,omitempty"`
	PreviousData    membership.Snapshot `json:"previous_data"`
	PerformedBy     string              `json:"performed_by"`
	CreatedAt       time.Time           `json:"created_at"`
}

// TransitionResponse is returned by every lifecycle transition
type TransitionResponse struct {
	Membership MembershipResponse     `json:"membership"`
	Event      LifecycleEventResponse `json:"event"`
}

func toMembershipResponse(m *membership.MemberMembership) MembershipResponse {
	return MembershipResponse{
		ID:              m.ID,
		TenantID:        m.TenantID,
		BranchID:        m.BranchID,
		MemberID:        m.MemberID,
		PlanID:          m.PlanID,
		StartDate:       m.StartDate,
		EndDate:         m.EndDate,
		OriginalEndDate: m.OriginalEndDate,
		Status:          string(m.Status),
		FreezeDays:      m.FreezeDays,
		Version:         m.Version,
	}
}

func toLifecycleEventResponse(e *membership.LifecycleEvent) LifecycleEventResponse {
	return LifecycleEventResponse{
		ID:              e.ID,
		MembershipID:    e.MembershipID,
		EventType:       string(e.EventType),
		EffectiveDate:   e.EffectiveDate,
		DurationDays:    e.DurationDays,
		OldPlanID:       e.OldPlanID,
		NewPlanID:       e.NewPlanID,
		Reason:          e.Reason,
		RefundAmount:    e.RefundAmount,
		RefundReference: e.RefundReference,
		ProrationCredit: e.ProrationCredit,
		PreviousData:    e.PreviousData,
		PerformedBy:     e.PerformedBy,
		CreatedAt:       e.CreatedAt,
	}
}

func toTransitionResponse(r *membershipapp.TransitionResult) TransitionResponse {
	return TransitionResponse{
		Membership: toMembershipResponse(r.Membership),
		Event:      toLifecycleEventResponse(r.Event),
	}
}

func effectiveDate(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
