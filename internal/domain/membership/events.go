package membership

import (
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateTypeMembership is the aggregate type for membership events
const AggregateTypeMembership = "MemberMembership"

// EventTypeMembershipTransitioned is raised by every lifecycle transition
const EventTypeMembershipTransitioned = "MembershipTransitioned"

// TransitionedEvent is the published form of a LifecycleEvent
type TransitionedEvent struct {
	shared.BaseDomainEvent
	Transition EventType `json:"transition"`
	FromStatus Status    `json:"from_status"`
	ToStatus   Status    `json:"to_status"`
	PlanID     uuid.UUID `json:"plan_id"`
}

// NewTransitionedEvent creates the event for a transition m just applied
func NewTransitionedEvent(m *MemberMembership, ev *LifecycleEvent) *TransitionedEvent {
	return &TransitionedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMembershipTransitioned, AggregateTypeMembership, m.ID, m.TenantID),
		Transition:      ev.EventType,
		FromStatus:      ev.PreviousData.Status,
		ToStatus:        m.Status,
		PlanID:          m.PlanID,
	}
}
