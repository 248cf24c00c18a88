package membership

import (
	"context"

	"github.com/clubledger/backend/internal/domain/identity"
	"github.com/google/uuid"
)

// MembershipRepository persists memberships. Scoped lookups report rows
// outside the actor's tenant or branch as ErrMembershipNotFound.
type MembershipRepository interface {
	FindByID(ctx context.Context, scope identity.Scope, id uuid.UUID) (*MemberMembership, error)

	// FindByIDForUpdate loads and row-locks the membership for the rest of the transaction
	FindByIDForUpdate(ctx context.Context, scope identity.Scope, id uuid.UUID) (*MemberMembership, error)

	Create(ctx context.Context, m *MemberMembership) error

	// Save persists a transition with an optimistic version check
	Save(ctx context.Context, m *MemberMembership) error
}

// PlanRepository reads plans within a tenant
type PlanRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Plan, error)
	Create(ctx context.Context, plan *Plan) error
}

// EventRepository appends and reads lifecycle events. Events are never updated.
type EventRepository interface {
	Append(ctx context.Context, event *LifecycleEvent) error
	ListByMembership(ctx context.Context, tenantID, membershipID uuid.UUID) ([]LifecycleEvent, error)
}

// Repositories is the set of membership repositories bound to one transaction
type Repositories struct {
	Memberships MembershipRepository
	Plans       PlanRepository
	Events      EventRepository
}

// UnitOfWork runs fn inside a single database transaction
type UnitOfWork interface {
	Do(ctx context.Context, fn func(repos Repositories) error) error
}
