package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clubledger/backend/internal/domain/identity"
	"github.com/clubledger/backend/internal/domain/membership"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/clubledger/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LifecycleService drives membership transitions. Each transition loads the
// membership under a row lock in the actor's scope and writes the new state
// together with its lifecycle event in one transaction.
type LifecycleService struct {
	uow       membership.UnitOfWork
	proration membership.ProrationPolicy
	publisher shared.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// LifecycleServiceConfig contains configuration for LifecycleService
type LifecycleServiceConfig struct {
	UnitOfWork membership.UnitOfWork
	Proration  membership.ProrationPolicy
	Publisher  shared.EventPublisher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewLifecycleService creates a new LifecycleService
func NewLifecycleService(cfg LifecycleServiceConfig) *LifecycleService {
	s := &LifecycleService{
		uow:       cfg.UnitOfWork,
		proration: cfg.Proration,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		now:       cfg.Clock,
	}
	if s.proration == nil {
		s.proration = membership.NoProration{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// PauseInput freezes a membership for DurationDays
type PauseInput struct {
	MembershipID  uuid.UUID
	DurationDays  int
	Reason        string
	EffectiveDate time.Time
}

// ResumeInput reactivates a frozen membership
type ResumeInput struct {
	MembershipID  uuid.UUID
	Reason        string
	EffectiveDate time.Time
}

// UpgradeInput moves a membership to another plan of the same tenant
type UpgradeInput struct {
	MembershipID  uuid.UUID
	NewPlanID     uuid.UUID
	Reason        string
	EffectiveDate time.Time
}

// CancelInput terminates a membership
type CancelInput struct {
	MembershipID    uuid.UUID
	EffectiveDate   time.Time
	Reason          string
	RefundAmount    *decimal.Decimal
	RefundReference string
}

// TransitionResult is the membership after a transition and the event written for it
type TransitionResult struct {
	Membership *membership.MemberMembership
	Event      *membership.LifecycleEvent
}

// Pause moves an ACTIVE membership to FROZEN and extends its end date
func (s *LifecycleService) Pause(ctx context.Context, auth *identity.AuthContext, in PauseInput) (*TransitionResult, error) {
	return s.transition(ctx, auth, identity.PermMembershipsPause, in.MembershipID,
		func(_ membership.Repositories, m *membership.MemberMembership) (*membership.LifecycleEvent, error) {
			return m.Pause(in.DurationDays, s.effective(in.EffectiveDate), in.Reason, auth.ActorID())
		})
}

// Resume moves a FROZEN membership back to ACTIVE
func (s *LifecycleService) Resume(ctx context.Context, auth *identity.AuthContext, in ResumeInput) (*TransitionResult, error) {
	return s.transition(ctx, auth, identity.PermMembershipsResume, in.MembershipID,
		func(_ membership.Repositories, m *membership.MemberMembership) (*membership.LifecycleEvent, error) {
			return m.Resume(s.effective(in.EffectiveDate), in.Reason, auth.ActorID())
		})
}

// Upgrade swaps the plan. The proration credit is recorded on the event;
// no ledger entry is written.
func (s *LifecycleService) Upgrade(ctx context.Context, auth *identity.AuthContext, in UpgradeInput) (*TransitionResult, error) {
	return s.transition(ctx, auth, identity.PermMembershipsUpgrade, in.MembershipID,
		func(repos membership.Repositories, m *membership.MemberMembership) (*membership.LifecycleEvent, error) {
			if m.Status == membership.StatusInactive {
				return nil, membership.ErrTerminated.WithMessage("membership is cancelled and cannot change plan")
			}
			if in.NewPlanID == m.PlanID {
				return nil, membership.ErrSamePlan
			}
			target, err := repos.Plans.FindByID(ctx, m.TenantID, in.NewPlanID)
			if err != nil {
				return nil, err
			}
			if !target.IsActive {
				return nil, membership.ErrPlanInactive
			}
			current, err := repos.Plans.FindByID(ctx, m.TenantID, m.PlanID)
			if err != nil && !errors.Is(err, membership.ErrPlanNotFound) {
				return nil, err
			}

			effective := s.effective(in.EffectiveDate)
			credit, err := s.proration.Credit(ctx, m, current, target, effective)
			if err != nil {
				return nil, fmt.Errorf("compute proration: %w", err)
			}
			return m.Upgrade(target, effective, in.Reason, credit, auth.ActorID())
		})
}

// Cancel terminates the membership at the effective date
func (s *LifecycleService) Cancel(ctx context.Context, auth *identity.AuthContext, in CancelInput) (*TransitionResult, error) {
	return s.transition(ctx, auth, identity.PermMembershipsCancel, in.MembershipID,
		func(_ membership.Repositories, m *membership.MemberMembership) (*membership.LifecycleEvent, error) {
			return m.Cancel(membership.CancelRequest{
				EffectiveDate:   s.effective(in.EffectiveDate),
				Reason:          in.Reason,
				RefundAmount:    in.RefundAmount,
				RefundReference: in.RefundReference,
			}, auth.ActorID())
		})
}

// Get returns a membership in the actor's scope
func (s *LifecycleService) Get(ctx context.Context, auth *identity.AuthContext, id uuid.UUID) (*membership.MemberMembership, error) {
	if err := identity.RequirePermission(auth, identity.PermMembershipsView); err != nil {
		return nil, err
	}
	var m *membership.MemberMembership
	err := s.uow.Do(ctx, func(repos membership.Repositories) error {
		var err error
		m, err = repos.Memberships.FindByID(ctx, auth.Scope(), id)
		return err
	})
	return m, err
}

// History returns the lifecycle events of a membership, oldest first
func (s *LifecycleService) History(ctx context.Context, auth *identity.AuthContext, id uuid.UUID) ([]membership.LifecycleEvent, error) {
	if err := identity.RequirePermission(auth, identity.PermMembershipsView); err != nil {
		return nil, err
	}
	var events []membership.LifecycleEvent
	err := s.uow.Do(ctx, func(repos membership.Repositories) error {
		m, err := repos.Memberships.FindByID(ctx, auth.Scope(), id)
		if err != nil {
			return err
		}
		events, err = repos.Events.ListByMembership(ctx, m.TenantID, m.ID)
		return err
	})
	return events, err
}

type transitionFunc func(repos membership.Repositories, m *membership.MemberMembership) (*membership.LifecycleEvent, error)

func (s *LifecycleService) transition(ctx context.Context, auth *identity.AuthContext, perm identity.Permission, id uuid.UUID, apply transitionFunc) (*TransitionResult, error) {
	if err := identity.RequirePermission(auth, perm); err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "membership", "transition",
		telemetry.SpanAttrMembershipID, id,
		telemetry.SpanAttrTenantID, auth.TenantID())
	defer span.End()

	result := &TransitionResult{}
	err := s.uow.Do(ctx, func(repos membership.Repositories) error {
		m, err := repos.Memberships.FindByIDForUpdate(ctx, auth.Scope(), id)
		if err != nil {
			return err
		}
		ev, err := apply(repos, m)
		if err != nil {
			return err
		}
		if err := repos.Memberships.Save(ctx, m); err != nil {
			return err
		}
		if err := repos.Events.Append(ctx, ev); err != nil {
			return fmt.Errorf("append lifecycle event: %w", err)
		}
		result.Membership = m
		result.Event = ev
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrTransition, string(result.Event.EventType))

	m := result.Membership
	s.logger.Info("Membership transitioned",
		zap.String("tenant_id", m.TenantID.String()),
		zap.String("membership_id", m.ID.String()),
		zap.String("transition", string(result.Event.EventType)),
		zap.String("status", string(m.Status)),
		zap.Time("end_date", m.EndDate),
		zap.String("actor_id", auth.ActorID()))

	events := m.GetDomainEvents()
	m.ClearDomainEvents()
	if s.publisher != nil && len(events) > 0 {
		if err := s.publisher.Publish(ctx, events...); err != nil {
			s.logger.Warn("Failed to publish domain events", zap.Error(err))
		}
	}
	return result, nil
}

func (s *LifecycleService) effective(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t.UTC()
}
