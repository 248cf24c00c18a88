package membership

import "github.com/clubledger/backend/internal/domain/shared"

var (
	ErrMembershipNotFound = shared.NewKindError(shared.ErrNotFound, "MEMBERSHIP_NOT_FOUND", "Membership not found")
	ErrPlanNotFound       = shared.NewKindError(shared.ErrNotFound, "PLAN_NOT_FOUND", "Plan not found")

	ErrNotActive  = shared.NewKindError(shared.ErrInvalidState, "MEMBERSHIP_NOT_ACTIVE", "Membership is not active")
	ErrNotFrozen  = shared.NewKindError(shared.ErrInvalidState, "MEMBERSHIP_NOT_FROZEN", "Membership is not frozen")
	ErrTerminated = shared.NewKindError(shared.ErrInvalidState, "MEMBERSHIP_TERMINATED", "Membership is cancelled")

	ErrInvalidPauseDuration = shared.NewDomainError("INVALID_PAUSE_DURATION", "Pause duration must be between 1 and 365 days")
	ErrSamePlan             = shared.NewDomainError("SAME_PLAN", "Membership is already on this plan")
	ErrPlanInactive         = shared.NewDomainError("PLAN_INACTIVE", "Plan is not available")
)
