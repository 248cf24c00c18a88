package billing

import (
	"context"
	"time"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/domain/identity"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/clubledger/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CouponService validates and redeems tenant coupons
type CouponService struct {
	uow       billing.UnitOfWork
	publisher shared.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// CouponServiceConfig contains configuration for CouponService
type CouponServiceConfig struct {
	UnitOfWork billing.UnitOfWork
	Publisher  shared.EventPublisher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewCouponService creates a new CouponService
func NewCouponService(cfg CouponServiceConfig) *CouponService {
	s := &CouponService{
		uow:       cfg.UnitOfWork,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		now:       cfg.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// CouponQuery is a purchase a coupon code is checked against
type CouponQuery struct {
	Code           string
	PlanID         *uuid.UUID
	PurchaseAmount decimal.Decimal
}

// ApplyCouponInput redeems a coupon for a member
type ApplyCouponInput struct {
	CouponQuery
	MemberID  uuid.UUID
	InvoiceID *uuid.UUID
}

// CouponQuote is the result of a successful validation
type CouponQuote struct {
	Coupon         *billing.Coupon
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
}

// CreateCoupon defines a new coupon for the actor's tenant
func (s *CouponService) CreateCoupon(ctx context.Context, auth *identity.AuthContext, spec billing.CouponSpec) (*billing.Coupon, error) {
	if err := identity.RequirePermission(auth, identity.PermCouponsManage); err != nil {
		return nil, err
	}
	coupon, err := billing.NewCoupon(auth.TenantID(), spec)
	if err != nil {
		return nil, err
	}
	err = s.uow.Do(ctx, func(repos billing.Repositories) error {
		return repos.Coupons.Create(ctx, coupon)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Coupon created",
		zap.String("tenant_id", coupon.TenantID.String()),
		zap.String("code", coupon.Code))
	return coupon, nil
}

// ValidateCode runs the rule chain without redeeming the coupon
func (s *CouponService) ValidateCode(ctx context.Context, auth *identity.AuthContext, q CouponQuery) (*CouponQuote, error) {
	if err := identity.RequirePermission(auth, identity.PermCouponsView); err != nil {
		return nil, err
	}

	var quote *CouponQuote
	err := s.uow.Do(ctx, func(repos billing.Repositories) error {
		coupon, err := repos.Coupons.FindByCode(ctx, auth.TenantID(), q.Code)
		if err != nil {
			return err
		}
		quote, err = s.quote(coupon, q)
		return err
	})
	return quote, err
}

// ApplyCoupon validates and redeems a coupon. The usage counter is bumped
// with a conditional update, so concurrent redemptions never exceed the cap
// and a lost race surfaces as ErrUsageLimitReached.
func (s *CouponService) ApplyCoupon(ctx context.Context, auth *identity.AuthContext, in ApplyCouponInput) (*CouponQuote, *billing.CouponUsage, error) {
	if err := identity.RequirePermission(auth, identity.PermCouponsApply); err != nil {
		return nil, nil, err
	}
	if in.MemberID == uuid.Nil {
		return nil, nil, shared.ErrValidation.WithMessage("member_id is required")
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "coupon", "apply",
		telemetry.SpanAttrTenantID, auth.TenantID(),
		telemetry.SpanAttrCouponCode, in.Code)
	defer span.End()

	var (
		quote *CouponQuote
		usage *billing.CouponUsage
	)
	err := s.uow.Do(ctx, func(repos billing.Repositories) error {
		coupon, err := repos.Coupons.FindByCode(ctx, auth.TenantID(), in.Code)
		if err != nil {
			return err
		}
		quote, err = s.quote(coupon, in.CouponQuery)
		if err != nil {
			return err
		}

		ok, err := repos.Coupons.IncrementUsage(ctx, coupon.TenantID, coupon.ID)
		if err != nil {
			return err
		}
		if !ok {
			return billing.ErrUsageLimitReached
		}
		coupon.CurrentUsageCount++

		usage = billing.NewCouponUsage(coupon, in.MemberID, in.PlanID, in.InvoiceID, in.PurchaseAmount, auth.ActorID())
		return repos.Coupons.CreateUsage(ctx, usage)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, nil, err
	}

	s.logger.Info("Coupon redeemed",
		zap.String("tenant_id", usage.TenantID.String()),
		zap.String("code", quote.Coupon.Code),
		zap.String("member_id", usage.MemberID.String()),
		zap.String("discount", usage.DiscountAmount.StringFixed(2)))
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, billing.NewCouponRedeemedEvent(quote.Coupon, usage)); err != nil {
			s.logger.Warn("Failed to publish domain events", zap.Error(err))
		}
	}
	return quote, usage, nil
}

func (s *CouponService) quote(coupon *billing.Coupon, q CouponQuery) (*CouponQuote, error) {
	if q.PurchaseAmount.IsNegative() {
		return nil, billing.ErrInvalidAmount
	}
	if err := coupon.Validate(billing.CouponCheck{
		PlanID:         q.PlanID,
		PurchaseAmount: q.PurchaseAmount,
		Now:            s.now(),
	}); err != nil {
		return nil, err
	}
	discount := coupon.DiscountFor(q.PurchaseAmount)
	return &CouponQuote{
		Coupon:         coupon,
		DiscountAmount: discount,
		FinalAmount:    q.PurchaseAmount.Sub(discount),
	}, nil
}
