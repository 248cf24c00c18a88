package billing

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CouponStatus is the administrative status of a coupon
type CouponStatus string

const (
	CouponStatusActive   CouponStatus = "ACTIVE"
	CouponStatusInactive CouponStatus = "INACTIVE"
)

// DiscountType selects how DiscountValue is interpreted
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	DiscountTypeFixed      DiscountType = "FIXED"
)

// IsValid checks if the discount type is known
func (d DiscountType) IsValid() bool {
	return d == DiscountTypePercentage || d == DiscountTypeFixed
}

// Coupon is a tenant-owned discount with a validity window, an optional
// usage cap and optional plan restrictions.
type Coupon struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	Code              string
	Description       string
	DiscountType      DiscountType
	DiscountValue     decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	MinPurchaseAmount decimal.Decimal
	ValidFrom         time.Time
	ValidUntil        *time.Time
	MaxUsageCount     *int
	CurrentUsageCount int
	ApplicablePlans   []uuid.UUID
	Status            CouponStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CouponSpec holds the fields needed to create a coupon
type CouponSpec struct {
	Code              string
	Description       string
	DiscountType      DiscountType
	DiscountValue     decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	MinPurchaseAmount decimal.Decimal
	ValidFrom         time.Time
	ValidUntil        *time.Time
	MaxUsageCount     *int
	ApplicablePlans   []uuid.UUID
}

// NormalizeCouponCode makes codes case-insensitive
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NewCoupon creates an ACTIVE coupon
func NewCoupon(tenantID uuid.UUID, spec CouponSpec) (*Coupon, error) {
	code := NormalizeCouponCode(spec.Code)
	if code == "" {
		return nil, ErrInvalidCoupon.WithMessage("coupon code cannot be empty")
	}
	if !spec.DiscountType.IsValid() {
		return nil, ErrInvalidCoupon.WithMessage("unknown discount type %q", spec.DiscountType)
	}
	if !spec.DiscountValue.IsPositive() {
		return nil, ErrInvalidCoupon.WithMessage("discount value must be positive")
	}
	if spec.DiscountType == DiscountTypePercentage && spec.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		return nil, ErrInvalidCoupon.WithMessage("percentage discount cannot exceed 100")
	}
	if spec.MaxDiscountAmount != nil && !spec.MaxDiscountAmount.IsPositive() {
		return nil, ErrInvalidCoupon.WithMessage("maximum discount must be positive")
	}
	if spec.MinPurchaseAmount.IsNegative() {
		return nil, ErrInvalidCoupon.WithMessage("minimum purchase cannot be negative")
	}
	if spec.ValidUntil != nil && spec.ValidUntil.Before(spec.ValidFrom) {
		return nil, ErrInvalidCoupon.WithMessage("validity window ends before it starts")
	}
	if spec.MaxUsageCount != nil && *spec.MaxUsageCount < 1 {
		return nil, ErrInvalidCoupon.WithMessage("usage cap must be at least 1")
	}

	now := time.Now().UTC()
	return &Coupon{
		ID:                uuid.New(),
		TenantID:          tenantID,
		Code:              code,
		Description:       spec.Description,
		DiscountType:      spec.DiscountType,
		DiscountValue:     spec.DiscountValue,
		MaxDiscountAmount: spec.MaxDiscountAmount,
		MinPurchaseAmount: spec.MinPurchaseAmount,
		ValidFrom:         spec.ValidFrom,
		ValidUntil:        spec.ValidUntil,
		MaxUsageCount:     spec.MaxUsageCount,
		ApplicablePlans:   slices.Clone(spec.ApplicablePlans),
		Status:            CouponStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// CouponCheck is the purchase a coupon is being validated against
type CouponCheck struct {
	PlanID         *uuid.UUID
	PurchaseAmount decimal.Decimal
	Now            time.Time
}

// Validate runs the rule chain and returns the first failure:
// status, validity window, usage cap, plan applicability, minimum purchase.
func (c *Coupon) Validate(in CouponCheck) error {
	if c.Status != CouponStatusActive {
		return ErrCouponInactive
	}
	if in.Now.Before(c.ValidFrom) {
		return ErrCouponNotYetValid
	}
	if c.ValidUntil != nil && in.Now.After(*c.ValidUntil) {
		return ErrCouponExpired
	}
	if c.MaxUsageCount != nil && c.CurrentUsageCount >= *c.MaxUsageCount {
		return ErrUsageLimitReached
	}
	if !c.AppliesTo(in.PlanID) {
		return ErrCouponNotApplicable
	}
	if in.PurchaseAmount.LessThan(c.MinPurchaseAmount) {
		return ErrMinimumPurchaseNotMet.WithMessage(
			"purchase of %s is below the minimum %s", in.PurchaseAmount.StringFixed(2), c.MinPurchaseAmount.StringFixed(2))
	}
	return nil
}

// AppliesTo reports plan applicability. An empty list means every plan.
func (c *Coupon) AppliesTo(planID *uuid.UUID) bool {
	if len(c.ApplicablePlans) == 0 {
		return true
	}
	return planID != nil && slices.Contains(c.ApplicablePlans, *planID)
}

// DiscountFor computes the discount on amount. Percentage discounts are
// capped by MaxDiscountAmount; no discount exceeds the purchase itself.
func (c *Coupon) DiscountFor(amount decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountTypePercentage:
		discount = amount.Mul(c.DiscountValue).Div(decimal.NewFromInt(100)).Round(2)
		if c.MaxDiscountAmount != nil && discount.GreaterThan(*c.MaxDiscountAmount) {
			discount = *c.MaxDiscountAmount
		}
	default:
		discount = c.DiscountValue
	}
	if discount.GreaterThan(amount) {
		discount = amount
	}
	return discount
}

// CouponUsage is an immutable redemption record
type CouponUsage struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	CouponID       uuid.UUID
	MemberID       uuid.UUID
	PlanID         *uuid.UUID
	InvoiceID      *uuid.UUID
	PurchaseAmount decimal.Decimal
	DiscountAmount decimal.Decimal
	UsedBy         string
	CreatedAt      time.Time
}

// NewCouponUsage records a redemption of c
func NewCouponUsage(c *Coupon, memberID uuid.UUID, planID, invoiceID *uuid.UUID, purchase decimal.Decimal, actorID string) *CouponUsage {
	return &CouponUsage{
		ID:             uuid.New(),
		TenantID:       c.TenantID,
		CouponID:       c.ID,
		MemberID:       memberID,
		PlanID:         planID,
		InvoiceID:      invoiceID,
		PurchaseAmount: purchase,
		DiscountAmount: c.DiscountFor(purchase),
		UsedBy:         actorID,
		CreatedAt:      time.Now().UTC(),
	}
}
