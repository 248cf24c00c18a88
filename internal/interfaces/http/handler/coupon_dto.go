package handler

import (
	"strings"
	"time"

	billingapp "github.com/clubledger/backend/internal/application/billing"
	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateCouponRequest is the body of POST /coupons
type CreateCouponRequest struct {
	Code              string           `json:"code" binding:"required,max=50"`
	Description       string           `json:"description" binding:"max=500"`
	DiscountType      string           `json:"discount_type" binding:"required,oneof=PERCENTAGE FIXED percentage fixed"`
	DiscountValue     decimal.Decimal  `json:"discount_value" binding:"decimal_gt0"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount" binding:"omitempty,decimal_gt0"`
	MinPurchaseAmount decimal.Decimal  `json:"min_purchase_amount" binding:"decimal_gte0"`
	ValidFrom         *time.Time       `json:"valid_from"`
	ValidUntil        *time.Time       `json:"valid_until"`
	MaxUsageCount     *int             `json:"max_usage_count" binding:"omitempty,min=1"`
	ApplicablePlans   []string         `json:"applicable_plans" binding:"omitempty,dive,uuid"`
}

// CouponQueryRequest is the body of POST /coupons/validate
type CouponQueryRequest struct {
	Code           string          `json:"code" binding:"required,max=50"`
	PlanID         *string         `json:"plan_id" binding:"omitempty,uuid"`
	PurchaseAmount decimal.Decimal `json:"purchase_amount" binding:"decimal_gte0"`
}

// ApplyCouponRequest is the body of POST /coupons/apply
type ApplyCouponRequest struct {
	CouponQueryRequest
	MemberID  string  `json:"member_id" binding:"required,uuid"`
	InvoiceID *string `json:"invoice_id" binding:"omitempty,uuid"`
}

// CouponResponse is the wire form of a coupon
type CouponResponse struct {
	ID                uuid.UUID        `json:"id"`
	Code              string           `json:"code"`
	Description       string           `json:"description,omitempty"`
	DiscountType      string           `json:"discount_type"`
	DiscountValue     decimal.Decimal  `json:"discount_value"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount,omitempty"`
	MinPurchaseAmount decimal.Decimal  `json:"min_purchase_amount"`
	ValidFrom         time.Time        `json:"valid_from"`
	ValidUntil        *time.Time       `json:"valid_until,omitempty"`
	MaxUsageCount     *int             `json:"max_usage_count,omitempty"`
	CurrentUsageCount int              `json:"current_usage_count"`
	ApplicablePlans   []uuid.UUID      `json:"applicable_plans"`
	Status            string           `json:"status"`
	CreatedAt         time.Time        `json:"created_at"`
}

// CouponQuoteResponse is the outcome of validating a code
type CouponQuoteResponse struct {
	Coupon         CouponResponse  `json:"coupon"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
}

// CouponUsageResponse is the wire form of a redemption
type CouponUsageResponse struct {
	ID             uuid.UUID       `json:"id"`
	CouponID       uuid.UUID       `json:"coupon_id"`
	MemberID       uuid.UUID       `json:"member_id"`
	PlanID         *uuid.UUID      `json:"plan_id,omitempty"`
	InvoiceID      *uuid.UUID      `json:"invoice_id,omitempty"`
	PurchaseAmount decimal.Decimal `json:"purchase_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	UsedBy         string          `json:"used_by"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ApplyCouponResponse is returned by POST /coupons/apply
type ApplyCouponResponse struct {
	CouponQuoteResponse
	Usage CouponUsageResponse `json:"usage"`
}

func (r CreateCouponRequest) toSpec(now time.Time) (billing.CouponSpec, error) {
	plans := make([]uuid.UUID, 0, len(r.ApplicablePlans))
	for _, raw := range r.ApplicablePlans {
		id, err := uuid.Parse(raw)
		if err != nil {
			return billing.CouponSpec{}, shared.ErrValidation.WithMessage("invalid applicable_plans entry")
		}
		plans = append(plans, id)
	}
	validFrom := now
	if r.ValidFrom != nil {
		validFrom = *r.ValidFrom
	}
	return billing.CouponSpec{
		Code:              r.Code,
		Description:       r.Description,
		DiscountType:      billing.DiscountType(strings.ToUpper(r.DiscountType)),
		DiscountValue:     r.DiscountValue,
		MaxDiscountAmount: r.MaxDiscountAmount,
		MinPurchaseAmount: r.MinPurchaseAmount,
		ValidFrom:         validFrom,
		ValidUntil:        r.ValidUntil,
		MaxUsageCount:     r.MaxUsageCount,
		ApplicablePlans:   plans,
	}, nil
}

func (r CouponQueryRequest) toQuery() (billingapp.CouponQuery, error) {
	planID, err := parseOptionalUUID(r.PlanID, "plan_id")
	if err != nil {
		return billingapp.CouponQuery{}, err
	}
	return billingapp.CouponQuery{
		Code:           r.Code,
		PlanID:         planID,
		PurchaseAmount: r.PurchaseAmount,
	}, nil
}

func toCouponResponse(c *billing.Coupon) CouponResponse {
	plans := c.ApplicablePlans
	if plans == nil {
		plans = []uuid.UUID{}
	}
	return CouponResponse{
		ID:                c.ID,
		Code:              c.Code,
		Description:       c.Description,
		DiscountType:      string(c.DiscountType),
		DiscountValue:     c.DiscountValue,
		MaxDiscountAmount: c.MaxDiscountAmount,
		MinPurchaseAmount: c.MinPurchaseAmount,
		ValidFrom:         c.ValidFrom,
		ValidUntil:        c.ValidUntil,
		MaxUsageCount:     c.MaxUsageCount,
		CurrentUsageCount: c.CurrentUsageCount,
		ApplicablePlans:   plans,
		Status:            string(c.Status),
		CreatedAt:         c.CreatedAt,
	}
}

func toCouponQuoteResponse(q *billingapp.CouponQuote) CouponQuoteResponse {
	return CouponQuoteResponse{
		Coupon:         toCouponResponse(q.Coupon),
		DiscountAmount: q.DiscountAmount,
		FinalAmount:    q.FinalAmount,
	}
}

func toCouponUsageResponse(u *billing.CouponUsage) CouponUsageResponse {
	return CouponUsageResponse{
		ID:             u.ID,
		CouponID:       u.CouponID,
		MemberID:       u.MemberID,
		PlanID:         u.PlanID,
		InvoiceID:      u.InvoiceID,
		PurchaseAmount: u.PurchaseAmount,
		DiscountAmount: u.DiscountAmount,
		UsedBy:         u.UsedBy,
		CreatedAt:      u.CreatedAt,
	}
}
