package handler

import (
	"time"

	billingapp "github.com/clubledger/backend/internal/application/billing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CouponHandler serves coupon definition, validation and redemption
type CouponHandler struct {
	BaseHandler
	coupons *billingapp.CouponService
	now     func() time.Time
}

// NewCouponHandler creates a new CouponHandler
func NewCouponHandler(coupons *billingapp.CouponService, logger *zap.Logger) *CouponHandler {
	return &CouponHandler{
		BaseHandler: newBaseHandler(logger),
		coupons:     coupons,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create handles POST /coupons
func (h *CouponHandler) Create(c *gin.Context) {
	authCtx, ok := h.AuthContext(c)
	if !ok {
		return
	}
	var req CreateCouponRequest
	if !h.BindJSON(c, &req) {
		return
	}
	spec, err := req.toSpec(h.now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	coupon, err := h.coupons.CreateCoupon(c.Request.Context(), authCtx, spec)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toCouponResponse(coupon))
}

// Validate handles POST /coupons/validate
func (h *CouponHandler) Validate(c *gin.Context) {
	authCtx, ok := h.AuthContext(c)
	if !ok {
		return
	}
	var req CouponQueryRequest
	if !h.BindJSON(c, &req) {
		return
	}
	query, err := req.toQuery()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	quote, err := h.coupons.ValidateCode(c.Request.Context(), authCtx, query)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCouponQuoteResponse(quote))
}

// Apply handles POST /coupons/apply
func (h *CouponHandler) Apply(c *gin.Context) {
	authCtx, ok := h.AuthContext(c)
	if !ok {
		return
	}
	var req ApplyCouponRequest
	if !h.BindJSON(c, &req) {
		return
	}
	query, err := req.toQuery()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	invoiceID, err := parseOptionalUUID(req.InvoiceID, "invoice_id")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	quote, usage, err := h.coupons.ApplyCoupon(c.Request.Context(), authCtx, billingapp.ApplyCouponInput{
		CouponQuery: query,
		MemberID:    uuid.MustParse(req.MemberID),
		InvoiceID:   invoiceID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, ApplyCouponResponse{
		CouponQuoteResponse: toCouponQuoteResponse(quote),
		Usage:               toCouponUsageResponse(usage),
	})
}
