package handler

import (
	billingapp "github.com/clubledger/backend/internal/application/billing"
	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InvoiceHandler serves the invoice ledger
type InvoiceHandler struct {
	BaseHandler
	ledger *billingapp.LedgerService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(ledger *billingapp.LedgerService, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{BaseHandler: newBaseHandler(logger), ledger: ledger}
}

// Create handles POST /invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	authCtx, ok := h.AuthContext(c)
	if !ok {
		return
	}
	var req CreateInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	branchID, err := parseOptionalUUID(req.BranchID, "branch_id")
	if err != nil {
		h.HandleError(c, err)
		return
	}
	memberID, err := parseOptionalUUID(req.MemberID, "member_id")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	invoice, err := h.ledger.CreateInvoice(c.Request.Context(), authCtx, billingapp.CreateInvoiceInput{
		BranchID:    branchID,
		MemberID:    memberID,
		TotalAmount: req.TotalAmount,
		DueDate:     req.DueDate,
		Currency:    req.Currency,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toInvoiceResponse(invoice))
}

// Get handles GET /invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	authCtx, ok := h.AuthContext(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	view, err := h.ledger.GetInvoice(c.Request.Context(), authCtx, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toInvoiceDetailResponse(view))
}

// RecordPayment handles POST /invoices/:id/payments
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	authCtx, ok := h.AuthContext(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req RecordPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	method, err := billing.ParsePaymentMethod(req.Method)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.ledger.RecordPayment(c.Request.Context(), authCtx, billingapp.RecordPaymentInput{
		InvoiceID:        id,
		Amount:           req.Amount,
		Method:           method,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp := PaymentResultResponse{
		Invoice:   toInvoiceResponse(result.Invoice),
		Payment:   toPaymentResponse(result.Payment),
		Duplicate: result.Duplicate,
	}
	if result.Duplicate {
		h.Success(c, resp)
		return
	}
	h.Created(c, resp)
}

// RecordRefund handles POST /invoices/:id/refunds
func (h *InvoiceHandler) RecordRefund(c *gin.Context) {
	authCtx, ok := h.AuthContext(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req RecordRefundRequest
	if !h.BindJSON(c, &req) {
		return
	}
	method, err := billing.ParsePaymentMethod(req.Method)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	paymentID, err := parseOptionalUUID(req.PaymentID, "payment_id")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.ledger.RecordRefund(c.Request.Context(), authCtx, billingapp.RecordRefundInput{
		InvoiceID:       id,
		Amount:          req.Amount,
		Method:          method,
		Reason:          req.Reason,
		GatewayRefundID: req.GatewayRefundID,
		PaymentID:       paymentID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp := RefundResultResponse{
		Invoice:   toInvoiceResponse(result.Invoice),
		Refund:    toRefundResponse(result.Refund),
		Duplicate: result.Duplicate,
	}
	if result.Duplicate {
		h.Success(c, resp)
		return
	}
	h.Created(c, resp)
}

// Cancel handles POST /invoices/:id/cancel
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	authCtx, ok := h.AuthContext(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	invoice, err := h.ledger.CancelInvoice(c.Request.Context(), authCtx, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toInvoiceResponse(invoice))
}
