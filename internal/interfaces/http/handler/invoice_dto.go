package handler

import (
	"time"

	billingapp "github.com/clubledger/backend/internal/application/billing"
	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateInvoiceRequest is the body of POST /invoices
type CreateInvoiceRequest struct {
	BranchID    *string         `json:"branch_id" binding:"omitempty,uuid"`
	MemberID    *string         `json:"member_id" binding:"omitempty,uuid"`
	TotalAmount decimal.Decimal `json:"total_amount" binding:"decimal_gt0"`
	Currency    string          `json:"currency" binding:"omitempty,len=3,alpha"`
	DueDate     *time.Time      `json:"due_date"`
}

// RecordPaymentRequest is the body of POST /invoices/:id/payments
type RecordPaymentRequest struct {
	Amount           decimal.Decimal `json:"amount" binding:"decimal_gt0"`
	Method           string          `json:"method" binding:"required"`
	GatewayOrderID   string          `json:"gateway_order_id" binding:"max=255"`
	GatewayPaymentID string          `json:"gateway_payment_id" binding:"max=255"`
}

// RecordRefundRequest is the body of POST /invoices/:id/refunds
type RecordRefundRequest struct {
	Amount          decimal.Decimal `json:"amount" binding:"decimal_gt0"`
	Method          string          `json:"method" binding:"required"`
	Reason          string          `json:"reason" binding:"max=500"`
	GatewayRefundID string          `json:"gateway_refund_id" binding:"max=255"`
	PaymentID       *string         `json:"payment_id" binding:"omitempty,uuid"`
}

// InvoiceResponse is the wire form of an invoice
type InvoiceResponse struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	BranchID      *uuid.UUID      `json:"branch_id,omitempty"`
	InvoiceNumber string          `json:"invoice_number"`
	MemberID      *uuid.UUID      `json:"member_id,omitempty"`
	Currency      string          `json:"currency"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	BalanceAmount decimal.Decimal `json:"balance_amount"`
	Status        string          `json:"status"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// PaymentResponse is the wire form of a payment row
type PaymentResponse struct {
	ID               uuid.UUID       `json:"id"`
	InvoiceID        uuid.UUID       `json:"invoice_id"`
	Amount           decimal.Decimal `json:"amount"`
	Method           string          `json:"method"`
	GatewayOrderID   string          `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string          `json:"gateway_payment_id,omitempty"`
	Status           string          `json:"status"`
	FailureReason    string          `json:"failure_reason,omitempty"`
	RecordedBy       string          `json:"recorded_by"`
	CreatedAt        time.Time       `json:"created_at"`
}

// RefundResponse is the wire form of a refund row
type RefundResponse struct {
	ID               uuid.UUID       `json:"id"`
	InvoiceID        uuid.UUID       `json:"invoice_id"`
	PaymentID        *uuid.UUID      `json:"payment_id,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Method           string          `json:"method"`
	Reason           string          `json:"reason,omitempty"`
	CreditNoteNumber string          `json:"credit_note_number"`
	GatewayRefundID  string          `json:"gateway_refund_id,omitempty"`
	Status           string          `json:"status"`
	RecordedBy       string          `json:"recorded_by"`
	CreatedAt        time.Time       `json:"created_at"`
}

// InvoiceDetailResponse is an invoice with its payment and refund history
type InvoiceDetailResponse struct {
	InvoiceResponse
	Payments []PaymentResponse `json:"payments"`
	Refunds  []RefundResponse  `json:"refunds"`
}

// PaymentResultResponse is returned by the record payment endpoint
type PaymentResultResponse struct {
	Invoice   InvoiceResponse `json:"invoice"`
	Payment   PaymentResponse `json:"payment"`
	Duplicate bool            `json:"duplicate"`
}

// RefundResultResponse is returned by the record refund endpoint
type RefundResultResponse struct {
	Invoice   InvoiceResponse `json:"invoice"`
	Refund    RefundResponse  `json:"refund"`
	Duplicate bool            `json:"duplicate"`
}

func toInvoiceResponse(inv *billing.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:            inv.ID,
		TenantID:      inv.TenantID,
		BranchID:      inv.BranchID,
		InvoiceNumber: inv.InvoiceNumber,
		MemberID:      inv.MemberID,
		Currency:      inv.Currency,
		TotalAmount:   inv.TotalAmount,
		PaidAmount:    inv.PaidAmount,
		BalanceAmount: inv.BalanceAmount,
		Status:        string(inv.Status),
		DueDate:       inv.DueDate,
		Version:       inv.Version,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
}

func toPaymentResponse(p *billing.InvoicePayment) PaymentResponse {
	return PaymentResponse{
		ID:               p.ID,
		InvoiceID:        p.InvoiceID,
		Amount:           p.Amount,
		Method:           string(p.Method),
		GatewayOrderID:   p.GatewayOrderID,
		GatewayPaymentID: p.GatewayPaymentID,
		Status:           string(p.Status),
		FailureReason:    p.FailureReason,
		RecordedBy:       p.RecordedBy,
		CreatedAt:        p.CreatedAt,
	}
}

func toRefundResponse(r *billing.InvoiceRefund) RefundResponse {
	return RefundResponse{
		ID:               r.ID,
		InvoiceID:        r.InvoiceID,
		PaymentID:        r.PaymentID,
		Amount:           r.Amount,
		Method:           string(r.Method),
		Reason:           r.Reason,
		CreditNoteNumber: r.CreditNoteNumber,
		GatewayRefundID:  r.GatewayRefundID,
		Status:           string(r.Status),
		RecordedBy:       r.RecordedBy,
		CreatedAt:        r.CreatedAt,
	}
}

func toInvoiceDetailResponse(view *billingapp.InvoiceView) InvoiceDetailResponse {
	resp := InvoiceDetailResponse{
		InvoiceResponse: toInvoiceResponse(view.Invoice),
		Payments:        make([]PaymentResponse, 0, len(view.Payments)),
		Refunds:         make([]RefundResponse, 0, len(view.Refunds)),
	}
	for i := range view.Payments {
		resp.Payments = append(resp.Payments, toPaymentResponse(&view.Payments[i]))
	}
	for i := range view.Refunds {
		resp.Refunds = append(resp.Refunds, toRefundResponse(&view.Refunds[i]))
	}
	return resp
}
