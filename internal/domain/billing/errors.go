package billing

import "github.com/clubledger/backend/internal/domain/shared"

// Ledger and coupon errors. Each belongs to one taxonomy kind so the HTTP
// boundary can map it without knowing the specific code.
var (
	ErrInvoiceNotFound      = shared.NewKindError(shared.ErrNotFound, "INVOICE_NOT_FOUND", "Invoice not found")
	ErrPaymentNotFound      = shared.NewKindError(shared.ErrNotFound, "PAYMENT_NOT_FOUND", "Payment not found")
	ErrCouponNotFound       = shared.NewKindError(shared.ErrNotFound, "COUPON_NOT_FOUND", "Coupon not found")
	ErrWebhookNotFound      = shared.NewKindError(shared.ErrNotFound, "WEBHOOK_EVENT_NOT_FOUND", "Webhook event not found")
	ErrInvoiceNotPayable    = shared.NewKindError(shared.ErrInvalidState, "INVOICE_NOT_PAYABLE", "Invoice does not accept payments in its current status")
	ErrInvoiceNotCancelable = shared.NewKindError(shared.ErrInvalidState, "INVOICE_NOT_CANCELABLE", "Invoice cannot be cancelled in its current status")
	ErrWebhookNotReplayable = shared.NewKindError(shared.ErrInvalidState, "WEBHOOK_NOT_REPLAYABLE", "Webhook event was already processed")

	ErrRefundExceedsPaid = shared.NewDomainError("REFUND_EXCEEDS_PAID", "Refund amount exceeds the amount paid")
	ErrInvalidAmount     = shared.NewDomainError("INVALID_AMOUNT", "Amount must be positive with at most 4 decimal places")
	ErrInvalidMethod     = shared.NewDomainError("INVALID_PAYMENT_METHOD", "Unknown payment method")
	ErrInvalidCurrency   = shared.NewDomainError("INVALID_CURRENCY", "Currency must be a three-letter ISO 4217 code")
	ErrCurrencyMismatch  = shared.NewDomainError("CURRENCY_MISMATCH", "Currency does not match the invoice")

	ErrCouponInactive        = shared.NewDomainError("COUPON_INACTIVE", "Coupon is not active")
	ErrCouponNotYetValid     = shared.NewDomainError("COUPON_NOT_YET_VALID", "Coupon is not valid yet")
	ErrCouponExpired         = shared.NewDomainError("COUPON_EXPIRED", "Coupon has expired")
	ErrUsageLimitReached     = shared.NewDomainError("USAGE_LIMIT_REACHED", "Coupon usage limit reached")
	ErrCouponNotApplicable   = shared.NewDomainError("COUPON_NOT_APPLICABLE", "Coupon does not apply to this plan")
	ErrMinimumPurchaseNotMet = shared.NewDomainError("MINIMUM_PURCHASE_NOT_MET", "Purchase amount is below the coupon minimum")
	ErrInvalidCoupon         = shared.NewDomainError("INVALID_COUPON", "Invalid coupon definition")
	ErrCouponCodeExists      = shared.NewKindError(shared.ErrAlreadyExists, "COUPON_CODE_EXISTS", "Coupon code already exists")

	ErrInvoiceNumberExists    = shared.NewKindError(shared.ErrAlreadyExists, "INVOICE_NUMBER_EXISTS", "Invoice number already exists")
	ErrConcurrentModification = shared.ErrConcurrentModification
)
