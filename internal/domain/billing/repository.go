package billing

import (
	"context"
	"time"

	"github.com/clubledger/backend/internal/domain/identity"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// InvoiceRepository persists invoices. Every scoped lookup applies the
// tenant predicate and, for branch-scoped actors, the branch predicate; a
// row outside the scope is reported as ErrInvoiceNotFound.
type InvoiceRepository interface {
	FindByID(ctx context.Context, scope identity.Scope, id uuid.UUID) (*Invoice, error)

	// FindByIDForUpdate loads and row-locks the invoice for the rest of the transaction
	FindByIDForUpdate(ctx context.Context, scope identity.Scope, id uuid.UUID) (*Invoice, error)

	// FindOwner returns the tenant of an invoice without applying any scope.
	// Only the trusted gateway path uses it, to build its system context.
	FindOwner(ctx context.Context, id uuid.UUID) (uuid.UUID, error)

	Create(ctx context.Context, invoice *Invoice) error

	// Save writes derived totals and status with an optimistic version check
	Save(ctx context.Context, invoice *Invoice) error

	// NextInvoiceSequence reserves the next per-tenant sequence value for day.
	// Values start at 1 and are never handed out twice.
	NextInvoiceSequence(ctx context.Context, tenantID uuid.UUID, day time.Time) (int, error)
}

// PaymentRepository persists append-only payment rows
type PaymentRepository interface {
	Create(ctx context.Context, payment *InvoicePayment) error
	ListByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]InvoicePayment, error)

	// FindCompletedByGatewayPaymentID returns nil, nil when no completed payment carries the id
	FindCompletedByGatewayPaymentID(ctx context.Context, tenantID uuid.UUID, gatewayPaymentID string) (*InvoicePayment, error)

	// FindInvoiceByGatewayPaymentID locates the invoice and COMPLETED payment a
	// gateway payment settled, across tenants. Returns ErrPaymentNotFound when
	// no completed payment carries the id.
	FindInvoiceByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (tenantID, invoiceID, paymentID uuid.UUID, err error)
}

// RefundRepository persists append-only refund rows
type RefundRepository interface {
	Create(ctx context.Context, refund *InvoiceRefund) error
	ListByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]InvoiceRefund, error)

	// FindCompletedByGatewayRefundID returns nil, nil when no completed refund carries the id
	FindCompletedByGatewayRefundID(ctx context.Context, tenantID uuid.UUID, gatewayRefundID string) (*InvoiceRefund, error)
}

// CouponRepository persists coupons and their usage records
type CouponRepository interface {
	Create(ctx context.Context, coupon *Coupon) error
	FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Coupon, error)

	// IncrementUsage bumps the usage counter only while it is below the cap.
	// Returns false when the cap was already reached.
	IncrementUsage(ctx context.Context, tenantID, couponID uuid.UUID) (bool, error)

	CreateUsage(ctx context.Context, usage *CouponUsage) error
}

// WebhookEventRepository persists the webhook audit log
type WebhookEventRepository interface {
	// Insert stores a new event. It returns false without error when an event
	// with the same (gateway, event id) already exists.
	Insert(ctx context.Context, event *WebhookEvent) (bool, error)

	FindByGatewayEventID(ctx context.Context, gateway, eventID string) (*WebhookEvent, error)
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*WebhookEvent, error)
	Update(ctx context.Context, event *WebhookEvent) error
	List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]WebhookEvent, int64, error)
}

// Repositories is the set of billing repositories bound to one transaction
type Repositories struct {
	Invoices InvoiceRepository
	Payments PaymentRepository
	Refunds  RefundRepository
	Coupons  CouponRepository
}

// UnitOfWork runs fn inside a single database transaction. Any error
// returned by fn rolls back every write made through the repositories.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(repos Repositories) error) error
}
