package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/domain/identity"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/clubledger/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultInvoicePrefix is used when no prefix is configured
const DefaultInvoicePrefix = "INV"

// LedgerService records money movements against invoices. Every write runs
// in one transaction holding the invoice row lock, and the derived totals
// are recomputed from the complete history loaded under that lock.
type LedgerService struct {
	uow       billing.UnitOfWork
	publisher shared.EventPublisher
	logger    *zap.Logger
	prefix    string
	now       func() time.Time
}

// LedgerServiceConfig contains configuration for LedgerService
type LedgerServiceConfig struct {
	UnitOfWork    billing.UnitOfWork
	Publisher     shared.EventPublisher
	Logger        *zap.Logger
	InvoicePrefix string
	Clock         func() time.Time
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(cfg LedgerServiceConfig) *LedgerService {
	s := &LedgerService{
		uow:       cfg.UnitOfWork,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		prefix:    cfg.InvoicePrefix,
		now:       cfg.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.prefix == "" {
		s.prefix = DefaultInvoicePrefix
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// CreateInvoiceInput describes a new invoice
type CreateInvoiceInput struct {
	BranchID    *uuid.UUID
	MemberID    *uuid.UUID
	TotalAmount decimal.Decimal
	DueDate     *time.Time
	// Currency is an ISO 4217 code, billing.DefaultCurrency when empty
	Currency string
}

// RecordPaymentInput describes a completed payment
type RecordPaymentInput struct {
	InvoiceID        uuid.UUID
	Amount           decimal.Decimal
	Currency         string
	Method           billing.PaymentMethod
	GatewayOrderID   string
	GatewayPaymentID string
}

// RecordFailedPaymentInput describes a payment the gateway declined
type RecordFailedPaymentInput struct {
	InvoiceID        uuid.UUID
	Amount           decimal.Decimal
	Method           billing.PaymentMethod
	GatewayOrderID   string
	GatewayPaymentID string
	Reason           string
}

// RecordRefundInput describes a refund
type RecordRefundInput struct {
	InvoiceID       uuid.UUID
	Amount          decimal.Decimal
	Currency        string
	Method          billing.PaymentMethod
	Reason          string
	GatewayRefundID string
	PaymentID       *uuid.UUID
}

// InvoiceView is an invoice with its full history
type InvoiceView struct {
	Invoice  *billing.Invoice
	Payments []billing.InvoicePayment
	Refunds  []billing.InvoiceRefund
}

// PaymentResult is the outcome of RecordPayment. Duplicate is set when the
// gateway payment id was already recorded and nothing was written.
type PaymentResult struct {
	Invoice   *billing.Invoice
	Payment   *billing.InvoicePayment
	Duplicate bool
}

// RefundResult is the outcome of RecordRefund
type RefundResult struct {
	Invoice   *billing.Invoice
	Refund    *billing.InvoiceRefund
	Duplicate bool
}

// CreateInvoice issues a DRAFT invoice with the next number of the day
func (s *LedgerService) CreateInvoice(ctx context.Context, auth *identity.AuthContext, in CreateInvoiceInput) (*billing.Invoice, error) {
	if err := identity.RequirePermission(auth, identity.PermInvoicesCreate); err != nil {
		return nil, err
	}
	if err := billing.ValidateAmount(in.TotalAmount); err != nil {
		return nil, err
	}
	currency, err := billing.NormalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}

	branchID := in.BranchID
	scope := auth.Scope()
	if branchID == nil && scope.IsBranchScoped() {
		branchID = scope.BranchID
	}
	if !scope.CanAssignBranch(branchID) {
		return nil, shared.ErrForbidden.WithMessage("cannot create invoices outside your branch")
	}

	var invoice *billing.Invoice
	err = s.uow.Do(ctx, func(repos billing.Repositories) error {
		day := s.now()
		seq, err := repos.Invoices.NextInvoiceSequence(ctx, auth.TenantID(), day)
		if err != nil {
			return fmt.Errorf("reserve invoice number: %w", err)
		}
		invoice, err = billing.NewInvoice(auth.TenantID(), branchID, billing.FormatInvoiceNumber(s.prefix, day, seq), in.MemberID, in.TotalAmount, in.DueDate)
		if err != nil {
			return err
		}
		if err := invoice.SetCurrency(currency); err != nil {
			return err
		}
		return repos.Invoices.Create(ctx, invoice)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Invoice created",
		zap.String("tenant_id", auth.TenantID().String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("total", invoice.TotalAmount.StringFixed(2)),
		zap.String("currency", invoice.Currency))
	s.publish(ctx, invoice)
	return invoice, nil
}

// GetInvoice returns an invoice in the actor's scope with its history
func (s *LedgerService) GetInvoice(ctx context.Context, auth *identity.AuthContext, id uuid.UUID) (*InvoiceView, error) {
	if err := identity.RequirePermission(auth, identity.PermInvoicesView); err != nil {
		return nil, err
	}

	var view *InvoiceView
	err := s.uow.Do(ctx, func(repos billing.Repositories) error {
		invoice, err := repos.Invoices.FindByID(ctx, auth.Scope(), id)
		if err != nil {
			return err
		}
		h, err := loadHistory(ctx, repos, invoice)
		if err != nil {
			return err
		}
		view = &InvoiceView{Invoice: invoice, Payments: h.Payments, Refunds: h.Refunds}
		return nil
	})
	return view, err
}

// RecordPayment applies a completed payment. A gateway payment id that
// already has a completed payment is acknowledged without a second row.
func (s *LedgerService) RecordPayment(ctx context.Context, auth *identity.AuthContext, in RecordPaymentInput) (*PaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "record_payment",
		telemetry.SpanAttrInvoiceID, in.InvoiceID,
		telemetry.SpanAttrAmount, in.Amount,
		telemetry.SpanAttrPaymentMethod, string(in.Method))
	defer span.End()

	if err := identity.RequirePermission(auth, identity.PermInvoicesPay); err != nil {
		return nil, err
	}
	if err := billing.ValidateAmount(in.Amount); err != nil {
		return nil, err
	}
	if !in.Method.IsValid() {
		return nil, billing.ErrInvalidMethod
	}

	result := &PaymentResult{}
	err := s.uow.Do(ctx, func(repos billing.Repositories) error {
		invoice, err := repos.Invoices.FindByIDForUpdate(ctx, auth.Scope(), in.InvoiceID)
		if err != nil {
			return err
		}
		result.Invoice = invoice

		if in.GatewayPaymentID != "" {
			existing, err := repos.Payments.FindCompletedByGatewayPaymentID(ctx, invoice.TenantID, in.GatewayPaymentID)
			if err != nil {
				return err
			}
			if existing != nil {
				result.Payment = existing
				result.Duplicate = true
				return nil
			}
		}
		if err := invoice.CheckCurrency(in.Currency); err != nil {
			return err
		}

		h, err := loadHistory(ctx, repos, invoice)
		if err != nil {
			return err
		}
		payment, err := billing.NewCompletedPayment(invoice, in.Amount, in.Method,
			billing.GatewayRefs{OrderID: in.GatewayOrderID, PaymentID: in.GatewayPaymentID}, auth.ActorID())
		if err != nil {
			return err
		}
		if _, err := invoice.AddPayment(h, payment); err != nil {
			return err
		}
		if err := repos.Payments.Create(ctx, payment); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		if err := repos.Invoices.Save(ctx, invoice); err != nil {
			return err
		}
		result.Payment = payment
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceStatus, result.Invoice.Status.String())

	if result.Duplicate {
		s.logger.Info("Payment already recorded",
			zap.String("invoice_id", result.Invoice.ID.String()),
			zap.String("gateway_payment_id", in.GatewayPaymentID))
		return result, nil
	}
	s.logger.Info("Payment recorded",
		zap.String("tenant_id", result.Invoice.TenantID.String()),
		zap.String("invoice_id", result.Invoice.ID.String()),
		zap.String("payment_id", result.Payment.ID.String()),
		zap.String("amount", result.Payment.Amount.StringFixed(2)),
		zap.String("status", result.Invoice.Status.String()),
		zap.String("actor_id", auth.ActorID()))
	s.publish(ctx, result.Invoice)
	return result, nil
}

// RecordFailedPayment stores a FAILED stub. Totals are not touched.
func (s *LedgerService) RecordFailedPayment(ctx context.Context, auth *identity.AuthContext, in RecordFailedPaymentInput) (*billing.InvoicePayment, error) {
	if err := identity.RequirePermission(auth, identity.PermInvoicesPay); err != nil {
		return nil, err
	}

	var (
		invoice *billing.Invoice
		payment *billing.InvoicePayment
	)
	err := s.uow.Do(ctx, func(repos billing.Repositories) error {
		var err error
		invoice, err = repos.Invoices.FindByID(ctx, auth.Scope(), in.InvoiceID)
		if err != nil {
			return err
		}
		method := in.Method
		if !method.IsValid() {
			method = billing.PaymentMethodOnline
		}
		payment = billing.NewFailedPayment(invoice, in.Amount, method,
			billing.GatewayRefs{OrderID: in.GatewayOrderID, PaymentID: in.GatewayPaymentID}, in.Reason, auth.ActorID())
		return repos.Payments.Create(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Warn("Payment failed",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("gateway_payment_id", in.GatewayPaymentID),
		zap.String("reason", in.Reason))
	s.publishEvents(ctx, billing.NewPaymentFailedEvent(invoice, payment))
	return payment, nil
}

// RecordRefund applies a refund, bounded by the completed payments. A
// gateway refund id that was already recorded is acknowledged as a duplicate.
func (s *LedgerService) RecordRefund(ctx context.Context, auth *identity.AuthContext, in RecordRefundInput) (*RefundResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "record_refund",
		telemetry.SpanAttrInvoiceID, in.InvoiceID,
		telemetry.SpanAttrAmount, in.Amount,
		telemetry.SpanAttrPaymentMethod, string(in.Method))
	defer span.End()

	if err := identity.RequirePermission(auth, identity.PermInvoicesRefund); err != nil {
		return nil, err
	}
	if err := billing.ValidateAmount(in.Amount); err != nil {
		return nil, err
	}
	if !in.Method.IsValid() {
		return nil, billing.ErrInvalidMethod
	}

	result := &RefundResult{}
	err := s.uow.Do(ctx, func(repos billing.Repositories) error {
		invoice, err := repos.Invoices.FindByIDForUpdate(ctx, auth.Scope(), in.InvoiceID)
		if err != nil {
			return err
		}
		result.Invoice = invoice

		if in.GatewayRefundID != "" {
			existing, err := repos.Refunds.FindCompletedByGatewayRefundID(ctx, invoice.TenantID, in.GatewayRefundID)
			if err != nil {
				return err
			}
			if existing != nil {
				result.Refund = existing
				result.Duplicate = true
				return nil
			}
		}
		if err := invoice.CheckCurrency(in.Currency); err != nil {
			return err
		}

		h, err := loadHistory(ctx, repos, invoice)
		if err != nil {
			return err
		}
		refund, _, err := invoice.AddRefund(h, billing.RefundRequest{
			Amount:          in.Amount,
			Method:          in.Method,
			Reason:          in.Reason,
			GatewayRefundID: in.GatewayRefundID,
			PaymentID:       in.PaymentID,
		}, auth.ActorID())
		if err != nil {
			return err
		}
		if err := repos.Refunds.Create(ctx, refund); err != nil {
			return fmt.Errorf("insert refund: %w", err)
		}
		if err := repos.Invoices.Save(ctx, invoice); err != nil {
			return err
		}
		result.Refund = refund
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceStatus, result.Invoice.Status.String())

	if result.Duplicate {
		s.logger.Info("Refund already recorded",
			zap.String("invoice_id", result.Invoice.ID.String()),
			zap.String("gateway_refund_id", in.GatewayRefundID))
		return result, nil
	}
	s.logger.Info("Refund recorded",
		zap.String("tenant_id", result.Invoice.TenantID.String()),
		zap.String("invoice_id", result.Invoice.ID.String()),
		zap.String("credit_note", result.Refund.CreditNoteNumber),
		zap.String("amount", result.Refund.Amount.StringFixed(2)),
		zap.String("status", result.Invoice.Status.String()),
		zap.String("actor_id", auth.ActorID()))
	s.publish(ctx, result.Invoice)
	return result, nil
}

// RecordFailedRefund stores a FAILED refund reported by a gateway
func (s *LedgerService) RecordFailedRefund(ctx context.Context, auth *identity.AuthContext, in RecordRefundInput) (*billing.InvoiceRefund, error) {
	if err := identity.RequirePermission(auth, identity.PermInvoicesRefund); err != nil {
		return nil, err
	}

	var refund *billing.InvoiceRefund
	err := s.uow.Do(ctx, func(repos billing.Repositories) error {
		invoice, err := repos.Invoices.FindByID(ctx, auth.Scope(), in.InvoiceID)
		if err != nil {
			return err
		}
		method := in.Method
		if !method.IsValid() {
			method = billing.PaymentMethodOnline
		}
		refund = billing.NewFailedRefund(invoice, in.Amount, method, in.GatewayRefundID, in.Reason, auth.ActorID())
		refund.PaymentID = in.PaymentID
		return repos.Refunds.Create(ctx, refund)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Warn("Refund failed",
		zap.String("invoice_id", in.InvoiceID.String()),
		zap.String("gateway_refund_id", in.GatewayRefundID),
		zap.String("reason", in.Reason))
	return refund, nil
}

// CancelInvoice voids an invoice with no money applied
func (s *LedgerService) CancelInvoice(ctx context.Context, auth *identity.AuthContext, id uuid.UUID) (*billing.Invoice, error) {
	if err := identity.RequirePermission(auth, identity.PermInvoicesCreate); err != nil {
		return nil, err
	}

	var invoice *billing.Invoice
	err := s.uow.Do(ctx, func(repos billing.Repositories) error {
		var err error
		invoice, err = repos.Invoices.FindByIDForUpdate(ctx, auth.Scope(), id)
		if err != nil {
			return err
		}
		h, err := loadHistory(ctx, repos, invoice)
		if err != nil {
			return err
		}
		if err := invoice.Cancel(h); err != nil {
			return err
		}
		return repos.Invoices.Save(ctx, invoice)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Invoice cancelled",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("actor_id", auth.ActorID()))
	s.publish(ctx, invoice)
	return invoice, nil
}

func loadHistory(ctx context.Context, repos billing.Repositories, invoice *billing.Invoice) (billing.History, error) {
	payments, err := repos.Payments.ListByInvoice(ctx, invoice.TenantID, invoice.ID)
	if err != nil {
		return billing.History{}, fmt.Errorf("load payments: %w", err)
	}
	refunds, err := repos.Refunds.ListByInvoice(ctx, invoice.TenantID, invoice.ID)
	if err != nil {
		return billing.History{}, fmt.Errorf("load refunds: %w", err)
	}
	return billing.History{Payments: payments, Refunds: refunds}, nil
}

func (s *LedgerService) publish(ctx context.Context, invoice *billing.Invoice) {
	events := invoice.GetDomainEvents()
	invoice.ClearDomainEvents()
	s.publishEvents(ctx, events...)
}

func (s *LedgerService) publishEvents(ctx context.Context, events ...shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish domain events", zap.Error(err))
	}
}
