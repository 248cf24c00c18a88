package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/domain/identity"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/clubledger/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Webhook outcomes reported to the observer
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
	OutcomeMalformed = "malformed"
	OutcomeError     = "error"
)

// PayloadArchive keeps a raw copy of webhook payloads outside the database
type PayloadArchive interface {
	Archive(ctx context.Context, gateway string, id uuid.UUID, payload []byte) error
}

// WebhookObserver is notified once per handled delivery
type WebhookObserver interface {
	WebhookHandled(ctx context.Context, gateway, eventType, outcome string, elapsed time.Duration)
}

// WebhookProcessor verifies, persists, dedupes and dispatches gateway
// deliveries into the ledger. Every delivery that reaches a known gateway
// is persisted before any ledger write.
type WebhookProcessor struct {
	gateways    map[string]billing.PaymentGateway
	events      billing.WebhookEventRepository
	uow         billing.UnitOfWork
	ledger      *LedgerService
	idempotency shared.IdempotencyStore
	idemTTL     time.Duration
	archive     PayloadArchive
	observer    WebhookObserver
	logger      *zap.Logger
}

// WebhookProcessorConfig contains configuration for WebhookProcessor.
// IdempotencyStore, Archive and Observer are optional.
type WebhookProcessorConfig struct {
	Gateways         []billing.PaymentGateway
	Events           billing.WebhookEventRepository
	UnitOfWork       billing.UnitOfWork
	Ledger           *LedgerService
	IdempotencyStore shared.IdempotencyStore
	IdempotencyTTL   time.Duration
	Archive          PayloadArchive
	Observer         WebhookObserver
	Logger           *zap.Logger
}

// NewWebhookProcessor creates a new WebhookProcessor
func NewWebhookProcessor(cfg WebhookProcessorConfig) *WebhookProcessor {
	p := &WebhookProcessor{
		gateways:    make(map[string]billing.PaymentGateway, len(cfg.Gateways)),
		events:      cfg.Events,
		uow:         cfg.UnitOfWork,
		ledger:      cfg.Ledger,
		idempotency: cfg.IdempotencyStore,
		idemTTL:     cfg.IdempotencyTTL,
		archive:     cfg.Archive,
		observer:    cfg.Observer,
		logger:      cfg.Logger,
	}
	for _, gw := range cfg.Gateways {
		p.gateways[strings.ToLower(gw.Name())] = gw
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.idemTTL <= 0 {
		p.idemTTL = shared.DefaultIdempotencyTTL
	}
	return p
}

// WebhookResult is returned for every delivery the processor accepted.
// Processed is false when the event was stored but could not be applied.
type WebhookResult struct {
	WebhookEventID uuid.UUID `json:"webhook_event_id"`
	EventID        string    `json:"event_id,omitempty"`
	EventType      string    `json:"event_type,omitempty"`
	Processed      bool      `json:"processed"`
	Duplicate      bool      `json:"duplicate,omitempty"`
	Message        string    `json:"message,omitempty"`
}

// Process handles one delivery. A nil error means the gateway should be
// told 2xx, even when the result is not Processed. Signature failures
// return shared.ErrSignature, malformed payloads shared.ErrValidation,
// and anything else is an infrastructure error worth a gateway retry.
func (p *WebhookProcessor) Process(ctx context.Context, gatewayName string, payload []byte, signature string) (result *WebhookResult, err error) {
	start := time.Now()
	gateway := strings.ToLower(strings.TrimSpace(gatewayName))
	eventType := ""
	outcome := OutcomeError
	ctx, span := telemetry.StartServiceSpan(ctx, "webhook", "process", telemetry.SpanAttrPaymentGateway, gateway)
	defer func() {
		telemetry.SetAttributes(span,
			telemetry.SpanAttrEventType, eventType,
			telemetry.SpanAttrWebhookOutcome, outcome)
		telemetry.RecordError(span, err)
		span.End()
		if p.observer != nil {
			p.observer.WebhookHandled(ctx, gateway, eventType, outcome, time.Since(start))
		}
	}()

	gw, ok := p.gateways[gateway]
	if !ok {
		outcome = OutcomeRejected
		return nil, shared.ErrNotFound.WithMessage("unknown payment gateway %q", gatewayName)
	}

	verified, verr := gw.Verify(payload, signature)
	if verr != nil {
		outcome = OutcomeRejected
		rejected := billing.NewRejectedWebhookEvent(gateway, payload, signature, verr.Error())
		if _, err := p.events.Insert(ctx, rejected); err != nil {
			p.logger.Error("Failed to persist rejected webhook", zap.String("gateway", gateway), zap.Error(err))
		}
		p.logger.Warn("Webhook signature rejected",
			zap.String("gateway", gateway),
			zap.String("webhook_event_id", rejected.ID.String()),
			zap.Error(verr))
		return nil, shared.ErrSignature
	}
	if !verified {
		p.logger.Warn("Webhook signature verification skipped, no secret configured", zap.String("gateway", gateway))
	}

	gev, perr := gw.Parse(payload)
	if perr != nil {
		outcome = OutcomeMalformed
		malformed := billing.NewWebhookEvent(gateway, "", "", payload, signature, verified)
		malformed.MarkFailed("malformed payload: " + perr.Error())
		if _, err := p.events.Insert(ctx, malformed); err != nil {
			return nil, fmt.Errorf("persist malformed webhook: %w", err)
		}
		p.logger.Warn("Malformed webhook payload",
			zap.String("gateway", gateway),
			zap.String("webhook_event_id", malformed.ID.String()),
			zap.Error(perr))
		return nil, shared.ErrValidation.WithMessage("malformed webhook payload")
	}
	eventType = gev.Type
	telemetry.SetAttributes(span, telemetry.SpanAttrGatewayEventID, gev.ID)

	ev := billing.NewWebhookEvent(gateway, gev.Type, gev.ID, payload, signature, verified)
	if key := ev.DedupeKey(); key != "" && p.idempotency != nil {
		done, err := p.idempotency.IsProcessed(ctx, key)
		if err != nil {
			p.logger.Warn("Idempotency store unavailable, falling back to database", zap.Error(err))
		} else if done {
			outcome = OutcomeDuplicate
			return &WebhookResult{EventID: gev.ID, EventType: gev.Type, Processed: true, Duplicate: true, Message: "event already processed"}, nil
		}
	}

	inserted, err := p.events.Insert(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("persist webhook: %w", err)
	}
	if !inserted {
		existing, err := p.events.FindByGatewayEventID(ctx, gateway, gev.ID)
		if err != nil {
			return nil, fmt.Errorf("load duplicate webhook: %w", err)
		}
		if existing.IsProcessed {
			outcome = OutcomeDuplicate
			p.rememberProcessed(ctx, existing)
			p.logger.Info("Duplicate webhook acknowledged",
				zap.String("gateway", gateway),
				zap.String("event_id", gev.ID))
			return &WebhookResult{
				WebhookEventID: existing.ID,
				EventID:        gev.ID,
				EventType:      gev.Type,
				Processed:      true,
				Duplicate:      true,
				Message:        "event already processed",
			}, nil
		}
		// redelivery of an event that never applied: retry it in place
		existing.Signature = signature
		existing.IsVerified = verified
		ev = existing
	} else if p.archive != nil {
		if err := p.archive.Archive(ctx, gateway, ev.ID, payload); err != nil {
			p.logger.Warn("Failed to archive webhook payload",
				zap.String("webhook_event_id", ev.ID.String()),
				zap.Error(err))
		}
	}

	result, outcome, err = p.dispatch(ctx, ev, gev)
	return result, err
}

// Replay dispatches a stored, unprocessed event again
func (p *WebhookProcessor) Replay(ctx context.Context, auth *identity.AuthContext, id uuid.UUID) (*WebhookResult, error) {
	if err := identity.RequirePermission(auth, identity.PermWebhooksReplay); err != nil {
		return nil, err
	}
	ev, err := p.events.FindByID(ctx, auth.TenantID(), id)
	if err != nil {
		return nil, err
	}
	if !ev.CanReplay() {
		return nil, billing.ErrWebhookNotReplayable
	}
	gw, ok := p.gateways[ev.Gateway]
	if !ok {
		return nil, shared.ErrNotFound.WithMessage("unknown payment gateway %q", ev.Gateway)
	}
	gev, err := gw.Parse([]byte(ev.Payload))
	if err != nil {
		return nil, shared.ErrValidation.WithMessage("stored payload cannot be decoded")
	}

	start := time.Now()
	result, outcome, err := p.dispatch(ctx, ev, gev)
	if p.observer != nil {
		p.observer.WebhookHandled(ctx, ev.Gateway, gev.Type, outcome, time.Since(start))
	}
	if err == nil {
		p.logger.Info("Webhook replayed",
			zap.String("webhook_event_id", ev.ID.String()),
			zap.Bool("processed", result.Processed),
			zap.String("actor_id", auth.ActorID()))
	}
	return result, err
}

// GetEvent returns one webhook event of the actor's tenant
func (p *WebhookProcessor) GetEvent(ctx context.Context, auth *identity.AuthContext, id uuid.UUID) (*billing.WebhookEvent, error) {
	if err := identity.RequirePermission(auth, identity.PermWebhooksView); err != nil {
		return nil, err
	}
	return p.events.FindByID(ctx, auth.TenantID(), id)
}

// ListEvents pages through the webhook events of the actor's tenant
func (p *WebhookProcessor) ListEvents(ctx context.Context, auth *identity.AuthContext, filter shared.Filter) (*shared.Paginated[billing.WebhookEvent], error) {
	if err := identity.RequirePermission(auth, identity.PermWebhooksView); err != nil {
		return nil, err
	}
	filter = filter.Normalize()
	items, total, err := p.events.List(ctx, auth.TenantID(), filter)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

func (p *WebhookProcessor) dispatch(ctx context.Context, ev *billing.WebhookEvent, gev *billing.GatewayEvent) (*WebhookResult, string, error) {
	ev.BeginAttempt()
	result := &WebhookResult{WebhookEventID: ev.ID, EventID: gev.ID, EventType: gev.Type}

	tenantID, err := p.apply(ctx, gev)
	if tenantID != uuid.Nil {
		ev.TenantID = &tenantID
	}

	if err != nil {
		ev.MarkFailed(err.Error())
		if uerr := p.events.Update(ctx, ev); uerr != nil {
			p.logger.Error("Failed to record webhook failure",
				zap.String("webhook_event_id", ev.ID.String()),
				zap.Error(uerr))
		}
		if !isBusinessError(err) {
			p.logger.Error("Webhook dispatch failed",
				zap.String("webhook_event_id", ev.ID.String()),
				zap.String("event_type", gev.Type),
				zap.Error(err))
			return nil, OutcomeError, err
		}
		p.logger.Warn("Webhook not applied",
			zap.String("webhook_event_id", ev.ID.String()),
			zap.String("event_type", gev.Type),
			zap.Error(err))
		result.Message = err.Error()
		return result, OutcomeFailed, nil
	}

	ev.MarkProcessed()
	if err := p.events.Update(ctx, ev); err != nil {
		return nil, OutcomeError, fmt.Errorf("record webhook outcome: %w", err)
	}
	p.rememberProcessed(ctx, ev)

	result.Processed = true
	outcome := OutcomeProcessed
	if gev.Kind == billing.GatewayIgnored {
		outcome = OutcomeIgnored
		result.Message = "event type not handled"
	}
	p.logger.Info("Webhook processed",
		zap.String("webhook_event_id", ev.ID.String()),
		zap.String("event_id", gev.ID),
		zap.String("event_type", gev.Type),
		zap.String("outcome", outcome))
	return result, outcome, nil
}

// apply routes a gateway event into the ledger under the system context of
// the owning tenant. It returns the tenant once resolved.
func (p *WebhookProcessor) apply(ctx context.Context, gev *billing.GatewayEvent) (uuid.UUID, error) {
	switch gev.Kind {
	case billing.GatewayPaymentSucceeded, billing.GatewayPaymentFailed:
		tenantID, auth, err := p.invoiceOwner(ctx, gev.InvoiceID)
		if err != nil {
			return tenantID, err
		}
		if gev.Kind == billing.GatewayPaymentFailed {
			_, err = p.ledger.RecordFailedPayment(ctx, auth, RecordFailedPaymentInput{
				InvoiceID:        *gev.InvoiceID,
				Amount:           gev.Amount,
				Method:           billing.PaymentMethodOnline,
				GatewayOrderID:   gev.GatewayOrderID,
				GatewayPaymentID: gev.GatewayPaymentID,
				Reason:           gev.FailureReason,
			})
			return tenantID, err
		}
		_, err = p.ledger.RecordPayment(ctx, auth, RecordPaymentInput{
			InvoiceID:        *gev.InvoiceID,
			Amount:           gev.Amount,
			Currency:         gev.Currency,
			Method:           billing.PaymentMethodOnline,
			GatewayOrderID:   gev.GatewayOrderID,
			GatewayPaymentID: gev.GatewayPaymentID,
		})
		return tenantID, err

	case billing.GatewayRefundSucceeded, billing.GatewayRefundFailed:
		tenantID, invoiceID, paymentID, err := p.refundTarget(ctx, gev.GatewayPaymentID)
		if err != nil {
			return tenantID, err
		}
		auth, err := identity.SystemContext(tenantID)
		if err != nil {
			return tenantID, err
		}
		in := RecordRefundInput{
			InvoiceID:       invoiceID,
			Amount:          gev.Amount,
			Currency:        gev.Currency,
			Method:          billing.PaymentMethodOnline,
			Reason:          "gateway refund " + gev.GatewayRefundID,
			GatewayRefundID: gev.GatewayRefundID,
			PaymentID:       &paymentID,
		}
		if gev.Kind == billing.GatewayRefundFailed {
			in.Reason = gev.FailureReason
			_, err = p.ledger.RecordFailedRefund(ctx, auth, in)
			return tenantID, err
		}
		_, err = p.ledger.RecordRefund(ctx, auth, in)
		return tenantID, err

	default:
		return uuid.Nil, nil
	}
}

func (p *WebhookProcessor) invoiceOwner(ctx context.Context, invoiceID *uuid.UUID) (uuid.UUID, *identity.AuthContext, error) {
	if invoiceID == nil {
		return uuid.Nil, nil, billing.ErrInvoiceNotFound.WithMessage("event metadata carries no invoice_id")
	}
	var tenantID uuid.UUID
	err := p.uow.Do(ctx, func(repos billing.Repositories) error {
		var err error
		tenantID, err = repos.Invoices.FindOwner(ctx, *invoiceID)
		return err
	})
	if err != nil {
		return uuid.Nil, nil, err
	}
	auth, err := identity.SystemContext(tenantID)
	return tenantID, auth, err
}

func (p *WebhookProcessor) refundTarget(ctx context.Context, gatewayPaymentID string) (tenantID, invoiceID, paymentID uuid.UUID, err error) {
	if gatewayPaymentID == "" {
		return uuid.Nil, uuid.Nil, uuid.Nil, billing.ErrPaymentNotFound.WithMessage("refund carries no gateway payment id")
	}
	err = p.uow.Do(ctx, func(repos billing.Repositories) error {
		var ferr error
		tenantID, invoiceID, paymentID, ferr = repos.Payments.FindInvoiceByGatewayPaymentID(ctx, gatewayPaymentID)
		return ferr
	})
	return tenantID, invoiceID, paymentID, err
}

func (p *WebhookProcessor) rememberProcessed(ctx context.Context, ev *billing.WebhookEvent) {
	key := ev.DedupeKey()
	if p.idempotency == nil || key == "" {
		return
	}
	if _, err := p.idempotency.MarkProcessed(ctx, key, p.idemTTL); err != nil {
		p.logger.Warn("Failed to mark webhook in idempotency store", zap.String("key", key), zap.Error(err))
	}
}

// isBusinessError reports whether err is a domain outcome that a retry
// cannot change. Concurrent modification is transient and is retried.
func isBusinessError(err error) bool {
	if errors.Is(err, shared.ErrConcurrentModification) {
		return false
	}
	var de *shared.DomainError
	return errors.As(err, &de)
}
