package billing

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/clubledger/backend/internal/infrastructure/persistence"
	"github.com/clubledger/backend/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// recordingPublisher captures published events in order
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

// MockArchive is a mock implementation of PayloadArchive
type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Archive(ctx context.Context, gateway string, id uuid.UUID, payload []byte) error {
	return m.Called(ctx, gateway, id, payload).Error(0)
}

// MockObserver is a mock implementation of WebhookObserver
type MockObserver struct {
	mock.Mock
}

func (m *MockObserver) WebhookHandled(ctx context.Context, gateway, eventType, outcome string, elapsed time.Duration) {
	m.Called(ctx, gateway, eventType, outcome, elapsed)
}

// stubGateway accepts the signature "valid" when a secret is set and
// decodes payloads shaped like stubPayload.
type stubGateway struct {
	secret string
}

type stubPayload struct {
	ID               string     `json:"id"`
	Type             string     `json:"type"`
	Kind             string     `json:"kind"`
	InvoiceID        *uuid.UUID `json:"invoice_id,omitempty"`
	Amount           string     `json:"amount"`
	Currency         string     `json:"currency,omitempty"`
	GatewayPaymentID string     `json:"payment_id,omitempty"`
	GatewayRefundID  string     `json:"refund_id,omitempty"`
	FailureReason    string     `json:"failure_reason,omitempty"`
}

func (g *stubGateway) Name() string { return "stub" }

func (g *stubGateway) Verify(_ []byte, header string) (bool, error) {
	if g.secret == "" {
		return false, nil
	}
	if header != "valid" {
		return false, errors.New("no valid signature found")
	}
	return true, nil
}

func (g *stubGateway) Parse(payload []byte) (*billing.GatewayEvent, error) {
	var p stubPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, errors.New("missing event id")
	}
	amount := decimal.Zero
	if p.Amount != "" {
		var err error
		if amount, err = decimal.NewFromString(p.Amount); err != nil {
			return nil, err
		}
	}
	kind := billing.GatewayEventKind(p.Kind)
	if kind == "" {
		kind = billing.GatewayIgnored
	}
	return &billing.GatewayEvent{
		ID:               p.ID,
		Type:             p.Type,
		Kind:             kind,
		InvoiceID:        p.InvoiceID,
		Amount:           amount,
		Currency:         p.Currency,
		GatewayPaymentID: p.GatewayPaymentID,
		GatewayRefundID:  p.GatewayRefundID,
		FailureReason:    p.FailureReason,
	}, nil
}

func stubEvent(t *testing.T, p stubPayload) []byte {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return raw
}

// ledgerFixture wires the billing services over one sqlite database
type ledgerFixture struct {
	db        *gorm.DB
	uow       *persistence.BillingUnitOfWork
	publisher *recordingPublisher
	ledger    *LedgerService
	coupons   *CouponService
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	uow := persistence.NewBillingUnitOfWork(db)
	pub := &recordingPublisher{}
	return &ledgerFixture{
		db:        db,
		uow:       uow,
		publisher: pub,
		ledger: NewLedgerService(LedgerServiceConfig{
			UnitOfWork: uow,
			Publisher:  pub,
			Logger:     zap.NewNop(),
			Clock:      func() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC) },
		}),
		coupons: NewCouponService(CouponServiceConfig{
			UnitOfWork: uow,
			Publisher:  pub,
			Logger:     zap.NewNop(),
		}),
	}
}

func (f *ledgerFixture) createInvoice(t *testing.T, tenantID uuid.UUID, total string) *billing.Invoice {
	t.Helper()
	auth := testutil.NewAuth(t, tenantID, "invoices.create")
	inv, err := f.ledger.CreateInvoice(context.Background(), auth, CreateInvoiceInput{TotalAmount: testutil.Dec(total)})
	require.NoError(t, err)
	return inv
}
