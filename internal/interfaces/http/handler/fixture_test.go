package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	billingapp "github.com/clubledger/backend/internal/application/billing"
	membershipapp "github.com/clubledger/backend/internal/application/membership"
	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/domain/membership"
	"github.com/clubledger/backend/internal/infrastructure/gateway"
	"github.com/clubledger/backend/internal/infrastructure/persistence"
	"github.com/clubledger/backend/internal/interfaces/http/handler"
	"github.com/clubledger/backend/internal/interfaces/http/middleware"
	"github.com/clubledger/backend/internal/interfaces/http/router"
	"github.com/clubledger/backend/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81/webhook"
	"gorm.io/gorm"
)

const testWebhookSecret = "whsec_handler_test"

type apiFixture struct {
	db       *gorm.DB
	engine   *gin.Engine
	tenantID uuid.UUID
	repos    membership.Repositories
}

func newAPIFixture(t *testing.T, webhookSecret string) *apiFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	billingUOW := persistence.NewBillingUnitOfWork(db)

	ledger := billingapp.NewLedgerService(billingapp.LedgerServiceConfig{UnitOfWork: billingUOW})
	coupons := billingapp.NewCouponService(billingapp.CouponServiceConfig{UnitOfWork: billingUOW})
	processor := billingapp.NewWebhookProcessor(billingapp.WebhookProcessorConfig{
		Gateways:   []billing.PaymentGateway{gateway.NewStripe(gateway.StripeConfig{WebhookSecret: webhookSecret})},
		Events:     persistence.NewGormWebhookEventRepository(db),
		UnitOfWork: billingUOW,
		Ledger:     ledger,
	})
	lifecycle := membershipapp.NewLifecycleService(membershipapp.LifecycleServiceConfig{
		UnitOfWork: persistence.NewMembershipUnitOfWork(db),
	})

	engine, err := router.New(router.Config{
		MaxBodySize: 1 << 20,
		Handlers: router.Handlers{
			Invoice:    handler.NewInvoiceHandler(ledger, nil),
			Membership: handler.NewMembershipHandler(lifecycle, nil),
			Coupon:     handler.NewCouponHandler(coupons, nil),
			Webhook:    handler.NewWebhookHandler(processor, 0, nil),
			Health:     handler.NewHealthHandler("clubledger", "test", nil),
		},
	})
	require.NoError(t, err)

	return &apiFixture{
		db:       db,
		engine:   engine,
		tenantID: testutil.TestTenantID(),
		repos:    persistence.NewMembershipRepositories(db),
	}
}

// headers builds identity headers for a tenant-wide actor
func (f *apiFixture) headers(perms ...string) map[string]string {
	return identityHeaders(f.tenantID, nil, perms...)
}

func identityHeaders(tenantID uuid.UUID, branchID *uuid.UUID, perms ...string) map[string]string {
	raw, _ := json.Marshal(perms)
	h := map[string]string{
		middleware.HeaderUserID:      "user-1",
		middleware.HeaderTenantID:    tenantID.String(),
		middleware.HeaderPermissions: string(raw),
	}
	if branchID != nil {
		h[middleware.HeaderBranchID] = branchID.String()
	}
	return h
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	return testutil.Do(t, f.engine, testutil.Request{Method: method, Path: path, Body: body, Headers: headers})
}

func (f *apiFixture) createInvoice(t *testing.T, total string) handler.InvoiceResponse {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/invoices", map[string]any{"total_amount": total}, f.headers("invoices.create"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return testutil.DecodeData[handler.InvoiceResponse](t, w)
}

func (f *apiFixture) pay(t *testing.T, invoiceID uuid.UUID, amount string) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, http.MethodPost, "/api/v1/invoices/"+invoiceID.String()+"/payments",
		map[string]any{"amount": amount, "method": "CASH"}, f.headers("invoices.pay"))
}

func (f *apiFixture) enroll(t *testing.T) (*membership.MemberMembership, *membership.Plan) {
	t.Helper()
	plan := membership.NewPlan(f.tenantID, "Basic", decimal.NewFromInt(100), 365)
	require.NoError(t, f.repos.Plans.Create(context.Background(), plan))
	start := time.Now().UTC().AddDate(0, -1, 0).Truncate(24 * time.Hour)
	m, err := membership.NewMemberMembership(f.tenantID, nil, uuid.New(), plan.ID, start, start.AddDate(1, 0, 0))
	require.NoError(t, err)
	require.NoError(t, f.repos.Memberships.Create(context.Background(), m))
	return m, plan
}

func (f *apiFixture) webhook(t *testing.T, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	headers := map[string]string{}
	if signature != "" {
		headers[handler.HeaderStripeSignature] = signature
	}
	return testutil.Do(t, f.engine, testutil.Request{
		Method:  http.MethodPost,
		Path:    "/webhooks/stripe",
		RawBody: payload,
		Headers: headers,
	})
}

func stripeSign(payload []byte, secret string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	}).Header
}

func paymentIntentEvent(eventID, paymentIntentID string, invoiceID uuid.UUID, cents int64) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":"payment_intent.succeeded","data":{"object":`+
		`{"id":%q,"object":"payment_intent","amount":%d,"amount_received":%d,"currency":"usd","metadata":{"invoice_id":%q}}}}`,
		eventID, paymentIntentID, cents, cents, invoiceID.String()))
}
