package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/clubledger/backend/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormPaymentRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormPaymentRepository(db)
	ctx := context.Background()
	tenantID := testutil.TestTenantID()
	inv := createInvoice(t, db, tenantID, nil, "INV-1", "100")

	first, err := billing.NewCompletedPayment(inv, testutil.Dec("30"), billing.PaymentMethodOnline, billing.GatewayRefs{PaymentID: "pi_1"}, "user-1")
	require.NoError(t, err)
	failed := billing.NewFailedPayment(inv, testutil.Dec("70"), billing.PaymentMethodOnline, billing.GatewayRefs{PaymentID: "pi_2"}, "card_declined", "SYSTEM")
	failed.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, failed))

	t.Run("list keeps insertion order", func(t *testing.T) {
		payments, err := repo.ListByInvoice(ctx, tenantID, inv.ID)
		require.NoError(t, err)
		require.Len(t, payments, 2)
		assert.Equal(t, first.ID, payments[0].ID)
		assert.Equal(t, billing.EntryStatusFailed, payments[1].Status)
		assert.Equal(t, "card_declined", payments[1].FailureReason)

		other, err := repo.ListByInvoice(ctx, testutil.OtherTenantID(), inv.ID)
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("completed lookup ignores failed rows", func(t *testing.T) {
		got, err := repo.FindCompletedByGatewayPaymentID(ctx, tenantID, "pi_1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, first.ID, got.ID)

		got, err = repo.FindCompletedByGatewayPaymentID(ctx, tenantID, "pi_2")
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = repo.FindCompletedByGatewayPaymentID(ctx, tenantID, "")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("gateway lookup across tenants", func(t *testing.T) {
		tenant, invoiceID, paymentID, err := repo.FindInvoiceByGatewayPaymentID(ctx, "pi_1")
		require.NoError(t, err)
		assert.Equal(t, tenantID, tenant)
		assert.Equal(t, inv.ID, invoiceID)
		assert.Equal(t, first.ID, paymentID)

		_, _, _, err = repo.FindInvoiceByGatewayPaymentID(ctx, "pi_unknown")
		assert.True(t, errors.Is(err, billing.ErrPaymentNotFound))

		_, _, _, err = repo.FindInvoiceByGatewayPaymentID(ctx, "pi_2")
		assert.True(t, errors.Is(err, billing.ErrPaymentNotFound), "failed rows never settle an invoice")
	})

	t.Run("gateway lookup skips an earlier declined attempt", func(t *testing.T) {
		declined := billing.NewFailedPayment(inv, testutil.Dec("40"), billing.PaymentMethodOnline, billing.GatewayRefs{PaymentID: "pi_3"}, "card_declined", "SYSTEM")
		declined.CreatedAt = first.CreatedAt.Add(time.Minute)
		settled, err := billing.NewCompletedPayment(inv, testutil.Dec("40"), billing.PaymentMethodOnline, billing.GatewayRefs{PaymentID: "pi_3"}, "SYSTEM")
		require.NoError(t, err)
		settled.CreatedAt = declined.CreatedAt.Add(time.Minute)
		require.NoError(t, repo.Create(ctx, declined))
		require.NoError(t, repo.Create(ctx, settled))

		_, invoiceID, paymentID, err := repo.FindInvoiceByGatewayPaymentID(ctx, "pi_3")
		require.NoError(t, err)
		assert.Equal(t, inv.ID, invoiceID)
		assert.Equal(t, settled.ID, paymentID)
	})
}

func TestGormRefundRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormRefundRepository(db)
	ctx := context.Background()
	tenantID := testutil.TestTenantID()
	inv := createInvoice(t, db, tenantID, nil, "INV-1", "100")

	p, err := billing.NewCompletedPayment(inv, testutil.Dec("100"), billing.PaymentMethodCard, billing.GatewayRefs{}, "user-1")
	require.NoError(t, err)
	h, err := inv.AddPayment(billing.History{}, p)
	require.NoError(t, err)
	refund, _, err := inv.AddRefund(h, billing.RefundRequest{
		Amount:          testutil.Dec("25"),
		Method:          billing.PaymentMethodCard,
		GatewayRefundID: "re_1",
	}, "user-1")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, refund))

	refunds, err := repo.ListByInvoice(ctx, tenantID, inv.ID)
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	assert.Equal(t, refund.CreditNoteNumber, refunds[0].CreditNoteNumber)
	assert.True(t, refunds[0].Amount.Equal(testutil.Dec("25")))

	got, err := repo.FindCompletedByGatewayRefundID(ctx, tenantID, "re_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, refund.ID, got.ID)

	got, err = repo.FindCompletedByGatewayRefundID(ctx, testutil.OtherTenantID(), "re_1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func createCoupon(t *testing.T, tenantID uuid.UUID, code string, maxUses *int) *billing.Coupon {
	t.Helper()
	c, err := billing.NewCoupon(tenantID, billing.CouponSpec{
		Code:          code,
		DiscountType:  billing.DiscountTypeFixed,
		DiscountValue: testutil.Dec("10"),
		ValidFrom:     time.Now().UTC().Add(-time.Hour),
		MaxUsageCount: maxUses,
	})
	require.NoError(t, err)
	return c
}

func TestGormCouponRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormCouponRepository(db)
	ctx := context.Background()
	tenantID := testutil.TestTenantID()

	limit := 2
	c := createCoupon(t, tenantID, "spring", &limit)
	c.ApplicablePlans = []uuid.UUID{testutil.NewTestUUID("plan-a")}
	require.NoError(t, repo.Create(ctx, c))

	t.Run("code unique per tenant", func(t *testing.T) {
		err := repo.Create(ctx, createCoupon(t, tenantID, "SPRING", nil))
		assert.True(t, errors.Is(err, billing.ErrCouponCodeExists))
		assert.True(t, errors.Is(err, shared.ErrAlreadyExists))

		assert.NoError(t, repo.Create(ctx, createCoupon(t, testutil.OtherTenantID(), "SPRING", nil)))
	})

	t.Run("find normalizes code", func(t *testing.T) {
		got, err := repo.FindByCode(ctx, tenantID, " spring ")
		require.NoError(t, err)
		assert.Equal(t, c.ID, got.ID)
		assert.Equal(t, c.ApplicablePlans, got.ApplicablePlans)
		require.NotNil(t, got.MaxUsageCount)
		assert.Equal(t, 2, *got.MaxUsageCount)

		_, err = repo.FindByCode(ctx, tenantID, "nope")
		assert.True(t, errors.Is(err, billing.ErrCouponNotFound))
	})

	t.Run("increment stops at cap", func(t *testing.T) {
		for i := 0; i < limit; i++ {
			ok, err := repo.IncrementUsage(ctx, tenantID, c.ID)
			require.NoError(t, err)
			assert.True(t, ok)
		}
		ok, err := repo.IncrementUsage(ctx, tenantID, c.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := repo.FindByCode(ctx, tenantID, "SPRING")
		require.NoError(t, err)
		assert.Equal(t, limit, got.CurrentUsageCount)
	})

	t.Run("increment of another tenant's coupon matches nothing", func(t *testing.T) {
		uncapped := createCoupon(t, tenantID, "FREE", nil)
		require.NoError(t, repo.Create(ctx, uncapped))

		ok, err := repo.IncrementUsage(ctx, testutil.OtherTenantID(), uncapped.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		for i := 0; i < 5; i++ {
			ok, err = repo.IncrementUsage(ctx, tenantID, uncapped.ID)
			require.NoError(t, err)
			assert.True(t, ok)
		}
	})

	t.Run("usage rows", func(t *testing.T) {
		usage := billing.NewCouponUsage(c, uuid.New(), nil, nil, testutil.Dec("80"), "user-1")
		require.NoError(t, repo.CreateUsage(ctx, usage))
		assert.True(t, usage.DiscountAmount.Equal(testutil.Dec("10")))
	})
}

func TestGormWebhookEventRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormWebhookEventRepository(db)
	ctx := context.Background()
	tenantID := testutil.TestTenantID()

	ev := billing.NewWebhookEvent("stripe", "payment_intent.succeeded", "evt_1", []byte(`{"id":"evt_1"}`), "t=1,v1=aa", true)

	t.Run("insert dedupes on gateway and event id", func(t *testing.T) {
		inserted, err := repo.Insert(ctx, ev)
		require.NoError(t, err)
		assert.True(t, inserted)

		again := billing.NewWebhookEvent("stripe", "payment_intent.succeeded", "evt_1", []byte(`{}`), "", true)
		inserted, err = repo.Insert(ctx, again)
		require.NoError(t, err)
		assert.False(t, inserted)

		otherGateway := billing.NewWebhookEvent("razorpay", "payment.captured", "evt_1", []byte(`{}`), "", false)
		inserted, err = repo.Insert(ctx, otherGateway)
		require.NoError(t, err)
		assert.True(t, inserted)
	})

	t.Run("rejected deliveries never collide", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			inserted, err := repo.Insert(ctx, billing.NewRejectedWebhookEvent("stripe", []byte(`{}`), "bad", "signature mismatch"))
			require.NoError(t, err)
			assert.True(t, inserted)
		}
	})

	t.Run("update attributes and records outcome", func(t *testing.T) {
		ev.TenantID = &tenantID
		ev.BeginAttempt()
		ev.MarkFailed("invoice not found")
		require.NoError(t, repo.Update(ctx, ev))

		got, err := repo.FindByGatewayEventID(ctx, "stripe", "evt_1")
		require.NoError(t, err)
		assert.Equal(t, ev.ID, got.ID)
		assert.False(t, got.IsProcessed)
		assert.Equal(t, "invoice not found", got.ErrorMessage)
		assert.Equal(t, 1, got.Attempts)
		require.NotNil(t, got.TenantID)
		assert.Equal(t, tenantID, *got.TenantID)

		byID, err := repo.FindByID(ctx, tenantID, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, ev.ID, byID.ID)

		_, err = repo.FindByID(ctx, testutil.OtherTenantID(), ev.ID)
		assert.True(t, errors.Is(err, billing.ErrWebhookNotFound))

		_, err = repo.FindByGatewayEventID(ctx, "stripe", "evt_missing")
		assert.True(t, errors.Is(err, billing.ErrWebhookNotFound))
	})

	t.Run("list filters within tenant", func(t *testing.T) {
		processed := billing.NewWebhookEvent("stripe", "charge.refunded", "evt_2", []byte(`{}`), "", true)
		processed.TenantID = &tenantID
		processed.MarkProcessed()
		_, err := repo.Insert(ctx, processed)
		require.NoError(t, err)

		filter := shared.DefaultFilter()
		events, total, err := repo.List(ctx, tenantID, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, events, 2)

		filter.Filters["is_processed"] = false
		events, total, err = repo.List(ctx, tenantID, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, ev.ID, events[0].ID)

		filter = shared.DefaultFilter()
		filter.PageSize = 1
		filter.OrderBy = "event_type; DROP TABLE webhook_events"
		events, total, err = repo.List(ctx, tenantID, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, events, 1)

		events, total, err = repo.List(ctx, testutil.OtherTenantID(), shared.DefaultFilter())
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, events)
	})
}

func TestBillingUnitOfWork_RollsBack(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	uow := NewBillingUnitOfWork(db)
	ctx := context.Background()
	tenantID := testutil.TestTenantID()
	boom := errors.New("boom")

	var invoiceID uuid.UUID
	err := uow.Do(ctx, func(repos billing.Repositories) error {
		inv, err := billing.NewInvoice(tenantID, nil, "INV-ROLLBACK", nil, testutil.Dec("10"), nil)
		if err != nil {
			return err
		}
		invoiceID = inv.ID
		if err := repos.Invoices.Create(ctx, inv); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = NewGormInvoiceRepository(db).FindOwner(ctx, invoiceID)
	assert.True(t, errors.Is(err, billing.ErrInvoiceNotFound))
}
