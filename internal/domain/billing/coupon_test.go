package billing

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func createTestCoupon(t *testing.T, mutate func(*CouponSpec)) *Coupon {
	t.Helper()
	now := time.Now().UTC()
	spec := CouponSpec{
		Code:              " summer10 ",
		DiscountType:      DiscountTypePercentage,
		DiscountValue:     dec("10"),
		MinPurchaseAmount: dec("50"),
		ValidFrom:         now.Add(-time.Hour),
		ValidUntil:        timePtr(now.Add(24 * time.Hour)),
		MaxUsageCount:     intPtr(5),
	}
	if mutate != nil {
		mutate(&spec)
	}
	c, err := NewCoupon(uuid.New(), spec)
	require.NoError(t, err)
	return c
}

func TestNewCoupon(t *testing.T) {
	c := createTestCoupon(t, nil)
	assert.Equal(t, "SUMMER10", c.Code)
	assert.Equal(t, CouponStatusActive, c.Status)

	invalid := []struct {
		name   string
		mutate func(*CouponSpec)
	}{
		{"empty code", func(s *CouponSpec) { s.Code = "  " }},
		{"unknown type", func(s *CouponSpec) { s.DiscountType = "BOGO" }},
		{"zero value", func(s *CouponSpec) { s.DiscountValue = decimal.Zero }},
		{"percentage over 100", func(s *CouponSpec) { s.DiscountType = DiscountTypePercentage; s.DiscountValue = dec("101") }},
		{"window reversed", func(s *CouponSpec) { s.ValidUntil = timePtr(s.ValidFrom.Add(-time.Minute)) }},
		{"zero cap", func(s *CouponSpec) { s.MaxUsageCount = intPtr(0) }},
		{"negative max discount", func(s *CouponSpec) { m := dec("-10"); s.MaxDiscountAmount = &m }},
		{"zero max discount", func(s *CouponSpec) { m := decimal.Zero; s.MaxDiscountAmount = &m }},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			spec := CouponSpec{
				Code:          "X",
				DiscountType:  DiscountTypeFixed,
				DiscountValue: dec("5"),
				ValidFrom:     time.Now(),
			}
			tt.mutate(&spec)
			_, err := NewCoupon(uuid.New(), spec)
			assert.True(t, errors.Is(err, ErrInvalidCoupon))
		})
	}
}

func TestCoupon_ValidateChain(t *testing.T) {
	planA := uuid.New()
	planB := uuid.New()
	now := time.Now().UTC()

	tests := []struct {
		name    string
		mutate  func(*Coupon)
		check   CouponCheck
		wantErr error
	}{
		{
			name:  "valid",
			check: CouponCheck{PurchaseAmount: dec("100"), Now: now},
		},
		{
			name:    "inactive fails first even when also expired",
			mutate:  func(c *Coupon) { c.Status = CouponStatusInactive; c.ValidUntil = timePtr(now.Add(-time.Hour)) },
			check:   CouponCheck{PurchaseAmount: dec("100"), Now: now},
			wantErr: ErrCouponInactive,
		},
		{
			name:    "not yet valid",
			mutate:  func(c *Coupon) { c.ValidFrom = now.Add(time.Hour) },
			check:   CouponCheck{PurchaseAmount: dec("100"), Now: now},
			wantErr: ErrCouponNotYetValid,
		},
		{
			name:    "expired before usage cap",
			mutate:  func(c *Coupon) { c.ValidUntil = timePtr(now.Add(-time.Minute)); c.CurrentUsageCount = 5 },
			check:   CouponCheck{PurchaseAmount: dec("100"), Now: now},
			wantErr: ErrCouponExpired,
		},
		{
			name:    "usage cap reached before plan check",
			mutate:  func(c *Coupon) { c.CurrentUsageCount = 5; c.ApplicablePlans = []uuid.UUID{planA} },
			check:   CouponCheck{PlanID: &planB, PurchaseAmount: dec("100"), Now: now},
			wantErr: ErrUsageLimitReached,
		},
		{
			name:   "uncapped coupon ignores counter",
			mutate: func(c *Coupon) { c.MaxUsageCount = nil; c.CurrentUsageCount = 10_000 },
			check:  CouponCheck{PurchaseAmount: dec("100"), Now: now},
		},
		{
			name:    "plan not applicable",
			mutate:  func(c *Coupon) { c.ApplicablePlans = []uuid.UUID{planA} },
			check:   CouponCheck{PlanID: &planB, PurchaseAmount: dec("100"), Now: now},
			wantErr: ErrCouponNotApplicable,
		},
		{
			name:    "restricted coupon needs a plan",
			mutate:  func(c *Coupon) { c.ApplicablePlans = []uuid.UUID{planA} },
			check:   CouponCheck{PurchaseAmount: dec("100"), Now: now},
			wantErr: ErrCouponNotApplicable,
		},
		{
			name:  "empty plan list applies to all",
			check: CouponCheck{PlanID: &planB, PurchaseAmount: dec("100"), Now: now},
		},
		{
			name:    "minimum purchase not met",
			check:   CouponCheck{PurchaseAmount: dec("49.99"), Now: now},
			wantErr: ErrMinimumPurchaseNotMet,
		},
		{
			name:  "minimum purchase boundary",
			check: CouponCheck{PurchaseAmount: dec("50"), Now: now},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := createTestCoupon(t, nil)
			if tt.mutate != nil {
				tt.mutate(c)
			}
			err := c.Validate(tt.check)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.True(t, errors.Is(err, shared.ErrValidation))
		})
	}
}

func TestCoupon_DiscountFor(t *testing.T) {
	pct := createTestCoupon(t, func(s *CouponSpec) {
		s.DiscountValue = dec("20")
		s.MaxDiscountAmount = func() *decimal.Decimal { d := dec("30"); return &d }()
	})
	assert.True(t, pct.DiscountFor(dec("100")).Equal(dec("20")))
	assert.True(t, pct.DiscountFor(dec("500")).Equal(dec("30")))

	fixed := createTestCoupon(t, func(s *CouponSpec) {
		s.DiscountType = DiscountTypeFixed
		s.DiscountValue = dec("25")
	})
	assert.True(t, fixed.DiscountFor(dec("100")).Equal(dec("25")))
	assert.True(t, fixed.DiscountFor(dec("10")).Equal(dec("10")))
}

func TestWebhookEvent_Lifecycle(t *testing.T) {
	ev := NewWebhookEvent("Stripe", "payment_intent.succeeded", "evt_1", []byte(`{}`), "t=1,v1=ab", true)
	assert.Equal(t, "stripe", ev.Gateway)
	assert.Equal(t, "stripe:evt_1", ev.DedupeKey())
	assert.True(t, ev.CanReplay())

	ev.BeginAttempt()
	ev.MarkFailed("invoice missing")
	assert.False(t, ev.IsProcessed)
	assert.NotNil(t, ev.ProcessedAt)
	assert.Equal(t, "invoice missing", ev.ErrorMessage)
	assert.Equal(t, 1, ev.Attempts)

	ev.BeginAttempt()
	ev.MarkProcessed()
	assert.True(t, ev.IsProcessed)
	assert.Empty(t, ev.ErrorMessage)
	assert.False(t, ev.CanReplay())
}

func TestWebhookEvent_MarkFailedKeepsValidUTF8(t *testing.T) {
	ev := NewWebhookEvent("stripe", "payment_intent.payment_failed", "evt_2", []byte(`{}`), "", true)
	// one ASCII byte puts every two-byte rune boundary on an odd offset
	reason := "x" + strings.Repeat("é", MaxWebhookErrorLength)

	ev.MarkFailed(reason)
	assert.True(t, utf8.ValidString(ev.ErrorMessage))
	assert.LessOrEqual(t, len(ev.ErrorMessage), MaxWebhookErrorLength)
	assert.Equal(t, MaxWebhookErrorLength-1, len(ev.ErrorMessage))

	ev.MarkFailed("card declined")
	assert.Equal(t, "card declined", ev.ErrorMessage)
}

func TestNewRejectedWebhookEvent(t *testing.T) {
	ev := NewRejectedWebhookEvent("stripe", []byte("{}"), "bogus", "no valid signature")
	assert.Nil(t, ev.EventID)
	assert.Empty(t, ev.DedupeKey())
	assert.False(t, ev.IsVerified)
	assert.False(t, ev.IsProcessed)
	assert.False(t, ev.CanReplay())
	assert.Equal(t, "no valid signature", ev.ErrorMessage)
}
