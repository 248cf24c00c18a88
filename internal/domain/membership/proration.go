package membership

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ProrationPolicy decides the credit a member receives when changing plan.
// The result is recorded on the UPGRADED event; charging or crediting it is
// left to the checkout flow.
type ProrationPolicy interface {
	Credit(ctx context.Context, m *MemberMembership, from, to *Plan, effective time.Time) (decimal.Decimal, error)
}

// NoProration grants no credit. It is the default until a product rule exists.
type NoProration struct{}

// Credit always returns zero
func (NoProration) Credit(context.Context, *MemberMembership, *Plan, *Plan, time.Time) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

// ProrationFunc adapts a function to ProrationPolicy
type ProrationFunc func(ctx context.Context, m *MemberMembership, from, to *Plan, effective time.Time) (decimal.Decimal, error)

// Credit calls f
func (f ProrationFunc) Credit(ctx context.Context, m *MemberMembership, from, to *Plan, effective time.Time) (decimal.Decimal, error) {
	return f(ctx, m, from, to, effective)
}
