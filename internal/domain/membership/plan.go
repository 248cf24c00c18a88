package membership

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Plan is a sellable membership plan of a tenant
type Plan struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Name         string
	Price        decimal.Decimal
	DurationDays int
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewPlan creates an active plan
func NewPlan(tenantID uuid.UUID, name string, price decimal.Decimal, durationDays int) *Plan {
	now := time.Now().UTC()
	return &Plan{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Name:         name,
		Price:        price,
		DurationDays: durationDays,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
