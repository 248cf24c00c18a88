package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/domain/identity"
	"github.com/clubledger/backend/internal/infrastructure/persistence/models"
	"github.com/clubledger/backend/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInvoiceRepository implements billing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice visible to scope
func (r *GormInvoiceRepository) FindByID(ctx context.Context, scope identity.Scope, id uuid.UUID) (*billing.Invoice, error) {
	return r.find(r.db.WithContext(ctx), scope, id)
}

// FindByIDForUpdate finds an invoice and takes a row lock on it
func (r *GormInvoiceRepository) FindByIDForUpdate(ctx context.Context, scope identity.Scope, id uuid.UUID) (*billing.Invoice, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), scope, id)
}

func (r *GormInvoiceRepository) find(db *gorm.DB, scope identity.Scope, id uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := db.Scopes(tenant.ActorScope(scope)).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billing.ErrInvoiceNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOwner returns the tenant of an invoice across tenants
func (r *GormInvoiceRepository) FindOwner(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var model models.InvoiceModel
	err := tenant.System(r.db.WithContext(ctx)).
		Select("id", "tenant_id").
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, billing.ErrInvoiceNotFound
		}
		return uuid.Nil, err
	}
	return model.TenantID, nil
}

// Create inserts a new invoice
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *billing.Invoice) error {
	if err := r.db.WithContext(ctx).Create(models.InvoiceModelFromDomain(invoice)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return billing.ErrInvoiceNumberExists
		}
		return err
	}
	return nil
}

// Save writes the derived totals and status. The update only applies when
// the stored version is the one the invoice was loaded at.
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", invoice.TenantID, invoice.ID, invoice.Version-1).
		Updates(map[string]any{
			"paid_amount":    invoice.PaidAmount,
			"balance_amount": invoice.BalanceAmount,
			"status":         invoice.Status,
			"version":        invoice.Version,
			"updated_at":     invoice.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return billing.ErrConcurrentModification
	}
	return nil
}

// NextInvoiceSequence bumps the per-tenant, per-day counter. The upsert
// holds the counter row lock until the surrounding transaction ends, so
// concurrent creators are serialized.
func (r *GormInvoiceRepository) NextInvoiceSequence(ctx context.Context, tenantID uuid.UUID, day time.Time) (int, error) {
	key := day.UTC().Format("20060102")
	db := r.db.WithContext(ctx)

	seq := models.InvoiceSequenceModel{TenantID: tenantID, Day: key, LastValue: 1}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "day"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_value": gorm.Expr("invoice_sequences.last_value + 1"),
		}),
	}).Create(&seq).Error; err != nil {
		return 0, err
	}

	var current models.InvoiceSequenceModel
	if err := db.Scopes(tenant.TenantScope(tenantID)).
		Where("day = ?", key).
		First(&current).Error; err != nil {
		return 0, err
	}
	return current.LastValue, nil
}
