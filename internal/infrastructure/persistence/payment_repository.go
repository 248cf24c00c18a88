package persistence

import (
	"context"
	"errors"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/infrastructure/persistence/models"
	"github.com/clubledger/backend/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPaymentRepository implements billing.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// Create appends a payment row
func (r *GormPaymentRepository) Create(ctx context.Context, payment *billing.InvoicePayment) error {
	return r.db.WithContext(ctx).Create(models.InvoicePaymentModelFromDomain(payment)).Error
}

// ListByInvoice returns every payment row of an invoice, oldest first
func (r *GormPaymentRepository) ListByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]billing.InvoicePayment, error) {
	var rows []models.InvoicePaymentModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	payments := make([]billing.InvoicePayment, len(rows))
	for i := range rows {
		payments[i] = rows[i].ToDomain()
	}
	return payments, nil
}

// FindCompletedByGatewayPaymentID returns nil, nil when nothing matches
func (r *GormPaymentRepository) FindCompletedByGatewayPaymentID(ctx context.Context, tenantID uuid.UUID, gatewayPaymentID string) (*billing.InvoicePayment, error) {
	if gatewayPaymentID == "" {
		return nil, nil
	}
	var row models.InvoicePaymentModel
	err := r.db.WithContext(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Where("gateway_payment_id = ? AND status = ?", gatewayPaymentID, billing.EntryStatusCompleted).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	p := row.ToDomain()
	return &p, nil
}

// FindInvoiceByGatewayPaymentID resolves a gateway payment id across tenants.
// A PaymentIntent keeps its id across a declined attempt and a later
// success, so only the oldest COMPLETED row qualifies.
func (r *GormPaymentRepository) FindInvoiceByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (uuid.UUID, uuid.UUID, uuid.UUID, error) {
	if gatewayPaymentID == "" {
		return uuid.Nil, uuid.Nil, uuid.Nil, billing.ErrPaymentNotFound
	}
	var row models.InvoicePaymentModel
	err := tenant.System(r.db.WithContext(ctx)).
		Select("id", "tenant_id", "invoice_id").
		Where("gateway_payment_id = ? AND status = ?", gatewayPaymentID, billing.EntryStatusCompleted).
		Order("created_at ASC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, uuid.Nil, uuid.Nil, billing.ErrPaymentNotFound
		}
		return uuid.Nil, uuid.Nil, uuid.Nil, err
	}
	return row.TenantID, row.InvoiceID, row.ID, nil
}

// GormRefundRepository implements billing.RefundRepository using GORM
type GormRefundRepository struct {
	db *gorm.DB
}

// NewGormRefundRepository creates a new GormRefundRepository
func NewGormRefundRepository(db *gorm.DB) *GormRefundRepository {
	return &GormRefundRepository{db: db}
}

// Create appends a refund row
func (r *GormRefundRepository) Create(ctx context.Context, refund *billing.InvoiceRefund) error {
	return r.db.WithContext(ctx).Create(models.InvoiceRefundModelFromDomain(refund)).Error
}

// ListByInvoice returns every refund row of an invoice, oldest first
func (r *GormRefundRepository) ListByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]billing.InvoiceRefund, error) {
	var rows []models.InvoiceRefundModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	refunds := make([]billing.InvoiceRefund, len(rows))
	for i := range rows {
		refunds[i] = rows[i].ToDomain()
	}
	return refunds, nil
}

// FindCompletedByGatewayRefundID returns nil, nil when nothing matches
func (r *GormRefundRepository) FindCompletedByGatewayRefundID(ctx context.Context, tenantID uuid.UUID, gatewayRefundID string) (*billing.InvoiceRefund, error) {
	if gatewayRefundID == "" {
		return nil, nil
	}
	var row models.InvoiceRefundModel
	err := r.db.WithContext(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Where("gateway_refund_id = ? AND status = ?", gatewayRefundID, billing.EntryStatusCompleted).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	refund := row.ToDomain()
	return &refund, nil
}
