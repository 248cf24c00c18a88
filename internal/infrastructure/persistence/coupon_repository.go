package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/infrastructure/persistence/models"
	"github.com/clubledger/backend/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCouponRepository implements billing.CouponRepository using GORM
type GormCouponRepository struct {
	db *gorm.DB
}

// NewGormCouponRepository creates a new GormCouponRepository
func NewGormCouponRepository(db *gorm.DB) *GormCouponRepository {
	return &GormCouponRepository{db: db}
}

// Create inserts a coupon. The code is unique within the tenant.
func (r *GormCouponRepository) Create(ctx context.Context, coupon *billing.Coupon) error {
	if err := r.db.WithContext(ctx).Create(models.CouponModelFromDomain(coupon)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return billing.ErrCouponCodeExists.WithMessage("coupon code %s already exists", coupon.Code)
		}
		return err
	}
	return nil
}

// FindByCode looks a coupon up by its normalized code
func (r *GormCouponRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*billing.Coupon, error) {
	var model models.CouponModel
	err := r.db.WithContext(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Where("code = ?", billing.NormalizeCouponCode(code)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billing.ErrCouponNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// IncrementUsage bumps the counter in a single conditional UPDATE. Two
// concurrent redemptions of the last slot cannot both succeed: the loser
// matches zero rows.
func (r *GormCouponRepository) IncrementUsage(ctx context.Context, tenantID, couponID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CouponModel{}).
		Scopes(tenant.TenantScope(tenantID)).
		Where("id = ?", couponID).
		Where("max_usage_count IS NULL OR current_usage_count < max_usage_count").
		UpdateColumns(map[string]any{
			"current_usage_count": gorm.Expr("current_usage_count + 1"),
			"updated_at":          time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CreateUsage records a redemption
func (r *GormCouponRepository) CreateUsage(ctx context.Context, usage *billing.CouponUsage) error {
	return r.db.WithContext(ctx).Create(models.CouponUsageModelFromDomain(usage)).Error
}
