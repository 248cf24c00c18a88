package persistence

import (
	"context"
	"errors"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/clubledger/backend/internal/infrastructure/persistence/models"
	"github.com/clubledger/backend/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormWebhookEventRepository implements billing.WebhookEventRepository using GORM
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewGormWebhookEventRepository creates a new GormWebhookEventRepository
func NewGormWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

// Insert stores event unless (gateway, event_id) is already taken
func (r *GormWebhookEventRepository) Insert(ctx context.Context, event *billing.WebhookEvent) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "gateway"}, {Name: "event_id"}},
			DoNothing: true,
		}).
		Create(models.WebhookEventModelFromDomain(event))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// FindByGatewayEventID looks an event up by its dedupe key. Deliveries are
// not yet attributed to a tenant when this runs, so the lookup is system-wide.
func (r *GormWebhookEventRepository) FindByGatewayEventID(ctx context.Context, gateway, eventID string) (*billing.WebhookEvent, error) {
	var model models.WebhookEventModel
	err := tenant.System(r.db.WithContext(ctx)).
		Where("gateway = ? AND event_id = ?", gateway, eventID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billing.ErrWebhookNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByID finds an event attributed to tenantID
func (r *GormWebhookEventRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.WebhookEvent, error) {
	var model models.WebhookEventModel
	err := r.db.WithContext(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billing.ErrWebhookNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Update writes the processing outcome. The tenant column may be set for the
// first time here, so the statement is keyed by id alone.
func (r *GormWebhookEventRepository) Update(ctx context.Context, event *billing.WebhookEvent) error {
	result := tenant.System(r.db.WithContext(ctx)).
		Model(&models.WebhookEventModel{}).
		Where("id = ?", event.ID).
		Updates(map[string]any{
			"tenant_id":     event.TenantID,
			"event_type":    event.EventType,
			"is_processed":  event.IsProcessed,
			"processed_at":  event.ProcessedAt,
			"error_message": event.ErrorMessage,
			"attempts":      event.Attempts,
			"updated_at":    event.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return billing.ErrWebhookNotFound
	}
	return nil
}

// List returns a page of events attributed to tenantID. Supported filters:
// gateway, event_type, is_processed.
func (r *GormWebhookEventRepository) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]billing.WebhookEvent, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).
		Model(&models.WebhookEventModel{}).
		Scopes(tenant.TenantScope(tenantID))

	if v, ok := filter.Filters["gateway"].(string); ok && v != "" {
		query = query.Where("gateway = ?", v)
	}
	if v, ok := filter.Filters["event_type"].(string); ok && v != "" {
		query = query.Where("event_type = ?", v)
	}
	if v, ok := filter.Filters["is_processed"].(bool); ok {
		query = query.Where("is_processed = ?", v)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortField := ValidateSortField(filter.OrderBy, WebhookEventSortFields, "created_at")
	var rows []models.WebhookEventModel
	if err := query.
		Order(sortField + " " + ValidateSortOrder(filter.OrderDir)).
		Limit(filter.PageSize).
		Offset(filter.Offset()).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	events := make([]billing.WebhookEvent, len(rows))
	for i := range rows {
		events[i] = *rows[i].ToDomain()
	}
	return events, total, nil
}
