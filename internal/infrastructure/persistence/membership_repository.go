package persistence

import (
	"context"
	"errors"

	"github.com/clubledger/backend/internal/domain/identity"
	"github.com/clubledger/backend/internal/domain/membership"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/clubledger/backend/internal/infrastructure/persistence/models"
	"github.com/clubledger/backend/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormMembershipRepository implements membership.MembershipRepository using GORM
type GormMembershipRepository struct {
	db *gorm.DB
}

// NewGormMembershipRepository creates a new GormMembershipRepository
func NewGormMembershipRepository(db *gorm.DB) *GormMembershipRepository {
	return &GormMembershipRepository{db: db}
}

// FindByID finds a membership visible to scope
func (r *GormMembershipRepository) FindByID(ctx context.Context, scope identity.Scope, id uuid.UUID) (*membership.MemberMembership, error) {
	return r.find(r.db.WithContext(ctx), scope, id)
}

// FindByIDForUpdate finds a membership and takes a row lock on it
func (r *GormMembershipRepository) FindByIDForUpdate(ctx context.Context, scope identity.Scope, id uuid.UUID) (*membership.MemberMembership, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), scope, id)
}

func (r *GormMembershipRepository) find(db *gorm.DB, scope identity.Scope, id uuid.UUID) (*membership.MemberMembership, error) {
	var model models.MemberMembershipModel
	if err := db.Scopes(tenant.ActorScope(scope)).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, membership.ErrMembershipNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new membership
func (r *GormMembershipRepository) Create(ctx context.Context, m *membership.MemberMembership) error {
	return r.db.WithContext(ctx).Create(models.MemberMembershipModelFromDomain(m)).Error
}

// Save persists a transition when the stored version still matches
func (r *GormMembershipRepository) Save(ctx context.Context, m *membership.MemberMembership) error {
	result := r.db.WithContext(ctx).
		Model(&models.MemberMembershipModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", m.TenantID, m.ID, m.Version-1).
		Updates(map[string]any{
			"plan_id":           m.PlanID,
			"end_date":          m.EndDate,
			"original_end_date": m.OriginalEndDate,
			"status":            m.Status,
			"freeze_days":       m.FreezeDays,
			"version":           m.Version,
			"updated_at":        m.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrentModification
	}
	return nil
}

// GormPlanRepository implements membership.PlanRepository using GORM
type GormPlanRepository struct {
	db *gorm.DB
}

// NewGormPlanRepository creates a new GormPlanRepository
func NewGormPlanRepository(db *gorm.DB) *GormPlanRepository {
	return &GormPlanRepository{db: db}
}

// FindByID finds a plan of tenantID
func (r *GormPlanRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*membership.Plan, error) {
	var model models.MembershipPlanModel
	err := r.db.WithContext(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, membership.ErrPlanNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a plan
func (r *GormPlanRepository) Create(ctx context.Context, plan *membership.Plan) error {
	return r.db.WithContext(ctx).Create(models.MembershipPlanModelFromDomain(plan)).Error
}

// GormLifecycleEventRepository implements membership.EventRepository using GORM
type GormLifecycleEventRepository struct {
	db *gorm.DB
}

// NewGormLifecycleEventRepository creates a new GormLifecycleEventRepository
func NewGormLifecycleEventRepository(db *gorm.DB) *GormLifecycleEventRepository {
	return &GormLifecycleEventRepository{db: db}
}

// Append inserts an event row
func (r *GormLifecycleEventRepository) Append(ctx context.Context, event *membership.LifecycleEvent) error {
	return r.db.WithContext(ctx).Create(models.MembershipLifecycleEventModelFromDomain(event)).Error
}

// ListByMembership returns the events of a membership, oldest first
func (r *GormLifecycleEventRepository) ListByMembership(ctx context.Context, tenantID, membershipID uuid.UUID) ([]membership.LifecycleEvent, error) {
	var rows []models.MembershipLifecycleEventModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Where("membership_id = ?", membershipID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	events := make([]membership.LifecycleEvent, len(rows))
	for i := range rows {
		events[i] = rows[i].ToDomain()
	}
	return events, nil
}
