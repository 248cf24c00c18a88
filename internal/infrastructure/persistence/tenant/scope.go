// Package tenant provides tenant and branch scoping for GORM queries.
//
// Repositories apply the scopes explicitly:
//
//	db.Scopes(tenant.ActorScope(scope)).First(&invoice, "id = ?", id)
//
// and the Guard callbacks reject any query on a tenant-owned table that
// reaches the database without a tenant predicate.
package tenant

import (
	"errors"

	"github.com/clubledger/backend/internal/domain/identity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrTenantIDRequired is returned when a scope is built without a tenant
var ErrTenantIDRequired = errors.New("tenant_id is required")

// TenantScope applies the tenant predicate. A nil tenant adds an error and a
// predicate that matches nothing.
func TenantScope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == uuid.Nil {
			_ = db.AddError(ErrTenantIDRequired)
			return db.Where("1 = 0")
		}
		return db.Where("tenant_id = ?", tenantID)
	}
}

// ActorScope applies the tenant predicate and, for branch-scoped actors,
// the exact-branch predicate. Rows without a branch are excluded for
// branch-scoped actors.
func ActorScope(scope identity.Scope) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = TenantScope(scope.TenantID)(db)
		if scope.IsBranchScoped() {
			db = db.Where("branch_id = ?", *scope.BranchID)
		}
		return db
	}
}
