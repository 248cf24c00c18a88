package identity

import (
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Scope is the visibility boundary of an actor: always a tenant, and a
// single branch when the actor is branch-restricted.
type Scope struct {
	TenantID uuid.UUID
	BranchID *uuid.UUID
}

// NewScope builds a scope. A nil tenant is never valid.
func NewScope(tenantID uuid.UUID, branchID *uuid.UUID) (Scope, error) {
	if tenantID == uuid.Nil {
		return Scope{}, shared.ErrUnauthorized.WithMessage("tenant is required")
	}
	return Scope{TenantID: tenantID, BranchID: shared.CloneUUID(branchID)}, nil
}

// IsBranchScoped reports whether the branch predicate applies
func (s Scope) IsBranchScoped() bool {
	return s.BranchID != nil
}

// Allows reports whether a row owned by (tenantID, branchID) is visible.
// Branch-scoped actors see only rows carrying their exact branch; rows with
// no branch are tenant-wide and need tenant-wide access.
func (s Scope) Allows(tenantID uuid.UUID, branchID *uuid.UUID) bool {
	if s.TenantID == uuid.Nil || tenantID != s.TenantID {
		return false
	}
	if s.BranchID == nil {
		return true
	}
	return branchID != nil && *branchID == *s.BranchID
}

// CanAssignBranch reports whether the actor may create a row in branchID
func (s Scope) CanAssignBranch(branchID *uuid.UUID) bool {
	return s.Allows(s.TenantID, branchID)
}
