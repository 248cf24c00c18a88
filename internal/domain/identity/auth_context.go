package identity

import (
	"context"
	"strings"

	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// SystemActorID identifies the trusted principal used for gateway callbacks
const SystemActorID = "SYSTEM"

// AuthContext is the resolved identity of one request. It is built once,
// never mutated, and passed explicitly to every core operation.
type AuthContext struct {
	actorID     string
	tenantID    uuid.UUID
	branchID    *uuid.UUID
	permissions PermissionSet
	roles       []string
}

// NewAuthContext validates and builds an AuthContext.
// Actor and tenant are mandatory. A nil permission list yields an empty
// set, so every permission check fails closed.
func NewAuthContext(actorID string, tenantID uuid.UUID, branchID *uuid.UUID, permissions, roles []string) (*AuthContext, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, shared.ErrUnauthorized.WithMessage("actor is required")
	}
	if tenantID == uuid.Nil {
		return nil, shared.ErrUnauthorized.WithMessage("tenant is required")
	}
	if branchID != nil && *branchID == uuid.Nil {
		branchID = nil
	}
	return &AuthContext{
		actorID:     actorID,
		tenantID:    tenantID,
		branchID:    shared.CloneUUID(branchID),
		permissions: NewPermissionSet(permissions),
		roles:       append([]string(nil), roles...),
	}, nil
}

// SystemContext returns the trusted tenant-wide principal for tenantID
func SystemContext(tenantID uuid.UUID) (*AuthContext, error) {
	return NewAuthContext(SystemActorID, tenantID, nil, []string{PermGlobal.String()}, []string{"system"})
}

func (a *AuthContext) ActorID() string      { return a.actorID }
func (a *AuthContext) TenantID() uuid.UUID  { return a.tenantID }
func (a *AuthContext) BranchID() *uuid.UUID { return shared.CloneUUID(a.branchID) }
func (a *AuthContext) IsSystem() bool       { return a.actorID == SystemActorID }

// Roles returns a copy of the actor's roles
func (a *AuthContext) Roles() []string {
	return append([]string(nil), a.roles...)
}

// Permissions returns the granted permission set
func (a *AuthContext) Permissions() PermissionSet {
	return a.permissions
}

// Scope returns the tenant/branch visibility of the actor
func (a *AuthContext) Scope() Scope {
	return Scope{TenantID: a.tenantID, BranchID: shared.CloneUUID(a.branchID)}
}

// Can reports whether the actor holds perm
func (a *AuthContext) Can(perm Permission) bool {
	return a != nil && a.permissions.Has(perm)
}

// RequirePermission is the guard every mutating operation calls first.
// A missing context is Unauthorized; a known actor without perm is Forbidden.
func RequirePermission(a *AuthContext, perm Permission) error {
	if a == nil || a.tenantID == uuid.Nil {
		return shared.ErrUnauthorized
	}
	if !a.permissions.Has(perm) {
		return shared.ErrForbidden.WithMessage("missing permission %s", perm)
	}
	return nil
}

type authContextKey struct{}

// WithAuthContext stores a on ctx
func WithAuthContext(ctx context.Context, a *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, a)
}

// FromContext returns the AuthContext on ctx, or Unauthorized when absent
func FromContext(ctx context.Context) (*AuthContext, error) {
	if ctx == nil {
		return nil, shared.ErrUnauthorized
	}
	a, ok := ctx.Value(authContextKey{}).(*AuthContext)
	if !ok || a == nil {
		return nil, shared.ErrUnauthorized
	}
	return a, nil
}
