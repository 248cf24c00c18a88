package middleware

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/clubledger/backend/internal/domain/identity"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/clubledger/backend/internal/infrastructure/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Identity headers set by the upstream gateway
const (
	HeaderUserID      = "X-User-ID"
	HeaderTenantID    = "X-Tenant-ID"
	HeaderBranchID    = "X-Branch-ID"
	HeaderPermissions = "X-User-Permissions"
	HeaderRoles       = "X-User-Roles"
	AuthHeaderKey     = "Authorization"
	BearerPrefix      = "Bearer "

	authContextKey = "auth_context"
)

// AuthConfig configures identity resolution
type AuthConfig struct {
	// JWTService enables bearer tokens when it has a secret
	JWTService *auth.JWTService
	Logger     *zap.Logger
}

// Authenticate resolves the request's AuthContext from a bearer token or
// from the identity headers. Requests without a usable identity are
// rejected with 401 before reaching any handler.
func Authenticate(cfg AuthConfig) gin.HandlerFunc {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		authCtx, err := resolveIdentity(c, cfg.JWTService)
		if err != nil {
			logger.Debug("Authentication failed",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			AbortWithError(c, err)
			return
		}

		c.Set(authContextKey, authCtx)
		c.Request = c.Request.WithContext(identity.WithAuthContext(c.Request.Context(), authCtx))
		c.Next()
	}
}

func resolveIdentity(c *gin.Context, jwtService *auth.JWTService) (*identity.AuthContext, error) {
	if header := c.GetHeader(AuthHeaderKey); header != "" && jwtService != nil && jwtService.Enabled() {
		if !strings.HasPrefix(header, BearerPrefix) {
			return nil, shared.ErrUnauthorized.WithMessage("invalid authorization header format")
		}
		claims, err := jwtService.Validate(strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix)))
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				return nil, shared.ErrUnauthorized.WithMessage("token has expired")
			}
			return nil, shared.ErrUnauthorized.WithMessage("invalid token")
		}
		authCtx, err := claims.AuthContext()
		if err != nil {
			return nil, shared.ErrUnauthorized.WithMessage("invalid token claims")
		}
		return authCtx, nil
	}
	return identityFromHeaders(c)
}

func identityFromHeaders(c *gin.Context) (*identity.AuthContext, error) {
	userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
	rawTenant := strings.TrimSpace(c.GetHeader(HeaderTenantID))
	if userID == "" || rawTenant == "" {
		return nil, shared.ErrUnauthorized.WithMessage("missing identity headers")
	}
	tenantID, err := uuid.Parse(rawTenant)
	if err != nil {
		return nil, shared.ErrUnauthorized.WithMessage("invalid tenant id")
	}

	var branchID *uuid.UUID
	if raw := strings.TrimSpace(c.GetHeader(HeaderBranchID)); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, shared.ErrUnauthorized.WithMessage("invalid branch id")
		}
		branchID = &id
	}

	permissions, err := jsonList(c.GetHeader(HeaderPermissions))
	if err != nil {
		return nil, shared.ErrUnauthorized.WithMessage("malformed permissions header")
	}
	roles, err := jsonList(c.GetHeader(HeaderRoles))
	if err != nil {
		return nil, shared.ErrUnauthorized.WithMessage("malformed roles header")
	}
	return identity.NewAuthContext(userID, tenantID, branchID, permissions, roles)
}

// jsonList decodes a JSON string array. An absent header is an empty list.
func jsonList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAuthContext returns the identity resolved by Authenticate
func GetAuthContext(c *gin.Context) (*identity.AuthContext, bool) {
	v, ok := c.Get(authContextKey)
	if !ok {
		return nil, false
	}
	authCtx, ok := v.(*identity.AuthContext)
	return authCtx, ok && authCtx != nil
}
