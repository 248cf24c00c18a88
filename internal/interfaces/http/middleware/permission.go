package middleware

import (
	"github.com/clubledger/backend/internal/domain/identity"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
)

// RequirePermission guards a route. It must run after Authenticate.
// Services check the same permission again; this only fails fast.
func RequirePermission(perm identity.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		authCtx, ok := GetAuthContext(c)
		if !ok {
			AbortWithError(c, shared.ErrUnauthorized)
			return
		}
		if err := identity.RequirePermission(authCtx, perm); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
