package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/crestline-hq/crestline-api/internal/models"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
	"github.com/crestline-hq/crestline-api/pkg/response"
)

// SelfAccess marks a route as reachable by the user whose ID matches the
// :id path parameter, regardless of role.
const SelfAccess = "SELF"

// RBAC gates a route by role name. The allow set is resolved once at route
// registration, not per request.
func RBAC(allowed ...string) gin.HandlerFunc {
	roles := make(map[models.UserRole]struct{}, len(allowed))
	self := false
	for _, entry := range allowed {
		if entry == SelfAccess {
			self = true
			continue
		}
		roles[models.UserRole(entry)] = struct{}{}
	}

	return func(c *gin.Context) {
		raw, ok := c.Get(ContextUserKey)
		if !ok {
			abort(c, appErrors.ErrUnauthorized)
			return
		}
		claims, ok := raw.(*models.JWTClaims)
		if !ok {
			abort(c, appErrors.ErrUnauthorized)
			return
		}

		if _, ok := roles[claims.Role]; ok {
			c.Next()
			return
		}
		if self && c.Param("id") == claims.UserID && claims.UserID != "" {
			c.Next()
			return
		}

		abort(c, appErrors.ErrForbidden)
	}
}

// RequireRoles is RBAC with typed roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	return RBAC(names...)
}

func abort(c *gin.Context, err error) {
	response.Error(c, err)
	c.Abort()
}
