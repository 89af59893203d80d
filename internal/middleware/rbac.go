package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/reefdesk/dive-admin-api/internal/models"
	appErrors "github.com/reefdesk/dive-admin-api/pkg/errors"
	"github.com/reefdesk/dive-admin-api/pkg/response"
)

// SelfInstructor is a pseudo-role accepted by RBAC: it grants access when
// the route's :instructorId equals the instructor linked to the
// authenticated account. It lets instructors edit their own schedule
// without holding a staff role.
const SelfInstructor = "SELF_INSTRUCTOR"

// RBAC allows the request through when the caller holds one of the named
// roles, or matches the SelfInstructor rule if it is listed.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowSelf := false
	roles := make(map[models.UserRole]struct{}, len(allowed))
	for _, a := range allowed {
		if a == SelfInstructor {
			allowSelf = true
			continue
		}
		roles[models.UserRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if _, ok := roles[claims.Role]; ok {
			c.Next()
			return
		}
		if allowSelf && claims.InstructorID != nil {
			if target := c.Param("instructorId"); target != "" && target == *claims.InstructorID {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles gates a route on a plain role list.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}
