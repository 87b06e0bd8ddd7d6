package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/raihan-dev/school-core-api/internal/models"
	appErrors "github.com/raihan-dev/school-core-api/pkg/errors"
	"github.com/raihan-dev/school-core-api/pkg/response"
)

// RequireRoles is a coarse role gate. It only screens out roles that could
// never perform the operation; per-target ownership checks happen in the
// authorization resolver, after this gate.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrRoleNotPermitted, "role is not permitted for this operation"))
			c.Abort()
			return
		}
		c.Next()
	}
}
