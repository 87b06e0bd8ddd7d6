package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/raihan-dev/school-core-api/internal/middleware"
	"github.com/raihan-dev/school-core-api/internal/models"
	appErrors "github.com/raihan-dev/school-core-api/pkg/errors"
	"github.com/raihan-dev/school-core-api/pkg/retry"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		return models.Actor{}, false
	}
	return models.ActorFromClaims(claims), true
}

// transient reports whether an error is worth one more trip to the store.
// Client-caused failures (4xx) never are.
func transient(err error) bool {
	appErr := appErrors.FromError(err)
	return appErr != nil && appErr.Status >= 500
}

// withRetry wraps a read in the gateway's bounded retry. Mutations never go
// through here; a retried write could double-apply.
func withRetry(ctx context.Context, policy retry.Policy, fn func() error) error {
	return retry.Do(ctx, policy, transient, fn)
}
