package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/campushq/helpdesk-api/internal/middleware"
	"github.com/campushq/helpdesk-api/internal/models"
)

// claimsFromContext extracts the authenticated claims set by the JWT middleware.
func claimsFromContext(c *gin.Context) (*models.Claims, bool) {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.Claims)
	return claims, ok
}

// identityFromContext resolves the caller identity, or false when unauthenticated.
func identityFromContext(c *gin.Context) (models.Identity, bool) {
	claims, ok := claimsFromContext(c)
	if !ok {
		return models.Identity{}, false
	}
	return claims.Identity(), true
}
