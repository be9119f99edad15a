package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/telsite/fieldops-api/internal/middleware"
	"github.com/telsite/fieldops-api/internal/models"
)

// claimsFromContext extracts the authenticated operator's claims, if any.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
