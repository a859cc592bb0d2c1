package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-clearance-api/internal/middleware"
	"github.com/noah-isme/sma-clearance-api/internal/models"
)

// actorFromContext returns the workflow actor carried by verified claims.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return models.Actor{}, false
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok || claims.UserID == "" || claims.Role == "" {
		return models.Actor{}, false
	}
	return claims.Actor(), true
}
