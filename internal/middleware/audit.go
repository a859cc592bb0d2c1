package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-clearance-api/internal/models"
	"github.com/noah-isme/sma-clearance-api/internal/service"
)

type eventRecorder interface {
	RecordEvent(ctx context.Context, action string, actorID, requestID *string, payload map[string]interface{})
}

// RequestOrigin copies the client address and user agent onto the request context for audit entries.
func RequestOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := service.WithRequestOrigin(c.Request.Context(), c.ClientIP(), c.GetHeader("User-Agent"))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Audit records an action after a successful request. The route's :id parameter, when present, scopes the entry.
func Audit(recorder eventRecorder, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		var userID *string
		if claims, ok := c.Get(ContextUserKey); ok {
			if user, ok := claims.(*models.JWTClaims); ok {
				userID = &user.UserID
			}
		}
		var requestID *string
		if id := c.Param("id"); id != "" {
			requestID = &id
		}

		recorder.RecordEvent(c.Request.Context(), action, userID, requestID, map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})
	}
}
