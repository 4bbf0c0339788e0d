package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/prostudio/server/internal/utils/requestctx"
)

const (
	// UserIDHeader is set by the upstream gateway after it authenticates
	// the session. This service never sees credentials.
	UserIDHeader = "X-User-ID"
	// UserIDKey is the gin context key for the user ID.
	UserIDKey = "user_id"
)

// Identity returns a middleware that requires the gateway-injected user
// ID on every request.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(UserIDHeader)
		userID, err := uuid.Parse(raw)
		if err != nil || userID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "UNAUTHENTICATED",
					"message": "missing or invalid user identity",
				},
			})
			return
		}

		c.Set(UserIDKey, userID)
		c.Request = c.Request.WithContext(requestctx.WithUserID(c.Request.Context(), userID))

		c.Next()
	}
}

// GetUserID returns the user ID from the gin context.
func GetUserID(c *gin.Context) uuid.UUID {
	if id, exists := c.Get(UserIDKey); exists {
		if userID, ok := id.(uuid.UUID); ok {
			return userID
		}
	}
	return uuid.Nil
}
