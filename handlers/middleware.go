package handlers

import (
	"context"
	"net/http"

	"charforge/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// userEmailHeader carries the caller's email, resolved by the fronting
// gateway. The service trusts it; authentication itself happens upstream.
const userEmailHeader = "X-User-Email"

const userContextKey = "charforge.user"

// UserResolver maps an authenticated email to a user record.
type UserResolver interface {
	FindOrCreateUser(ctx context.Context, email string) (models.User, error)
}

// Auth resolves the email header to a user and stores it on the request
// context. Requests without the header are rejected.
func Auth(resolver UserResolver, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.GetHeader(userEmailHeader)
		if email == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing " + userEmailHeader + " header"})
			return
		}
		user, err := resolver.FindOrCreateUser(c.Request.Context(), email)
		if err != nil {
			logger.Error().Err(err).Msg("failed to resolve user")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve user"})
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) models.User {
	user, _ := c.MustGet(userContextKey).(models.User)
	return user
}
