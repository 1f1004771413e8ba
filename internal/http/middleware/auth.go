package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fitpulse.app/coach/internal/backend"
)

type contextKey string

const userContextKey contextKey = "user"

// RequireAuth validates the bearer token against the profile backend and
// attaches the resolved user to the request context.
func RequireAuth(profiles backend.ProfileClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}

		user, err := profiles.ValidateToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, backend.ErrInvalidToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to validate token"})
			return
		}

		ctx := context.WithValue(c.Request.Context(), userContextKey, user)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetUser returns the authenticated user, or nil outside RequireAuth routes.
func GetUser(ctx context.Context) *backend.User {
	user, _ := ctx.Value(userContextKey).(*backend.User)
	return user
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
