package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/treehole/backend/internal/auth"
	apierrors "github.com/treehole/backend/internal/errors"
	"github.com/treehole/backend/internal/models"
)

// RequireAuth validates the bearer token and stores the authenticated user
// in the request context under "user".
func RequireAuth(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			apiErr := apierrors.Unauthorized("no token provided")
			c.AbortWithStatusJSON(apiErr.Status, apiErr)
			return
		}
		token = strings.TrimPrefix(token, "Bearer ")

		user, err := authService.VerifyToken(token)
		if err != nil {
			apiErr := apierrors.Unauthorized("invalid or expired token")
			c.AbortWithStatusJSON(apiErr.Status, apiErr)
			return
		}

		c.Set("user", user)
		c.Set("user_id", user.ID)
		c.Next()
	}
}

// CurrentUser returns the authenticated user set by RequireAuth.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}
