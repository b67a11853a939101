package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "cortex/workspace/internal/errors"
	"cortex/workspace/internal/service"
)

const UserIDContextKey = "userID"

// Auth resolves the bearer token to a user id. EventSource clients cannot set
// headers, so GET requests may pass the token as access_token instead.
func Auth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, apiErr := bearerToken(c)
		if apiErr != nil {
			writeError(c, apiErr)
			return
		}

		userID, apiErr := authService.ParseToken(token)
		if apiErr != nil {
			writeError(c, apiErr)
			return
		}

		c.Set(UserIDContextKey, userID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, *apperrors.APIError) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if c.Request.Method == http.MethodGet {
			if token := strings.TrimSpace(c.Query("access_token")); token != "" {
				return token, nil
			}
		}
		return "", apperrors.Unauthorized("missing authorization header")
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", apperrors.Unauthorized("invalid authorization format")
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", apperrors.Unauthorized("invalid authorization format")
	}
	return token, nil
}

func UserID(c *gin.Context) string {
	value, ok := c.Get(UserIDContextKey)
	if !ok {
		return ""
	}
	userID, ok := value.(string)
	if !ok {
		return ""
	}
	return userID
}

func writeError(c *gin.Context, apiErr *apperrors.APIError) {
	c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
}
