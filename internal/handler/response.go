package handler

import (
	"github.com/gin-gonic/gin"

	apperrors "cortex/workspace/internal/errors"
	"cortex/workspace/internal/middleware"
)

// writeError renders apiErr as {"error": {...}}. A nil error is reported as
// an internal error.
func writeError(c *gin.Context, apiErr *apperrors.APIError) {
	if apiErr == nil {
		apiErr = apperrors.Internal("")
	}
	c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
}

func writeInvalidJSON(c *gin.Context) {
	writeError(c, apperrors.BadRequest("invalid_json", "invalid request body"))
}

// requireUser returns the authenticated user id or writes a 401.
func requireUser(c *gin.Context) (string, bool) {
	userID := middleware.UserID(c)
	if userID == "" {
		writeError(c, apperrors.Unauthorized(""))
		return "", false
	}
	return userID, true
}
