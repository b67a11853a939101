package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "cortex/workspace/internal/errors"
	"cortex/workspace/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialsFunc func(ctx context.Context, email, password string) (*service.AuthResult, *apperrors.APIError)

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register responds 201 with {token, user}.
func (h *AuthHandler) Register(c *gin.Context) {
	withCredentials(c, http.StatusCreated, h.authService.Register)
}

// Login responds 200 with {token, user}.
func (h *AuthHandler) Login(c *gin.Context) {
	withCredentials(c, http.StatusOK, h.authService.Login)
}

func withCredentials(c *gin.Context, status int, authenticate credentialsFunc) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}
	result, apiErr := authenticate(c.Request.Context(), req.Email, req.Password)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(status, result)
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	user, apiErr := h.authService.CurrentUser(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
