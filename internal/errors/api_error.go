// Package errors defines the error value services return and handlers render.
package errors

import (
	"net/http"
	"strings"
)

// APIError is rendered as {"error":{"code","message","details"}} with Status.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// New builds an APIError. An empty message becomes the lower-cased status text.
func New(status int, code, message string) *APIError {
	if message == "" {
		message = strings.ToLower(http.StatusText(status))
	}
	return &APIError{Status: status, Code: code, Message: message}
}

func BadRequest(code, message string) *APIError {
	return New(http.StatusBadRequest, code, message)
}

func Unauthorized(message string) *APIError {
	return New(http.StatusUnauthorized, "unauthorized", message)
}

func NotFound(code, message string) *APIError {
	return New(http.StatusNotFound, code, message)
}

func Conflict(code, message string) *APIError {
	return New(http.StatusConflict, code, message)
}

func Internal(message string) *APIError {
	return New(http.StatusInternalServerError, "internal_error", message)
}

// ServiceUnavailable reports a dependency that is shutting down or gone.
func ServiceUnavailable(message string) *APIError {
	return New(http.StatusServiceUnavailable, "unavailable", message)
}
