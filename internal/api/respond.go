package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// respondError sends a standardized error response and logs it.
func respondError(c *gin.Context, logger *slog.Logger, status int, code, message string) {
	logger.Warn("http.error",
		"status", status,
		"code", code,
		"message", message,
		"path", c.Request.URL.Path,
		"method", c.Request.Method)

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{Code: code, Message: message},
	})
}
