package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prostudio/server/internal/domain/generation"
)

// ErrorResponse represents a standard error response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error sends an error response with a code and message.
func Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{Code: code, Message: message})
}

// BadRequest sends a 400 Bad Request response.
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, "INVALID_REQUEST", message)
}

// NotFound sends a 404 Not Found response.
func NotFound(c *gin.Context, code, message string) {
	Error(c, http.StatusNotFound, code, message)
}

// InternalError sends a 500 Internal Server Error response.
func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

// StatusForFailure maps a terminal run failure onto an HTTP status. Caller
// mistakes are 4xx, upstream trouble is 502/504 and our own late-stage
// breakage is 500.
func StatusForFailure(kind generation.FailureKind) int {
	switch kind {
	case generation.FailureValidation:
		return http.StatusBadRequest
	case generation.FailurePaymentRequired:
		return http.StatusPaymentRequired
	case generation.FailureRateLimited:
		return http.StatusTooManyRequests
	case generation.FailureNotFound, generation.FailureTransport, generation.FailureProvider,
		generation.FailureDownload, generation.FailureUnknown:
		return http.StatusBadGateway
	case generation.FailurePollingTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
