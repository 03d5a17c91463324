package utils

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// Error codes - business logic errors (4xx)
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeValidationFailed = "VALIDATION_FAILED"

	// Server errors (5xx)
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// SuccessResponse is the standard success response format
type SuccessResponse struct {
	Success bool  `json:"success"`
	Data    any   `json:"data,omitempty"`
	Meta    *Meta `json:"meta,omitempty"`
}

// Meta contains pagination metadata
type Meta struct {
	Total int64 `json:"total,omitempty"`
	Page  int   `json:"page,omitempty"`
	Limit int   `json:"limit,omitempty"`
}

// RequestIDKey is the key for request ID in context
const RequestIDKey = "request_id"

// NewErrorResponse creates a new error response
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}
}

// WithRequestID adds request ID to error response
func (e ErrorResponse) WithRequestID(reqID string) ErrorResponse {
	e.Error.RequestID = reqID
	return e
}

// WithDetails adds details to error response
func (e ErrorResponse) WithDetails(details any) ErrorResponse {
	e.Error.Details = details
	return e
}

// RespondWithError sends error response
func RespondWithError(c *gin.Context, status int, code, message string) {
	reqID := c.GetString(RequestIDKey)
	if reqID == "" {
		reqID = uuid.New().String()[:8]
	}

	response := NewErrorResponse(code, message).WithRequestID(reqID)
	c.JSON(status, response)
}

// RespondWithValidationError sends validation error (400)
func RespondWithValidationError(c *gin.Context, message string, details any) {
	reqID := c.GetString(RequestIDKey)
	response := NewErrorResponse(ErrCodeValidationFailed, message).
		WithRequestID(reqID)
	if details != nil {
		response = response.WithDetails(details)
	}
	c.JSON(http.StatusBadRequest, response)
}

// RespondWithNotFound sends 404
func RespondWithNotFound(c *gin.Context, resource string) {
	RespondWithError(c, http.StatusNotFound, ErrCodeNotFound,
		fmt.Sprintf("%s not found", resource))
}

// RespondWithUnauthorized sends 401
func RespondWithUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Authentication required"
	}
	RespondWithError(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// RespondWithForbidden sends 403
func RespondWithForbidden(c *gin.Context, message string) {
	if message == "" {
		message = "Access denied"
	}
	RespondWithError(c, http.StatusForbidden, ErrCodeForbidden, message)
}

// RespondWithRateLimited sends 429 with a Retry-After header
func RespondWithRateLimited(c *gin.Context, retryAfter time.Duration) {
	c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())))
	RespondWithError(c, http.StatusTooManyRequests, ErrCodeRateLimited,
		"Too many requests, please slow down")
}

// RespondWithConflict sends 409
func RespondWithConflict(c *gin.Context, message string) {
	RespondWithError(c, http.StatusConflict, ErrCodeConflict, message)
}

// RespondWithInternalError sends a generic 500. Internal error detail is
// never leaked here; callers log it server-side with the operation name.
func RespondWithInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, ErrCodeInternalError,
		"An unexpected error occurred")
}

// RespondWithSuccess sends success response
func RespondWithSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, NewSuccessResponse(data))
}

// RespondWithCreated sends 201 with success response
func RespondWithCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, NewSuccessResponse(data))
}

// NewSuccessResponse creates a new success response
func NewSuccessResponse(data any) SuccessResponse {
	return SuccessResponse{
		Success: true,
		Data:    data,
	}
}

// RequestIDMiddleware tags every request for tracing
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()[:8]
		}
		c.Set(RequestIDKey, reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}

// RecoveryMiddleware recovers from panics and logs the stack trace
func RecoveryMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				reqID := c.GetString(RequestIDKey)

				log.WithFields(logrus.Fields{
					"request_id": reqID,
					"panic":      fmt.Sprintf("%v", err),
					"stack":      string(debug.Stack()),
				}).Error("panic recovered")

				// Return generic error to client
				response := NewErrorResponse(ErrCodeInternalError,
					"An unexpected error occurred").
					WithRequestID(reqID)
				c.JSON(http.StatusInternalServerError, response)
				c.Abort()
			}
		}()
		c.Next()
	}
}

// LoggerMiddleware emits one structured line per request
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(logrus.Fields{
			"request_id": c.GetString(RequestIDKey),
			"method":     c.Request.Method,
			"path":       path,
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
		})

		if status >= 500 {
			entry.Error("request failed")
		} else if status >= 400 {
			entry.Warn("request rejected")
		} else {
			entry.Info("request")
		}
	}
}

// PaginationParams extracts pagination from query params
func PaginationParams(c *gin.Context) (page, limit int, offset int) {
	page = 1
	limit = 20

	if p := c.Query("page"); p != "" {
		fmt.Sscanf(p, "%d", &page)
		if page < 1 {
			page = 1
		}
	}

	if l := c.Query("limit"); l != "" {
		fmt.Sscanf(l, "%d", &limit)
		if limit < 1 {
			limit = 20
		}
		if limit > 100 {
			limit = 100 // Max limit
		}
	}

	offset = (page - 1) * limit
	return
}

// PaginatedResponse wraps list data with pagination metadata
func PaginatedResponse(c *gin.Context, data any, total int64, page, limit int) {
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    data,
		Meta: &Meta{
			Total: total,
			Page:  page,
			Limit: limit,
		},
	})
}
