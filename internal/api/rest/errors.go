package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kubilitics/kubilitics-fleet/internal/binding"
	"github.com/kubilitics/kubilitics-fleet/internal/pkg/logger"
	"github.com/kubilitics/kubilitics-fleet/internal/service"
	"github.com/kubilitics/kubilitics-fleet/internal/topology"
)

// APIError represents a structured API error response
type APIError struct {
	Error     string            `json:"error"`
	Code      string            `json:"code,omitempty"`
	Message   string            `json:"message"`
	RequestID string            `json:"request_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Error codes for common scenarios
const (
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeBackendError      = "BACKEND_ERROR"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodePayloadTooLarge   = "PAYLOAD_TOO_LARGE"
)

// respondStructuredError sends a structured error response with error code and details
func respondStructuredError(w http.ResponseWriter, status int, code, message string, requestID string, details map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIError{
		Error:     message,
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Details:   details,
	})
}

// respondErrorWithCode is a convenience wrapper for structured errors
func respondErrorWithCode(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondStructuredError(w, status, code, message, logger.FromContext(r.Context()), nil)
}

// respondServiceError maps a service or domain error to its HTTP status and code.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	respondErrorWithCode(w, r, status, code, err.Error())
}

func classify(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge
	case errors.Is(err, binding.ErrInvalidLabelID), errors.Is(err, binding.ErrIncompleteCanvas):
		return http.StatusBadRequest, ErrCodeInvalidRequest
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, ErrCodeValidationFailed
	case errors.Is(err, binding.ErrNoMatch):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, binding.ErrDuplicateItem), errors.Is(err, binding.ErrNoDraft):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, binding.ErrBackend):
		return http.StatusBadGateway, ErrCodeBackendError
	case errors.Is(err, topology.ErrLayoutCycle):
		return http.StatusUnprocessableEntity, ErrCodeValidationFailed
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrCodeTimeout
	}
	return http.StatusInternalServerError, ErrCodeInternalError
}
