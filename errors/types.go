package errors

import (
	"net/http"
)

// NewError creates a GatewayError with full control over every field.
// Prefer the specialized constructors below.
func NewError(errType ErrorType, message string, code int, requestID string, details map[string]interface{}, err error) *GatewayError {
	return &GatewayError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewAuthError creates an authentication error. The message is fixed so the
// response never reveals why the credential was refused.
func NewAuthError(requestID string, err error) *GatewayError {
	return &GatewayError{
		Type:      AuthError,
		Message:   "unauthorized",
		Code:      http.StatusUnauthorized,
		RequestID: requestID,
		err:       err,
	}
}

// NewValidationError creates a request validation error (400).
//
// Example:
//
//	err := NewValidationError("req_123", "Invalid request body", map[string]interface{}{
//	    "field": "images",
//	    "error": "must not be empty",
//	})
func NewValidationError(requestID, message string, validationDetails map[string]interface{}) *GatewayError {
	return &GatewayError{
		Type:      ValidationError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		Details:   validationDetails,
	}
}

// NewProcessingError creates a pipeline failure error. The status code is
// chosen by the endpoint: document recognition answers 500, text tasks 400.
func NewProcessingError(requestID, message string, code int, err error) *GatewayError {
	return &GatewayError{
		Type:      ProcessingError,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		err:       err,
	}
}

// NewUpstreamError creates an error carrying the messaging platform's own
// description of the failure (400).
func NewUpstreamError(requestID, description string, err error) *GatewayError {
	return &GatewayError{
		Type:      UpstreamError,
		Message:   description,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		err:       err,
	}
}

// NewRateLimitError creates a rate limit error (429).
func NewRateLimitError(requestID string, retryAfter int) *GatewayError {
	return &GatewayError{
		Type:      RateLimitError,
		Message:   "Rate limit exceeded",
		Code:      http.StatusTooManyRequests,
		RequestID: requestID,
		Details: map[string]interface{}{
			"retry_after": retryAfter,
		},
	}
}

// NewOverloadError creates an error for a full admission queue (503).
func NewOverloadError(requestID string, queued int) *GatewayError {
	return &GatewayError{
		Type:      OverloadError,
		Message:   "Server is busy, try again later",
		Code:      http.StatusServiceUnavailable,
		RequestID: requestID,
		Details: map[string]interface{}{
			"queued": queued,
		},
	}
}

// NewInternalError creates an internal server error (500).
func NewInternalError(requestID string, err error) *GatewayError {
	return &GatewayError{
		Type:      InternalError,
		Message:   "An internal error occurred",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}
