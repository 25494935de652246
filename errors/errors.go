// Package errors provides the error response layer of the aigw gateway.
// It includes a structured error type, JSON response formatting, request ID
// correlation and integrated logging with Uber's zap logger.
//
// Handlers never write raw error strings. They build a GatewayError (usually
// through one of the constructors in types.go) and hand it to WriteError:
//
//	errors.WriteError(w, errors.NewValidationError(requestID, "images must not be empty", nil))
//
// Domain failures (completion, validation, notification) are defined in their
// own packages and are collapsed into a GatewayError at the handler boundary.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultLogger is the package-wide zap logger. It starts as a production
// logger and is replaced at startup through SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger replaces DefaultLogger. A nil logger is ignored.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType is the client-visible category of an error response.
type ErrorType string

const (
	// AuthError represents a failed shared-secret check
	AuthError ErrorType = "authentication_error"
	// ValidationError represents an invalid request body
	ValidationError ErrorType = "validation_error"
	// ProcessingError represents a failed completion pipeline run
	ProcessingError ErrorType = "processing_error"
	// UpstreamError represents a failure reported by the messaging platform
	UpstreamError ErrorType = "upstream_error"
	// RateLimitError represents a rejected request due to rate limiting
	RateLimitError ErrorType = "rate_limit_error"
	// OverloadError represents a full admission queue
	OverloadError ErrorType = "overload_error"
	// InternalError represents unexpected internal failures
	InternalError ErrorType = "internal_error"
)

// GatewayError is the error type written to clients. Code and the wrapped
// cause stay server-side; everything else is serialized.
type GatewayError struct {
	// Type categorizes the error for client handling
	Type ErrorType `json:"type"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Code is the HTTP status code (not exposed in JSON)
	Code int `json:"-"`

	// RequestID links the error to a specific request
	RequestID string `json:"request_id"`

	// Details contains additional error context
	Details map[string]interface{} `json:"details,omitempty"`

	err error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause.
func (e *GatewayError) Unwrap() error {
	return e.err
}

// Is matches on Type only, so errors.Is(err, &GatewayError{Type: AuthError})
// works regardless of message or request id.
func (e *GatewayError) Is(target error) bool {
	t, ok := target.(*GatewayError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WriteError writes err as a JSON response with its status code.
func WriteError(w http.ResponseWriter, err *GatewayError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
}

// ErrorWithType writes an error of the given type, picking the request id up
// from the response headers set by the RequestID middleware.
func ErrorWithType(w http.ResponseWriter, message string, errType ErrorType, code int) {
	WriteError(w, &GatewayError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: w.Header().Get("X-Request-ID"),
	})
}
