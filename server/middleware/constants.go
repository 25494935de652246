package middleware

import "context"

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
)

// Header names understood by the gateway.
const (
	RequestIDHeader      = "X-Request-ID"
	InternalSecretHeader = "X-Internal-Secret"
)

// GetRequestID returns the request id stored by RequestID, or "" outside a
// request.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
