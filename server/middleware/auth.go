package middleware

import (
	"net/http"

	"github.com/rentfleet/aigw/errors"
	"go.uber.org/zap"
)

// Authorizer checks a caller credential. notify.Relay implements it.
type Authorizer interface {
	Authorize(credential string) error
}

// SharedSecret rejects requests whose X-Internal-Secret header is refused by
// auth. The check runs before the body is read, and the response says only
// "unauthorized".
func SharedSecret(auth Authorizer, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := auth.Authorize(r.Header.Get(InternalSecretHeader)); err != nil {
				requestID := GetRequestID(r.Context())
				logger.Warn("Rejected caller credential",
					zap.String("request_id", requestID),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				errors.WriteError(w, errors.NewAuthError(requestID, err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
