package errors

import (
	"go.uber.org/zap"
)

// LogError logs err with its context. GatewayErrors are logged field by
// field together with their wrapped cause.
func LogError(logger *zap.Logger, err error, requestID string) {
	if gwErr, ok := err.(*GatewayError); ok {
		logger.Error("request error",
			zap.String("error_type", string(gwErr.Type)),
			zap.String("message", gwErr.Message),
			zap.Int("code", gwErr.Code),
			zap.String("request_id", requestID),
			zap.Any("details", gwErr.Details),
			zap.NamedError("cause", gwErr.err),
		)
		return
	}
	logger.Error("unexpected error",
		zap.Error(err),
		zap.String("request_id", requestID),
	)
}
