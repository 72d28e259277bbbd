package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tiny-rpc/message"
)

// Logging logs every dispatched request with its duration, and the error text
// of failed ones.
func Logging(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			start := time.Now()
			resp := next(ctx, req)
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.Int("params", len(req.Params)),
				zap.Duration("duration", time.Since(start)),
			}
			if resp.IsError() {
				logger.Warn("request failed", append(fields, zap.String("error", resp.ErrorText()))...)
				return resp
			}
			logger.Debug("request served", fields...)
			return resp
		}
	}
}
