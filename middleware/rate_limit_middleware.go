package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"tiny-rpc/message"
)

// RateLimitExceeded is the error text of a request rejected by RateLimit.
const RateLimitExceeded = "rate limit exceeded"

// RateLimit admits r requests per second with bursts of up to burst, using a
// token bucket. Rejected requests get an error response without dispatch.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			if !limiter.Allow() {
				return message.NewError(RateLimitExceeded)
			}
			return next(ctx, req)
		}
	}
}
