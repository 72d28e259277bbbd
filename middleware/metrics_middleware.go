package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"tiny-rpc/message"
)

const (
	LabelMethod  = "method"
	LabelSuccess = "success"
)

var requestDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
	Namespace: "tinyrpc",
	Subsystem: "server",
	Name:      "request_duration_seconds",
	Help:      "Request duration in seconds.",
	Buckets:   stdprometheus.DefBuckets,
}, []string{LabelMethod, LabelSuccess})

// Metrics records the duration of every request, labelled by method and outcome.
func Metrics() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (resp *message.Response) {
			defer func(begin time.Time) {
				requestDuration.With(
					LabelMethod, req.Method,
					LabelSuccess, fmt.Sprint(!resp.IsError()),
				).Observe(time.Since(begin).Seconds())
			}(time.Now())
			return next(ctx, req)
		}
	}
}
