package middleware

import (
	"context"
	"time"

	awspkg "github.com/Faraz011/Hindustan-Bills-sub001/pkg/aws"
	"github.com/gin-gonic/gin"
)

// CloudWatchMetrics records request count, latency and errors per route
// without delaying the response.
func CloudWatchMetrics(client *awspkg.MetricsClient, service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !client.IsEnabled() {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		dur := time.Since(start)

		dims := map[string]string{
			"Service": service,
			"Method":  c.Request.Method,
			"Path":    c.FullPath(),
		}
		status := c.Writer.Status()
		go func() {
			mctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.RecordCount(mctx, awspkg.MetricHTTPRequests, dims)
			_ = client.RecordLatency(mctx, awspkg.MetricHTTPLatency, dur, dims)
			if status >= 400 {
				_ = client.RecordCount(mctx, awspkg.MetricHTTPErrors, dims)
			}
		}()
	}
}

// RequestTimeout bounds each request's context.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
