package middleware

import (
	"context"
	"strings"
	"time"

	aws_pkg "product-wizard-service/pkg/aws"

	"github.com/gin-gonic/gin"
)

// HTTPMetrics is the part of the CloudWatch client the middleware uses.
type HTTPMetrics interface {
	IsEnabled() bool
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
	RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error
}

// MetricsMiddleware records request count, latency and errors per route.
// Wizard routes also carry the action name (advance, lookup, submit...)
// so step traffic can be compared without parsing session ids.
func MetricsMiddleware(metrics HTTPMetrics, serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil || !metrics.IsEnabled() {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		dims := map[string]string{
			"Service": serviceName,
			"Method":  c.Request.Method,
			"Path":    route,
			"Action":  wizardAction(route),
			"Status":  statusCodeToRange(status),
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			_ = metrics.RecordCount(ctx, aws_pkg.MetricHTTPRequests, dims)
			_ = metrics.RecordLatency(ctx, aws_pkg.MetricHTTPLatency, elapsed, dims)
			if status >= 400 {
				_ = metrics.RecordCount(ctx, aws_pkg.MetricHTTPErrors, dims)
			}
		}()
	}
}

// wizardAction names the operation behind a session route, e.g.
// "/admin/product-wizard/sessions/:id/candidate/accept" -> "candidate/accept".
func wizardAction(route string) string {
	const marker = "/sessions/:id"
	i := strings.Index(route, marker)
	if i < 0 {
		return "none"
	}
	rest := strings.Trim(route[i+len(marker):], "/")
	if rest == "" {
		return "session"
	}
	if j := strings.Index(rest, "/:"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

func statusCodeToRange(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
