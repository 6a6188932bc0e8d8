// Package middleware holds the gin middleware of the dashboard gateway: request ids,
// metrics, security headers, login rate limiting, and the route and PIC guards that
// enforce the permission registry.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/church-dashboard/church-dashboard/internal/telemetry"
)

// noRouteLabel replaces the path label of requests that matched no route, keeping
// label cardinality bounded.
const noRouteLabel = "<no-route>"

// MetricsMiddleware records http_requests_total and http_request_duration_seconds.
// The path label is the gin route template, never the raw URL. Register it after
// gin.Recovery() so recovered panics are counted as 500.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = noRouteLabel
		}
		method := c.Request.Method

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
