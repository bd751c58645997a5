package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rollcall/attendance-api/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics records latency and status counts per route template. Event
// streams are counted but their duration is not observed, since a live
// board connection stays open for as long as the client watches it.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		elapsed := time.Since(start)
		if strings.HasSuffix(route, "/stream") {
			elapsed = 0
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), elapsed)
	}
}
