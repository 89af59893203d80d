package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/reefdesk/dive-admin-api/internal/service"
)

// Metrics records per-request counters and latency histograms. The route
// template (":instructorId" rather than the raw UUID) is used as the path
// label to keep cardinality bounded.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			// Unmatched routes (404s) fall back to the raw path.
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
