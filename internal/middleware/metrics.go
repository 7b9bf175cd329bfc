package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crestline-hq/crestline-api/internal/service"
)

// Metrics times every request and feeds the metrics service. The route
// template (not the raw URL) is used as the path label to keep label
// cardinality bounded.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
