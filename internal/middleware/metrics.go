package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/erprbac/pkg/metrics"
)

// Metrics records request latency per route template and counts permission guard
// decisions per permission code. Unmatched paths share one series.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		metrics.APILatency.WithLabelValues(c.Request.Method, routeTemplate(c), status).Observe(time.Since(start).Seconds())

		if code, decision, ok := RouteGuard(c); ok {
			metrics.RouteAuthorizations.WithLabelValues(code, decision).Inc()
		}
	}
}
