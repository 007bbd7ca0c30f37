package middleware

import (
	"strconv"
	"time"

	"cleanproof/backend/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics records handler latency by route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestDurationSeconds.
			WithLabelValues(route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
