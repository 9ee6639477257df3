package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CyberwizD/gate-control/pkg/metrics"
)

// registerOps wires lightweight health/metrics endpoints so the service can be monitored.
func registerOps(r *gin.Engine, name string, m *metrics.Metrics, started time.Time) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": name + " healthy",
			"meta": gin.H{
				"uptime_seconds": int(time.Since(started).Seconds()),
				"timestamp":      time.Now().UTC(),
			},
		})
	})
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}
}
