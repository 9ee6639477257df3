package routes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/CyberwizD/gate-control/internal/models"
	"github.com/CyberwizD/gate-control/pkg/metrics"
)

// Relayer runs the relay flow for one request.
type Relayer interface {
	Relay(ctx context.Context, req models.RelayRequest) models.RelayOutcome
}

// RelayOptions configures the relay router's middleware.
type RelayOptions struct {
	APIKey          string
	RateLimitPerSec float64
	RateLimitBurst  int
	Started         time.Time
}

// NewRelayRouter serves the gate-notify endpoint plus health and metrics.
func NewRelayRouter(relay Relayer, m *metrics.Metrics, opts RelayOptions, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(logger))
	registerOps(r, "gate relay", m, opts.Started)

	notify := r.Group("/gate-notify")
	notify.Use(CORS(), Recovery(logger))
	{
		notify.OPTIONS("", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})
		notify.POST("",
			APIKey(opts.APIKey),
			RateLimiter(rate.Limit(opts.RateLimitPerSec), opts.RateLimitBurst),
			relayHandler(relay),
		)
	}
	return r
}

func relayHandler(relay Relayer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RelayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.RelayResponse{
				Error:   "invalid request body",
				Details: err.Error(),
			})
			return
		}
		out := relay.Relay(c.Request.Context(), req)
		c.JSON(out.StatusCode, out.Body)
	}
}
