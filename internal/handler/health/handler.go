package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is satisfied by *sqlx.DB and the redis broker.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Check is one named readiness dependency.
type Check struct {
	Name   string
	Pinger Pinger
}

type Handler struct {
	checks  []Check
	metrics http.Handler
	timeout time.Duration
}

// NewHandler builds the health endpoints. metrics may be nil.
func NewHandler(metrics http.Handler, checks ...Check) *Handler {
	return &Handler{
		checks:  checks,
		metrics: metrics,
		timeout: 2 * time.Second,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	failed := gin.H{}
	for _, check := range h.checks {
		if err := check.Pinger.PingContext(ctx); err != nil {
			failed[check.Name] = "DOWN"
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":       "DOWN",
			"dependencies": failed,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}
