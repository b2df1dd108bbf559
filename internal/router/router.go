package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	doctorhandler "github.com/jwalitptl/queue-api/internal/handler/doctor"
	"github.com/jwalitptl/queue-api/internal/handler/health"
	patienthandler "github.com/jwalitptl/queue-api/internal/handler/patient"
	"github.com/jwalitptl/queue-api/internal/middleware"
	"github.com/jwalitptl/queue-api/pkg/logger"
)

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	doctorH  *doctorhandler.Handler
	patientH *patienthandler.Handler
	healthH  *health.Handler
	metrics  *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	CORSConfig       middleware.CORSConfig
	SizeLimit        middleware.SizeLimitConfig
	Timeout          time.Duration
	// Registerer receives the HTTP collectors; nil skips them.
	Registerer    prometheus.Registerer
	MetricsPrefix string
	Logger        *logger.Logger
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	doctorH *doctorhandler.Handler,
	patientH *patienthandler.Handler,
	healthH *health.Handler,
	config RouterConfig,
) *Router {
	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}

	engine := gin.New()

	r := &Router{
		engine:   engine,
		auth:     auth,
		doctorH:  doctorH,
		patientH: patientH,
		healthH:  healthH,
		metrics:  initRouterMetrics(config.Registerer, config.MetricsPrefix),
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.ErrorHandler(log),
		r.metricsMiddleware(),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORSConfig),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.Timeout}),
		middleware.SizeLimit(config.SizeLimit),
	)

	if config.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	r.healthH.RegisterRoutes(r.engine)

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.doctorH.RegisterPublicRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.doctorH.RegisterRoutes(protected)
	r.patientH.RegisterRoutes(protected)

	admin := protected.Group("")
	admin.Use(r.auth.RequireAdmin())
	r.doctorH.RegisterAdminRoutes(admin)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(reg prometheus.Registerer, prefix string) *routerMetrics {
	if reg == nil {
		return nil
	}
	if prefix == "" {
		prefix = "queue_api"
	}
	factory := promauto.With(reg)
	return &routerMetrics{
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r.metrics == nil {
			c.Next()
			return
		}
		start := time.Now()

		c.Next()

		// unmatched routes share one label so scanners cannot blow up cardinality
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
