package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/queue-api/pkg/logger"
)

// Logger returns a middleware that logs HTTP requests. Bodies are never
// logged: they carry credentials and patient uploads.
func Logger(log *logger.Logger) gin.HandlerFunc {
	zl := log.Zerolog()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		if raw != "" {
			path = path + "?" + raw
		}

		var event *zerolog.Event
		msg := "Request processed"
		switch {
		case statusCode >= 500:
			event, msg = zl.Error(), "Server error"
		case statusCode >= 400:
			event, msg = zl.Warn(), "Client error"
		default:
			event = zl.Info()
		}

		event = event.
			Str("request_id", c.GetString(ContextRequestID)).
			Str("client_ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("latency", latency).
			Str("user_agent", c.Request.UserAgent())
		if id, ok := DoctorID(c); ok {
			event = event.Str("doctor_id", id.String())
		}
		event.Msg(msg)
	}
}
