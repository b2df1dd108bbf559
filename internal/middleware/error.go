package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/queue-api/pkg/httputil"
	"github.com/jwalitptl/queue-api/pkg/logger"
)

// ErrorHandler logs the errors handlers attached to the context. The cause is
// logged in full even when the client only saw a generic message.
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		for _, e := range c.Errors {
			status := httputil.StatusFor(e.Err)
			fields := []interface{}{
				"request_id", c.GetString(ContextRequestID),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"status", status,
			}
			if status >= 500 {
				log.Error(e.Err, "Request error", fields...)
			} else {
				log.Debug("Request rejected", append(fields, "error", e.Err.Error())...)
			}
		}

		// a handler that attached an error but wrote nothing still owes a reply
		if !c.Writer.Written() {
			httputil.RespondWithError(c, c.Errors.Last().Err)
		}
	}
}
