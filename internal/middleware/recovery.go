package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/queue-api/pkg/errors"
	"github.com/jwalitptl/queue-api/pkg/httputil"
	"github.com/jwalitptl/queue-api/pkg/logger"
)

// Recovery turns a panic into a 500 envelope and logs the stack.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("panic: %v", rec)
				log.Error(err, "Request panic recovered",
					"stack", string(debug.Stack()),
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"client_ip", c.ClientIP(),
					"request_id", c.GetString(ContextRequestID),
				)

				if !c.Writer.Written() {
					httputil.RespondWithError(c, apperrors.Internal(err))
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
