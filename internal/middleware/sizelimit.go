package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/queue-api/pkg/errors"
	"github.com/jwalitptl/queue-api/pkg/httputil"
)

// SizeLimitConfig represents size limit configuration
type SizeLimitConfig struct {
	MaxBodySize   int64 // in bytes
	MaxUploadSize int64 // in bytes, multipart requests
	MaxHeaderSize int   // in bytes
}

func DefaultSizeLimitConfig() SizeLimitConfig {
	return SizeLimitConfig{
		MaxBodySize:   1 << 20,  // 1MB
		MaxUploadSize: 10 << 20, // 10MB
		MaxHeaderSize: 1 << 14,  // 16KB
	}
}

// SizeLimit rejects oversized requests up front and caps the body reader so
// a missing or lying Content-Length cannot get past the limit.
func SizeLimit(config SizeLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := config.MaxBodySize
		if c.ContentType() == gin.MIMEMultipartPOSTForm {
			// multipart framing adds a little on top of the file itself
			limit = config.MaxUploadSize + 64<<10
		}

		if c.Request.ContentLength > limit {
			abortTooLarge(c, fmt.Sprintf("body size exceeds %d bytes", limit))
			return
		}

		headerSize := 0
		for name, values := range c.Request.Header {
			headerSize += len(name)
			for _, value := range values {
				headerSize += len(value)
			}
		}
		if headerSize > config.MaxHeaderSize {
			abortTooLarge(c, fmt.Sprintf("header size exceeds %d bytes", config.MaxHeaderSize))
			return
		}

		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

func abortTooLarge(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, httputil.Response{
		Status:  "error",
		Message: msg,
		Error: &httputil.Error{
			Code:    http.StatusRequestEntityTooLarge,
			Kind:    apperrors.ErrBadRequest.String(),
			Message: msg,
		},
	})
}
