package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// SecurityConfig represents security headers configuration
type SecurityConfig struct {
	HSTS       bool
	HSTSMaxAge int
	// NoStore keeps patient data out of shared and browser caches.
	NoStore bool
}

func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		HSTS:       true,
		HSTSMaxAge: 31536000,
		NoStore:    true,
	}
}

// SecurityHeaders adds security headers to responses
func SecurityHeaders(config SecurityConfig) gin.HandlerFunc {
	hsts := fmt.Sprintf("max-age=%d; includeSubDomains", config.HSTSMaxAge)
	return func(c *gin.Context) {
		if config.HSTS {
			c.Header("Strict-Transport-Security", hsts)
		}
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		if config.NoStore {
			c.Header("Cache-Control", "no-store")
		}
		c.Next()
	}
}
