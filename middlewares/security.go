package middlewares

import (
	"github.com/gin-gonic/gin"
)

// SecurityHeaders sets the usual hardening headers. wsURL is added to
// connect-src so the dashboard can reach the notification hub.
func SecurityHeaders(wsURL string, production bool) gin.HandlerFunc {
	csp := "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; connect-src 'self' " + wsURL + "; frame-ancestors 'none'"
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Content-Security-Policy", csp)
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if production {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
