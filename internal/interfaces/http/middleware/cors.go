package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// wildcardOrigin allows any origin.
const wildcardOrigin = "*"

// CORS returns a Gin middleware for handling Cross-Origin Resource Sharing
func CORS(allowedOrigins []string) gin.HandlerFunc {
	wildcard := containsWildcard(allowedOrigins)

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if wildcard {
			c.Header("Access-Control-Allow-Origin", wildcardOrigin)
		} else {
			c.Header("Access-Control-Allow-Origin", getAllowedOrigin(origin, allowedOrigins))
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Expose-Headers", "Content-Length, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		// Handle preflight requests
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// OriginAllowed reports whether a browser origin may connect. Requests
// without an Origin header (non-browser clients) are always allowed.
func OriginAllowed(origin string, allowedOrigins []string) bool {
	if origin == "" || containsWildcard(allowedOrigins) {
		return true
	}
	return getAllowedOrigin(origin, allowedOrigins) != ""
}

// getAllowedOrigin returns the allowed origin based on the request origin
func getAllowedOrigin(origin string, allowedOrigins []string) string {
	for _, allowedOrigin := range allowedOrigins {
		if origin == allowedOrigin {
			return origin
		}
	}

	// Origin not in whitelist, return empty string to reject the request
	return ""
}

func containsWildcard(allowedOrigins []string) bool {
	for _, o := range allowedOrigins {
		if o == wildcardOrigin {
			return true
		}
	}
	return false
}
