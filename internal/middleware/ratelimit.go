package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vagxrth/charlar/internal/ratelimit"
)

// RateLimit returns a middleware that gates requests per client IP on a
// sliding-window limiter. Applied to the websocket upgrade route it is
// the per-IP connection admission guard.
//
// Behind a reverse proxy gin's ClientIP already honors the forwarded
// headers, so the key is the real client address.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	if limiter == nil {
		panic("limiter cannot be nil for RateLimit middleware")
	}

	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
