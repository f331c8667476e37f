package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hotel-reservation/metrics"
	"hotel-reservation/ratelimit"
	"hotel-reservation/utils"
)

// Throttle limits each caller, by user id once authenticated and by client
// IP before that.
func Throttle(t *ratelimit.Throttle) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if uid, ok := c.Get(ContextUserID); ok {
			if s, _ := uid.(string); s != "" {
				key = "user:" + s
			}
		}
		if !t.Allow(key) {
			metrics.RecordRateLimited("request")
			c.Header("Retry-After", "1")
			utils.JSONError(c, http.StatusTooManyRequests, "error.tooManyRequests", "too many requests, slow down")
			return
		}
		c.Next()
	}
}
