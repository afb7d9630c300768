package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/open-builders/contest-bot/internal/common/logger"
)

// Logger writes one access log line per request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		ev := logger.Info()
		if c.Writer.Status() >= 500 {
			ev = logger.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Int("body_size", c.Writer.Size()).
			Str("request_id", c.GetString(RequestIDKey)).
			Msg("Request processed")
	}
}
