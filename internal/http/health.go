package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

const serviceName = "contest-bot"

func (h *handlers) registerHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	})
	r.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/ready", h.ready)
}

// ready runs every registered check and fails on the first broken one.
func (h *handlers) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.d.Checks))
	for name := range h.d.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.d.Checks[name](ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   name + " unavailable",
				"details": err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
		"service":   serviceName,
	})
}
