package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/open-builders/contest-bot/internal/common/logger"
)

const responseCachePrefix = "httpcache:"

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// bodyRecorder keeps a copy of what the handler writes.
type bodyRecorder struct {
	gin.ResponseWriter
	body []byte
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body = append(w.body, b...)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body = append(w.body, s...)
	return w.ResponseWriter.WriteString(s)
}

// ResponseCache caches successful GET responses for ttl, keyed by the full
// URL. Entries are shared between callers, so mount it only on routes whose
// output does not depend on the user.
func ResponseCache(rdb redis.Cmdable, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}
		key := responseCachePrefix + c.Request.Method + ":" + c.Request.URL.RequestURI()

		if bs, err := rdb.Get(c.Request.Context(), key).Bytes(); err == nil && len(bs) > 0 {
			var entry cachedResponse
			if json.Unmarshal(bs, &entry) == nil {
				c.Header("X-Cache", "HIT")
				c.Data(entry.Status, entry.ContentType, entry.Body)
				c.Abort()
				return
			}
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Header("X-Cache", "MISS")
		c.Next()

		status := rec.Status()
		if status < 200 || status >= 300 || c.IsAborted() {
			return
		}
		entry := cachedResponse{Status: status, ContentType: rec.Header().Get("Content-Type"), Body: rec.body}
		payload, err := json.Marshal(entry)
		if err != nil {
			return
		}
		if err := rdb.Set(context.WithoutCancel(c.Request.Context()), key, payload, ttl).Err(); err != nil {
			logger.Debug().Err(err).Str("key", key).Msg("Response cache write failed")
		}
	}
}
