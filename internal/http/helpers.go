package http

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/open-builders/contest-bot/internal/common/errors"
	"github.com/open-builders/contest-bot/internal/common/middleware"
	"github.com/open-builders/contest-bot/internal/domain/analytics"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// pathID parses a positive int64 path parameter. On failure the request is
// already answered.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		middleware.AbortWithAppError(c, apperrors.NewValidationError(name, "must be a positive integer"))
		return 0, false
	}
	return id, true
}

// pathInt64 is pathID for ids that may be negative, such as channel ids.
func pathInt64(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		middleware.AbortWithAppError(c, apperrors.NewValidationError(name, "must be a non-zero integer"))
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

// page reads limit and offset, clamping limit to [1, maxLimit].
func page(c *gin.Context) (limit, offset int) {
	limit = queryInt(c, "limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset = queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		middleware.AbortWithAppError(c, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Invalid request body"))
		return false
	}
	return true
}

func (h *handlers) track(c *gin.Context, t analytics.EventType, contestID *int64) {
	if h.d.Analytics == nil {
		return
	}
	h.d.Analytics.Track(c.Request.Context(), middleware.CurrentUserID(c), t, contestID)
}
