package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/open-builders/contest-bot/internal/common/logger"
	domain "github.com/open-builders/contest-bot/internal/domain/user"
)

// UserToucher upserts a Telegram profile.
type UserToucher interface {
	Touch(ctx context.Context, u *domain.User) error
}

// AutoCreateUser keeps the user table in sync with Mini App visitors.
// Failures are logged and do not block the request.
func AutoCreateUser(users UserToucher) gin.HandlerFunc {
	return func(c *gin.Context) {
		tu, ok := CurrentUser(c)
		if !ok {
			c.Next()
			return
		}
		u := &domain.User{
			ID:           tu.ID,
			Username:     tu.Username,
			FirstName:    tu.FirstName,
			LastName:     tu.LastName,
			LanguageCode: tu.LanguageCode,
		}
		if err := users.Touch(c.Request.Context(), u); err != nil {
			logger.Warn().Err(err).Int64("user_id", tu.ID).Msg("Failed to upsert user from init data")
		}
		c.Next()
	}
}
