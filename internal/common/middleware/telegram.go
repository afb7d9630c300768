package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"github.com/open-builders/contest-bot/internal/common/errors"
	"github.com/open-builders/contest-bot/internal/common/logger"
)

// InitDataHeader carries the raw Mini App init data. The init_data query
// parameter is accepted as a fallback.
const InitDataHeader = "X-Telegram-Init-Data"

// TelegramInitData validates Mini App init data signed with the bot token
// and stores the Telegram user under UserKey and its id under UserIDKey.
// A zero ttl disables the age check.
func TelegramInitData(token string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			AbortWithAppError(c, errors.New(errors.ErrCodeInternal, "Init data validation is not configured"))
			return
		}

		raw := c.GetHeader(InitDataHeader)
		if raw == "" {
			raw = c.Query("init_data")
		}
		if raw == "" {
			AbortWithAppError(c, errors.NewUnauthorizedError("Telegram init data required"))
			return
		}

		if err := initdata.Validate(raw, token, ttl); err != nil {
			logger.Debug().Err(err).Msg("Init data validation failed")
			AbortWithAppError(c, errors.NewUnauthorizedError("invalid init data"))
			return
		}

		parsed, err := initdata.Parse(raw)
		if err != nil {
			AbortWithAppError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "Malformed init data"))
			return
		}
		if parsed.User.ID == 0 {
			AbortWithAppError(c, errors.NewUnauthorizedError("init data has no user"))
			return
		}

		c.Set(UserKey, parsed.User)
		c.Set(UserIDKey, parsed.User.ID)
		c.Next()
	}
}

// CurrentUser returns the authenticated Telegram user, if any.
func CurrentUser(c *gin.Context) (initdata.User, bool) {
	v, ok := c.Get(UserKey)
	if !ok {
		return initdata.User{}, false
	}
	u, ok := v.(initdata.User)
	return u, ok
}

// CurrentUserID returns 0 for unauthenticated requests.
func CurrentUserID(c *gin.Context) int64 {
	return c.GetInt64(UserIDKey)
}
