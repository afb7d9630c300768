package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/open-builders/contest-bot/internal/common/errors"
	domain "github.com/open-builders/contest-bot/internal/domain/user"
)

// AdminCheck reports whether a Telegram user id has admin rights.
type AdminCheck func(userID int64) bool

const isAdminKey = "is_admin"

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUserID(c) == 0 {
			AbortWithAppError(c, errors.NewUnauthorizedError("Telegram init data required"))
			return
		}
		c.Next()
	}
}

// MarkAdmin records the admin flag for handlers that treat admins specially.
func MarkAdmin(isAdmin AdminCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(isAdminKey, isAdmin(CurrentUserID(c)))
		c.Next()
	}
}

func RequireAdmin(isAdmin AdminCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := CurrentUserID(c)
		if id == 0 {
			AbortWithAppError(c, errors.NewUnauthorizedError("Telegram init data required"))
			return
		}
		if !isAdmin(id) {
			AbortWithAppError(c, errors.NewForbiddenError("admin access required"))
			return
		}
		c.Set(isAdminKey, true)
		c.Next()
	}
}

// IsAdmin is set by MarkAdmin or RequireAdmin.
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(isAdminKey)
}

// UserLookup is the part of the user service CheckBanned needs.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// CheckBanned rejects banned users. Admins are never blocked, and lookup
// failures let the request through.
func CheckBanned(users UserLookup, isAdmin AdminCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := CurrentUserID(c)
		if id == 0 || isAdmin(id) {
			c.Next()
			return
		}
		u, err := users.GetByID(c.Request.Context(), id)
		if err == nil && u != nil && u.IsBanned {
			AbortWithAppError(c, errors.NewForbiddenError("your account has been banned"))
			return
		}
		c.Next()
	}
}
