package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/open-builders/contest-bot/internal/common/errors"
	"github.com/open-builders/contest-bot/internal/common/logger"
)

const (
	RequestIDKey = "request_id"
	UserIDKey    = "user_id"
	UserKey      = "user"
)

// ErrorHandler recovers panics and answers with an INTERNAL_ERROR body.
func ErrorHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		stack := string(debug.Stack())
		logger.Error().
			Str("request_id", getRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Interface("panic", recovered).
			Str("stack", stack).
			Msg("Panic recovered")

		appErr := errors.New(errors.ErrCodeInternal, "Internal server error").
			WithDetail("panic", fmt.Sprintf("%v", recovered))
		AbortWithAppError(c, appErr)
	})
}

// RequestID reuses X-Request-ID from the caller or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(RequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Success   bool             `json:"success"`
	Error     *errors.AppError `json:"error"`
	Timestamp time.Time        `json:"timestamp"`
	RequestID string           `json:"request_id"`
	Path      string           `json:"path,omitempty"`
	Method    string           `json:"method,omitempty"`
}

// AbortWithAppError writes err as an ErrorResponse and stops the chain.
// Errors that are not AppErrors become INTERNAL_ERROR.
func AbortWithAppError(c *gin.Context, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.Wrap(err, errors.ErrCodeInternal, "Internal server error")
	}
	requestID := getRequestID(c)
	appErr.WithRequestID(requestID).
		WithContext("path", c.Request.URL.Path).
		WithContext("method", c.Request.Method)
	if uid := getUserID(c); uid != 0 && appErr.UserID == 0 {
		appErr.WithUserID(uid)
	}

	logError(c, appErr)

	c.AbortWithStatusJSON(HTTPStatus(appErr), ErrorResponse{
		Success:   false,
		Error:     appErr,
		Timestamp: time.Now(),
		RequestID: requestID,
		Path:      c.Request.URL.Path,
		Method:    c.Request.Method,
	})
}

// HTTPStatus maps an error code to a response status.
func HTTPStatus(appErr *errors.AppError) int {
	switch appErr.Code {
	case errors.ErrCodeValidation, errors.ErrCodeBadRequest:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeUserNotFound, errors.ErrCodeContestNotFound, errors.ErrCodeChannelNotFound:
		return http.StatusNotFound
	case errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrCodeForbidden, errors.ErrCodeNotOwner, errors.ErrCodeNotSubscribed:
		return http.StatusForbidden
	case errors.ErrCodeConflict, errors.ErrCodeInvalidTransition, errors.ErrCodeContestNotActive:
		return http.StatusConflict
	case errors.ErrCodeCapacityExceeded:
		return http.StatusGone
	case errors.ErrCodeTooManyRequests, errors.ErrCodeRateLimit:
		return http.StatusTooManyRequests
	case errors.ErrCodeCacheError:
		return http.StatusServiceUnavailable
	case errors.ErrCodeTelegramAPI, errors.ErrCodeNotificationDelivery:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func logError(c *gin.Context, appErr *errors.AppError) {
	var ev *zerolog.Event
	switch {
	case appErr.IsInternal():
		ev = logger.Error()
	case appErr.IsUnauthorized():
		ev = logger.Warn()
	case appErr.IsValidation(), appErr.IsNotFound(), appErr.IsUserFacing():
		ev = logger.Info()
	default:
		ev = logger.Error()
	}

	ev = ev.Str("request_id", getRequestID(c)).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Str("error_code", string(appErr.Code)).
		Str("error_message", appErr.Message)
	if uid := getUserID(c); uid != 0 {
		ev = ev.Int64("user_id", uid)
	}
	if len(appErr.Details) > 0 {
		ev = ev.Interface("details", appErr.Details)
	}
	if appErr.Cause != nil {
		ev = ev.Err(appErr.Cause)
	}
	ev.Msg("Request failed")
}

func getRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	return "unknown"
}

func getUserID(c *gin.Context) int64 {
	return c.GetInt64(UserIDKey)
}
