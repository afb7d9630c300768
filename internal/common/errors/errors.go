package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode identifies a class of application error.
type ErrorCode string

const (
	// General
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrCodeConflict        ErrorCode = "CONFLICT"
	ErrCodeTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"

	// Users
	ErrCodeUserNotFound ErrorCode = "USER_NOT_FOUND"

	// Contests
	ErrCodeContestNotFound   ErrorCode = "CONTEST_NOT_FOUND"
	ErrCodeContestNotActive  ErrorCode = "CONTEST_NOT_ACTIVE"
	ErrCodeCapacityExceeded  ErrorCode = "CAPACITY_EXCEEDED"
	ErrCodeNotSubscribed     ErrorCode = "NOT_SUBSCRIBED"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeNotOwner          ErrorCode = "NOT_OWNER"

	// Channels
	ErrCodeChannelNotFound ErrorCode = "CHANNEL_NOT_FOUND"

	// Storage
	ErrCodeDatabaseError     ErrorCode = "DATABASE_ERROR"
	ErrCodeTransactionFailed ErrorCode = "TRANSACTION_FAILED"

	// Cache
	ErrCodeCacheError ErrorCode = "CACHE_ERROR"

	// External APIs
	ErrCodeTelegramAPI          ErrorCode = "TELEGRAM_API_ERROR"
	ErrCodeNotificationDelivery ErrorCode = "NOTIFICATION_DELIVERY_FAILED"
	ErrCodeRateLimit            ErrorCode = "RATE_LIMIT_EXCEEDED"
)

// AppError is a typed application error.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Context   map[string]string      `json:"context,omitempty"`
	Stack     []string               `json:"-"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	UserID    int64                  `json:"user_id,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsNotFound reports whether the error refers to a missing resource.
func (e *AppError) IsNotFound() bool {
	return e.Code == ErrCodeNotFound ||
		e.Code == ErrCodeUserNotFound ||
		e.Code == ErrCodeContestNotFound ||
		e.Code == ErrCodeChannelNotFound
}

func (e *AppError) IsValidation() bool {
	return e.Code == ErrCodeValidation || e.Code == ErrCodeBadRequest
}

func (e *AppError) IsUnauthorized() bool {
	return e.Code == ErrCodeUnauthorized || e.Code == ErrCodeForbidden || e.Code == ErrCodeNotOwner
}

// IsUserFacing reports whether the error is a normal negative outcome of a
// user action rather than a failure.
func (e *AppError) IsUserFacing() bool {
	switch e.Code {
	case ErrCodeContestNotActive, ErrCodeCapacityExceeded, ErrCodeNotSubscribed:
		return true
	}
	return false
}

func (e *AppError) IsInternal() bool {
	return e.Code == ErrCodeInternal ||
		e.Code == ErrCodeDatabaseError ||
		e.Code == ErrCodeTransactionFailed ||
		e.Code == ErrCodeCacheError ||
		e.Code == ErrCodeTelegramAPI
}

// IsRetryable reports whether the same operation may succeed if repeated later.
func (e *AppError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeDatabaseError, ErrCodeTransactionFailed, ErrCodeTelegramAPI, ErrCodeRateLimit, ErrCodeNotificationDelivery:
		return true
	}
	return false
}

func (e *AppError) WithContext(key, value string) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

func (e *AppError) WithUserID(userID int64) *AppError {
	e.UserID = userID
	return e
}

// New creates an application error with a captured stack.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Stack:     getStackTrace(),
	}
}

// Wrap attaches a code and message to an existing error.
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

func getStackTrace() []string {
	var stack []string
	for i := 2; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		if strings.Contains(fn.Name(), "internal/common/errors") {
			continue
		}
		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		if len(stack) >= 10 {
			break
		}
	}
	return stack
}

func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("Validation failed for field '%s': %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

func NewContestNotFoundError(contestID int64) *AppError {
	return New(ErrCodeContestNotFound, fmt.Sprintf("Contest not found: %d", contestID)).
		WithDetail("contest_id", contestID)
}

func NewUserNotFoundError(userID int64) *AppError {
	return New(ErrCodeUserNotFound, fmt.Sprintf("User not found: %d", userID)).
		WithDetail("user_id", userID)
}

func NewContestNotActiveError(contestID int64, status string) *AppError {
	return New(ErrCodeContestNotActive, "Contest is not accepting participants").
		WithDetail("contest_id", contestID).
		WithDetail("status", status)
}

func NewCapacityExceededError(contestID int64, max int) *AppError {
	return New(ErrCodeCapacityExceeded, "Contest is full").
		WithDetail("contest_id", contestID).
		WithDetail("max_participants", max)
}

func NewNotSubscribedError(userID int64, channels []int64) *AppError {
	return New(ErrCodeNotSubscribed, "Subscription to required channels is missing").
		WithUserID(userID).
		WithDetail("channels", channels)
}

func NewInvalidTransitionError(contestID int64, from, to string) *AppError {
	return New(ErrCodeInvalidTransition, fmt.Sprintf("Cannot move contest from %s to %s", from, to)).
		WithDetail("contest_id", contestID).
		WithDetail("from", from).
		WithDetail("to", to)
}

func NewUnauthorizedError(reason string) *AppError {
	return New(ErrCodeUnauthorized, fmt.Sprintf("Unauthorized: %s", reason)).
		WithDetail("reason", reason)
}

func NewForbiddenError(reason string) *AppError {
	return New(ErrCodeForbidden, fmt.Sprintf("Forbidden: %s", reason)).
		WithDetail("reason", reason)
}

// NewDatabaseError marks a storage failure. These are retryable.
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseError, fmt.Sprintf("Database operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewCacheError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeCacheError, fmt.Sprintf("Cache operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewTelegramAPIError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeTelegramAPI, fmt.Sprintf("Telegram API operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewNotificationDeliveryError(target string, err error) *AppError {
	return Wrap(err, ErrCodeNotificationDelivery, fmt.Sprintf("Notification delivery failed: %s", target)).
		WithDetail("target", target)
}

func NewRateLimitError(service string, retryAfter time.Duration) *AppError {
	return New(ErrCodeRateLimit, fmt.Sprintf("Rate limit exceeded for %s", service)).
		WithDetail("service", service).
		WithDetail("retry_after", retryAfter.String())
}

func NewConflictError(resource, reason string) *AppError {
	return New(ErrCodeConflict, fmt.Sprintf("Conflict with %s: %s", resource, reason)).
		WithDetail("resource", resource).
		WithDetail("reason", reason)
}

// AsAppError finds the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if err == nil {
		return nil, false
	}
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// IsRetryable treats unknown errors as retryable; only typed, non-transient
// AppErrors are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	appErr, ok := AsAppError(err)
	if !ok {
		return true
	}
	return appErr.IsRetryable()
}
