package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationErrorCarriesField(t *testing.T) {
	err := NewValidationError("winners_count", "must be between 1 and 100")

	assert.Equal(t, ErrCodeValidation, err.Code)
	assert.Equal(t, "winners_count", err.Details["field"])
	assert.True(t, err.IsValidation())
	assert.False(t, err.IsRetryable())
	assert.Contains(t, err.Error(), "winners_count")
}

func TestAsAppErrorFindsWrappedError(t *testing.T) {
	inner := NewCapacityExceededError(7, 3)
	wrapped := fmt.Errorf("join: %w", inner)

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrCodeCapacityExceeded, appErr.Code)
	assert.True(t, HasCode(wrapped, ErrCodeCapacityExceeded))
	assert.True(t, appErr.IsUserFacing())
}

func TestAsAppErrorRejectsPlainErrors(t *testing.T) {
	_, ok := AsAppError(stderrors.New("boom"))
	assert.False(t, ok)

	_, ok = AsAppError(nil)
	assert.False(t, ok)
}

func TestRetryability(t *testing.T) {
	cause := stderrors.New("connection reset")

	assert.True(t, IsRetryable(NewDatabaseError("insert participant", cause)))
	assert.True(t, IsRetryable(cause))
	assert.False(t, IsRetryable(NewContestNotFoundError(1)))
	assert.False(t, IsRetryable(nil))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("timeout")
	err := NewTelegramAPIError("getChatMember", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, err.IsInternal())
	assert.Equal(t, "getChatMember", err.Details["operation"])
}
