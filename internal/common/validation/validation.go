// Package validation holds field checks shared by services. Failures are
// VALIDATION_ERROR app errors naming the offending field.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	apperrors "github.com/open-builders/contest-bot/internal/common/errors"
)

const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 2000
	MaxPrizeLength       = 500
	MaxButtonTextLength  = 64
	// Telegram caps a message at 4096 characters.
	MaxMessageLength = 4096
)

// Required trims value and rejects it when empty or longer than max runes.
func Required(field, value string, max int) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return apperrors.NewValidationError(field, "is required")
	}
	return MaxLength(field, value, max)
}

// MaxLength counts runes, not bytes.
func MaxLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return apperrors.NewValidationError(field, fmt.Sprintf("must be at most %d characters", max))
	}
	return nil
}

// Between checks an inclusive integer range.
func Between(field string, value, min, max int) error {
	if value < min || value > max {
		return apperrors.NewValidationError(field, fmt.Sprintf("must be between %d and %d", min, max))
	}
	return nil
}
