package chat

import (
	"errors"
	"unicode/utf8"
)

// MaxMessageLength is the maximum message length in runes.
const MaxMessageLength = 5000

// Validation errors
var (
	ErrMessageEmpty   = errors.New("message content cannot be empty")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
	ErrMessageInvalid = errors.New("message contains invalid characters")
)

// ValidateMessage validates already trimmed message content.
func ValidateMessage(content string) error {
	if content == "" {
		return ErrMessageEmpty
	}
	if !utf8.ValidString(content) {
		return ErrMessageInvalid
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}
