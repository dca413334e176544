package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation and resolution failures.
var (
	ErrUnknownHouse   = errors.New("unknown house")
	ErrUnknownSpeaker = errors.New("unknown speaker")
	ErrEmptySpeaker   = errors.New("speaker is empty")
	ErrEmptySpeech    = errors.New("speech text is empty")
	ErrDateOutOfRange = errors.New("sitting date out of range")
	ErrTopicTooShort  = errors.New("topic too short")
	ErrTopicInjection = errors.New("topic contains suspicious content")
	ErrTopicProfanity = errors.New("topic contains profanity")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
