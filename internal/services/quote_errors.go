package services

import (
	"errors"
	"fmt"
)

var (
	// ErrQuoteValidation is matched by every ValidationError via errors.Is.
	ErrQuoteValidation = errors.New("quote engine: validation failed")
	// ErrPromotionEngineMissing indicates the quote engine was constructed without a promotion engine.
	ErrPromotionEngineMissing = errors.New("quote engine: promotion engine is required")
)

// ValidationError reports malformed or missing quote input. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Reason)
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

// Is lets callers match with errors.Is(err, ErrQuoteValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrQuoteValidation
}

func newValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
