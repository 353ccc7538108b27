package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates malformed, missing or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates the operation is blocked by existing references.
	ErrConflict = errors.New("conflict")
	// ErrInvalidTransition indicates a status change outside the allowed table.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrForbidden indicates the actor is not authorised for the operation.
	ErrForbidden = errors.New("forbidden")
)

// ValidationErrorf wraps ErrValidation with a formatted detail message.
func ValidationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundErrorf wraps ErrNotFound with entity context.
func NotFoundErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// ConflictErrorf wraps ErrConflict with enough detail to resolve it.
func ConflictErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// TransitionError reports an attempted status change outside the allowed table.
func TransitionError(entity, from, to string) error {
	return fmt.Errorf("%w: %s cannot move from %s to %s", ErrInvalidTransition, entity, from, to)
}
