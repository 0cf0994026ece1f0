package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by all modules. Handlers map these to stable codes.
var (
	ErrNotAuthenticated       = errors.New("not authenticated")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrValidation             = errors.New("validation error")
	ErrUnknownEquipment       = errors.New("unknown equipment")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrNotFound               = errors.New("not found")
)

// Stable error codes.
const (
	CodeNotAuthenticated       = "not_authenticated"
	CodePermissionDenied       = "permission_denied"
	CodeValidation             = "validation_error"
	CodeUnknownEquipment       = "unknown_equipment"
	CodeInvalidTransition      = "invalid_transition"
	CodeConcurrentModification = "concurrent_modification"
	CodeNotFound               = "not_found"
	CodeInternal               = "internal_error"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrNotAuthenticated, CodeNotAuthenticated},
	{ErrPermissionDenied, CodePermissionDenied},
	{ErrValidation, CodeValidation},
	{ErrUnknownEquipment, CodeUnknownEquipment},
	{ErrInvalidTransition, CodeInvalidTransition},
	{ErrConcurrentModification, CodeConcurrentModification},
	{ErrNotFound, CodeNotFound},
}

// ErrorCode returns the stable code for err, or CodeInternal.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// ValidationError describes an invalid input field.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a field-level validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrValidation) succeed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
