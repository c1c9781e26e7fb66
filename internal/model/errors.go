package model

import (
	"errors"
	"fmt"
)

// Error categories. Callers classify failures with errors.Is against these
// sentinels; the typed errors below carry the details and match them.
var (
	// ErrValidation is returned for malformed input such as out-of-range
	// coordinates, a radius out of bounds or an unknown enumeration token.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized is returned when the actor lacks the role or
	// ownership required for an operation.
	ErrUnauthorized = errors.New("not authorized")

	// ErrNotFound is returned for unknown report or official identifiers.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a concurrent write was detected by the
	// store's compare-and-swap. The operation may be retried.
	ErrConflict = errors.New("concurrent modification")
)

// ValidationError describes rejected input.
type ValidationError struct {
	// Field names the offending input.
	Field string

	// Reason is a human-readable explanation.
	Reason string
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// AuthorizationError reports the action that was refused and the role or
// ownership it requires.
type AuthorizationError struct {
	// Action is the attempted operation, e.g. "transition" or "delete".
	Action string

	// Required describes who may perform the action.
	Required string
}

// NewAuthorizationError creates an AuthorizationError.
func NewAuthorizationError(action, required string) *AuthorizationError {
	return &AuthorizationError{Action: action, Required: required}
}

// Error implements the error interface.
func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not authorized to %s: requires %s", e.Action, e.Required)
}

// Is matches ErrUnauthorized.
func (e *AuthorizationError) Is(target error) bool {
	return target == ErrUnauthorized
}

// NotFoundError reports an unknown identifier.
type NotFoundError struct {
	// Kind is the entity type, e.g. "report" or "official".
	Kind string

	// ID is the identifier that was looked up.
	ID string
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
