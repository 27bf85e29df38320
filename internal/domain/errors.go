// Package domain holds the error taxonomy and shared value types of the booking service.
package domain

import (
	"errors"
	"fmt"
)

// ErrAvailabilityUnknown marks a failed availability lookup: the store could not tell
// whether a unit is free.
var ErrAvailabilityUnknown = errors.New("unit availability could not be determined")

// UnableToBookError is a business-rule rejection. Reason is shown to the caller verbatim.
type UnableToBookError struct {
	Reason string
}

func (e *UnableToBookError) Error() string { return e.Reason }

// NewUnableToBookError creates an UnableToBookError.
func NewUnableToBookError(reason string) *UnableToBookError {
	return &UnableToBookError{Reason: reason}
}

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %s not found", e.Entity, e.ID)
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError reports malformed input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError creates a ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// ConflictError reports a lost optimistic-lock race.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// NewConflictError creates a ConflictError.
func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// AvailabilityError wraps the store failure behind ErrAvailabilityUnknown.
type AvailabilityError struct {
	UnitID string
	Err    error
}

func (e *AvailabilityError) Error() string {
	return fmt.Sprintf("%s for unit %s: %v", ErrAvailabilityUnknown, e.UnitID, e.Err)
}

func (e *AvailabilityError) Unwrap() []error { return []error{ErrAvailabilityUnknown, e.Err} }

// NewAvailabilityError creates an AvailabilityError.
func NewAvailabilityError(unitID string, err error) *AvailabilityError {
	return &AvailabilityError{UnitID: unitID, Err: err}
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
