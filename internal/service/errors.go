package service

import (
	"errors"
	"fmt"
)

// Service-level errors form the API taxonomy. Handlers map them to HTTP
// status codes with errors.Is; repositories never leak past this package.
var (
	ErrTripNotFound    = errors.New("trip not found")
	ErrDriverNotFound  = errors.New("driver not found")
	ErrRequestNotFound = errors.New("trip request not found")

	// ErrNotAuthorized covers every actor/ownership/direction violation.
	ErrNotAuthorized = errors.New("not authorized for this operation")

	// ErrInvalidState is returned when the trip or request is in a state
	// that does not admit the operation.
	ErrInvalidState = errors.New("operation not valid in current state")

	// ErrSchedulingConflict is returned when accepting would give the driver
	// two trips departing within the conflict buffer.
	ErrSchedulingConflict = errors.New("driver schedule conflict")

	// ErrPermitTaken is returned when a company reuses a permit number.
	ErrPermitTaken = errors.New("permit number already in use")

	// ErrValidation is the errors.Is target for ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrRequestExists is the errors.Is target for RequestExistsError.
	ErrRequestExists = errors.New("request already exists")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalidField(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// RequestExistsError reports an existing unresolved request for the same
// trip and driver, carrying its id so the client can reference it.
type RequestExistsError struct {
	RequestID int64
}

func (e *RequestExistsError) Error() string {
	return fmt.Sprintf("pending request %d already exists for this trip and driver", e.RequestID)
}

func (e *RequestExistsError) Is(target error) bool {
	return target == ErrRequestExists
}
