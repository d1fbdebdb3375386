package repository

import (
	"errors"
	"fmt"
)

// Sentinel errors returned (wrapped) by the repositories. The service layer
// maps them onto its API error taxonomy with errors.Is.
var (
	// ErrNotFound is returned when a trip, driver, request or rating row
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRequestNotPending is returned when a terminal request is asked to
	// transition again. Terminal states are final, never a silent no-op.
	ErrRequestNotPending = errors.New("trip request is not pending")

	// ErrTripClosed is returned when an acceptance targets a completed or
	// cancelled trip.
	ErrTripClosed = errors.New("trip is completed or cancelled")

	// ErrTripNotOpen is returned when a driver-initiated request targets a
	// trip that is no longer unassigned.
	ErrTripNotOpen = errors.New("trip is not open for driver requests")

	// ErrSchedulingConflict is returned when the driver already holds a
	// trip departing within the conflict buffer.
	ErrSchedulingConflict = errors.New("driver has a conflicting trip")

	// ErrDuplicatePermit is returned when a company reuses a permit number.
	ErrDuplicatePermit = errors.New("permit number already in use")

	// ErrNotAllowed is returned when the actor may not perform the
	// operation for this request direction or trip.
	ErrNotAllowed = errors.New("actor not allowed")

	// ErrInvalidTransition is returned on a disallowed trip status change.
	ErrInvalidTransition = errors.New("invalid trip status transition")

	// ErrDuplicateRequest is the errors.Is target for DuplicateRequestError.
	ErrDuplicateRequest = errors.New("pending request already exists")
)

// DuplicateRequestError reports an existing unresolved request for the same
// (trip, driver) pair, carrying the conflicting request's identity.
type DuplicateRequestError struct {
	RequestID int64
}

func (e *DuplicateRequestError) Error() string {
	return fmt.Sprintf("pending request %d already exists for this trip and driver", e.RequestID)
}

func (e *DuplicateRequestError) Is(target error) bool {
	return target == ErrDuplicateRequest
}
