package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/omerk/haulink/internal/model"
	"github.com/omerk/haulink/internal/notify"
	"github.com/omerk/haulink/internal/observability"
	"github.com/omerk/haulink/internal/repository"
)

// RequestService owns trip request creation, rejection and cancellation.
// Acceptance lives in AssignmentService.
type RequestService struct {
	trips    *repository.TripRepository
	drivers  *repository.DriverRepository
	requests *repository.RequestRepository
	notify   *notify.Queue
}

// NewRequestService creates a new request service.
func NewRequestService(trips *repository.TripRepository, drivers *repository.DriverRepository, requests *repository.RequestRepository, nq *notify.Queue) *RequestService {
	return &RequestService{trips: trips, drivers: drivers, requests: requests, notify: nq}
}

// CreateRequestInput carries a new negotiation. DriverID is the target
// driver for company-initiated directions and ignored for driver_to_company,
// where the acting driver is the subject.
type CreateRequestInput struct {
	TripID    int64
	DriverID  int64
	Direction model.RequestDirection
}

// CreateRequest opens a new negotiation on a trip.
//
// company_to_driver: the owning company offers a pending trip to a driver.
// driver_to_company: a driver asks for a pending trip.
// reassignment_approval: the owning company asks the currently assigned
// driver to release an assigned or in_progress trip.
func (s *RequestService) CreateRequest(ctx context.Context, actor model.Actor, in CreateRequestInput) (*model.TripRequest, error) {
	if !model.ValidDirection(in.Direction) {
		return nil, invalidField("direction", "unknown request direction")
	}

	trip, err := s.trips.GetTripByID(ctx, in.TripID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("trip %d: %w", in.TripID, ErrTripNotFound)
		}
		return nil, fmt.Errorf("create request: %w", err)
	}

	var driver *model.Driver
	switch in.Direction {
	case model.CompanyToDriver:
		if actor.Role != model.RoleCompany || actor.UserID != trip.CompanyID {
			return nil, fmt.Errorf("create request: %w", ErrNotAuthorized)
		}
		if trip.Status != model.TripPending {
			return nil, fmt.Errorf("create request: trip %d is '%s': %w", in.TripID, trip.Status, ErrInvalidState)
		}
		driver, err = s.targetDriver(ctx, in.DriverID)

	case model.DriverToCompany:
		if actor.Role != model.RoleDriver {
			return nil, fmt.Errorf("create request: %w", ErrNotAuthorized)
		}
		if trip.Status != model.TripPending {
			return nil, fmt.Errorf("create request: trip %d is '%s': %w", in.TripID, trip.Status, ErrInvalidState)
		}
		driver, err = s.actingDriver(ctx, actor)

	case model.ReassignmentApproval:
		if actor.Role != model.RoleCompany || actor.UserID != trip.CompanyID {
			return nil, fmt.Errorf("create request: %w", ErrNotAuthorized)
		}
		if trip.Status != model.TripAssigned && trip.Status != model.TripInProgress {
			return nil, fmt.Errorf("create request: trip %d is '%s': %w", in.TripID, trip.Status, ErrInvalidState)
		}
		// The approval must target the driver currently holding the trip.
		if trip.DriverID == nil || *trip.DriverID != in.DriverID {
			return nil, invalidField("driver_id", "must be the trip's assigned driver")
		}
		driver, err = s.targetDriver(ctx, in.DriverID)
	}
	if err != nil {
		return nil, err
	}

	req := &model.TripRequest{TripID: in.TripID, DriverID: driver.ID, Direction: in.Direction}
	if err := s.requests.CreateRequest(ctx, req); err != nil {
		var dup *repository.DuplicateRequestError
		if errors.As(err, &dup) {
			return nil, &RequestExistsError{RequestID: dup.RequestID}
		}
		return nil, fmt.Errorf("create request: %w", err)
	}

	observability.RequestsCreated.WithLabelValues(string(in.Direction)).Inc()
	log.Printf("[request] %s request %d created for trip %d, driver %d", in.Direction, req.ID, req.TripID, req.DriverID)

	// Notify the counterparty who has to act on it.
	switch in.Direction {
	case model.CompanyToDriver:
		s.notify.Enqueue(ctx, notify.Notification{
			UserID:  driver.UserID,
			Title:   "New trip offer",
			Message: fmt.Sprintf("You have been offered trip %d (%s to %s).", trip.ID, trip.PickupLocation, trip.Destination),
		})
	case model.DriverToCompany:
		s.notify.Enqueue(ctx, notify.Notification{
			UserID:  trip.CompanyID,
			Title:   "New driver request",
			Message: fmt.Sprintf("A driver has requested trip %d.", trip.ID),
		})
	case model.ReassignmentApproval:
		s.notify.Enqueue(ctx, notify.Notification{
			UserID:  driver.UserID,
			Title:   "Reassignment approval requested",
			Message: fmt.Sprintf("The company asks you to release trip %d back to the open pool.", trip.ID),
		})
	}

	return req, nil
}

// GetRequest fetches a request by id.
func (s *RequestService) GetRequest(ctx context.Context, requestID int64) (*model.TripRequest, error) {
	req, err := s.requests.GetRequestByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("request %d: %w", requestID, ErrRequestNotFound)
		}
		return nil, fmt.Errorf("get request %d: %w", requestID, err)
	}
	return req, nil
}

// ListTripRequests returns every request on a trip, visible to the owning
// company only.
func (s *RequestService) ListTripRequests(ctx context.Context, actor model.Actor, tripID int64) ([]*model.TripRequest, error) {
	trip, err := s.trips.GetTripByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("trip %d: %w", tripID, ErrTripNotFound)
		}
		return nil, fmt.Errorf("list requests: %w", err)
	}
	if actor.Role != model.RoleCompany || actor.UserID != trip.CompanyID {
		return nil, fmt.Errorf("list requests for trip %d: %w", tripID, ErrNotAuthorized)
	}
	return s.requests.ListByTrip(ctx, tripID)
}

// RejectRequest declines a pending request. Only the resolving counterparty
// for the request's direction may reject; the initiator is notified.
func (s *RequestService) RejectRequest(ctx context.Context, actor model.Actor, requestID int64) error {
	req, trip, driverUserID, err := s.loadContext(ctx, requestID)
	if err != nil {
		return err
	}
	if !model.CanResolveRequest(req.Direction, actor, trip.CompanyID, driverUserID, req.DriverID, trip.DriverID) {
		return fmt.Errorf("reject request %d: %w", requestID, ErrNotAuthorized)
	}

	if err := s.resolve(ctx, requestID, model.RequestRejected); err != nil {
		return err
	}
	log.Printf("[request] request %d rejected by user %d", requestID, actor.UserID)

	// The initiator learns the outcome.
	initiator := trip.CompanyID
	if req.Direction == model.DriverToCompany {
		initiator = driverUserID
	}
	s.notify.Enqueue(ctx, notify.Notification{
		UserID:  initiator,
		Title:   "Request declined",
		Message: fmt.Sprintf("Your request %d on trip %d was declined.", requestID, req.TripID),
	})
	return nil
}

// CancelRequest withdraws a pending request. Only the initiating party may
// cancel, and cancellation is silent: no notification goes out.
func (s *RequestService) CancelRequest(ctx context.Context, actor model.Actor, requestID int64) error {
	req, trip, driverUserID, err := s.loadContext(ctx, requestID)
	if err != nil {
		return err
	}
	if !model.CanCancelRequest(req.Direction, actor, trip.CompanyID, driverUserID) {
		return fmt.Errorf("cancel request %d: %w", requestID, ErrNotAuthorized)
	}

	if err := s.resolve(ctx, requestID, model.RequestCancelled); err != nil {
		return err
	}
	log.Printf("[request] request %d cancelled by user %d", requestID, actor.UserID)
	return nil
}

func (s *RequestService) resolve(ctx context.Context, requestID int64, to model.RequestStatus) error {
	err := s.requests.ResolveRequest(ctx, requestID, to)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("request %d: %w", requestID, ErrRequestNotFound)
	case errors.Is(err, repository.ErrRequestNotPending):
		return fmt.Errorf("request %d: %w", requestID, ErrInvalidState)
	default:
		return fmt.Errorf("resolve request %d: %w", requestID, err)
	}
}

// loadContext fetches the request plus the trip and driver identities the
// direction guards need.
func (s *RequestService) loadContext(ctx context.Context, requestID int64) (*model.TripRequest, *model.Trip, int64, error) {
	req, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return nil, nil, 0, err
	}
	trip, err := s.trips.GetTripByID(ctx, req.TripID)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("request %d: load trip %d: %w", requestID, req.TripID, err)
	}
	driver, err := s.drivers.GetDriverByID(ctx, req.DriverID)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("request %d: load driver %d: %w", requestID, req.DriverID, err)
	}
	return req, trip, driver.UserID, nil
}

func (s *RequestService) targetDriver(ctx context.Context, driverID int64) (*model.Driver, error) {
	if driverID == 0 {
		return nil, invalidField("driver_id", "must be set")
	}
	driver, err := s.drivers.GetDriverByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("driver %d: %w", driverID, ErrDriverNotFound)
		}
		return nil, fmt.Errorf("load driver %d: %w", driverID, err)
	}
	return driver, nil
}

func (s *RequestService) actingDriver(ctx context.Context, actor model.Actor) (*model.Driver, error) {
	driver, err := s.drivers.GetDriverByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("user %d: %w", actor.UserID, ErrDriverNotFound)
		}
		return nil, fmt.Errorf("resolve driver for user %d: %w", actor.UserID, err)
	}
	return driver, nil
}
