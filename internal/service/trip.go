package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/omerk/haulink/internal/model"
	"github.com/omerk/haulink/internal/notify"
	"github.com/omerk/haulink/internal/repository"
	"github.com/omerk/haulink/pkg/window"
)

// TripService owns trip CRUD and the trip lifecycle outside of assignment.
type TripService struct {
	trips     *repository.TripRepository
	drivers   *repository.DriverRepository
	notify    *notify.Queue
	opsUserID int64
}

// NewTripService creates a new trip service. opsUserID receives alerts when
// an in-flight trip is cancelled; zero disables the alert.
func NewTripService(trips *repository.TripRepository, drivers *repository.DriverRepository, nq *notify.Queue, opsUserID int64) *TripService {
	return &TripService{trips: trips, drivers: drivers, notify: nq, opsUserID: opsUserID}
}

// CreateTripInput carries company-supplied trip attributes.
type CreateTripInput struct {
	PickupLocation    string
	Destination       string
	TripDate          string // "YYYY-MM-DD"
	DepartureTime     string // "HH:MM"
	PassengerCount    int
	VehicleClass      model.VehicleClass
	CompanyPriceCents int64
	DriverPriceCents  int64
	PermitNumber      *string
}

func (in *CreateTripInput) validate() (*model.Trip, error) {
	if in.PickupLocation == "" {
		return nil, invalidField("pickup_location", "must not be empty")
	}
	if in.Destination == "" {
		return nil, invalidField("destination", "must not be empty")
	}
	date, err := parseDate(in.TripDate)
	if err != nil {
		return nil, invalidField("trip_date", "must be YYYY-MM-DD")
	}
	if _, err := window.CombineDateTime(date, in.DepartureTime); err != nil {
		return nil, invalidField("departure_time", "must be HH:MM")
	}
	if in.PassengerCount <= 0 {
		return nil, invalidField("passenger_count", "must be positive")
	}
	if in.VehicleClass < model.VehicleCar || in.VehicleClass > model.VehicleBus {
		return nil, invalidField("vehicle_class", "unknown vehicle class")
	}
	if in.CompanyPriceCents < 0 || in.DriverPriceCents < 0 {
		return nil, invalidField("price", "must not be negative")
	}
	if in.PermitNumber != nil && *in.PermitNumber == "" {
		return nil, invalidField("permit_number", "must not be empty when present")
	}
	return &model.Trip{
		PickupLocation:    in.PickupLocation,
		Destination:       in.Destination,
		TripDate:          date,
		DepartureTime:     in.DepartureTime,
		PassengerCount:    in.PassengerCount,
		VehicleClass:      in.VehicleClass,
		CompanyPriceCents: in.CompanyPriceCents,
		DriverPriceCents:  in.DriverPriceCents,
		PermitNumber:      in.PermitNumber,
	}, nil
}

// CreateTrip registers a new pending trip for the acting company.
func (s *TripService) CreateTrip(ctx context.Context, actor model.Actor, in CreateTripInput) (*model.Trip, error) {
	if actor.Role != model.RoleCompany {
		return nil, fmt.Errorf("create trip: %w", ErrNotAuthorized)
	}
	trip, err := in.validate()
	if err != nil {
		return nil, err
	}
	trip.CompanyID = actor.UserID

	if err := s.trips.CreateTrip(ctx, trip); err != nil {
		if errors.Is(err, repository.ErrDuplicatePermit) {
			return nil, fmt.Errorf("create trip: %w", ErrPermitTaken)
		}
		return nil, fmt.Errorf("create trip: %w", err)
	}

	log.Printf("[trip] company %d created trip %d (%s -> %s on %s %s)",
		actor.UserID, trip.ID, trip.PickupLocation, trip.Destination,
		trip.TripDate.Format("2006-01-02"), trip.DepartureTime)
	return trip, nil
}

// GetTrip fetches a trip by id.
func (s *TripService) GetTrip(ctx context.Context, tripID int64) (*model.Trip, error) {
	trip, err := s.trips.GetTripByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("trip %d: %w", tripID, ErrTripNotFound)
		}
		return nil, fmt.Errorf("get trip %d: %w", tripID, err)
	}
	return trip, nil
}

// UpdateTrip rewrites a pending unassigned trip's attributes.
func (s *TripService) UpdateTrip(ctx context.Context, actor model.Actor, tripID int64, in CreateTripInput) (*model.Trip, error) {
	if actor.Role != model.RoleCompany {
		return nil, fmt.Errorf("update trip: %w", ErrNotAuthorized)
	}
	trip, err := in.validate()
	if err != nil {
		return nil, err
	}
	trip.ID = tripID
	trip.CompanyID = actor.UserID

	if err := s.trips.UpdateTrip(ctx, trip); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("trip %d: %w", tripID, ErrTripNotFound)
		case errors.Is(err, repository.ErrNotAllowed):
			return nil, fmt.Errorf("update trip %d: %w", tripID, ErrNotAuthorized)
		case errors.Is(err, repository.ErrInvalidTransition):
			return nil, fmt.Errorf("update trip %d: %w", tripID, ErrInvalidState)
		default:
			return nil, fmt.Errorf("update trip %d: %w", tripID, err)
		}
	}

	s.drivers.InvalidateEligible(ctx, tripID)
	return s.GetTrip(ctx, tripID)
}

// CancelTrip cancels any non-terminal trip. The displaced driver is
// notified, and a cancellation of a trip already underway additionally
// alerts the operations account.
func (s *TripService) CancelTrip(ctx context.Context, actor model.Actor, tripID int64) error {
	if actor.Role != model.RoleCompany {
		return fmt.Errorf("cancel trip: %w", ErrNotAuthorized)
	}

	res, err := s.trips.CancelTrip(ctx, tripID, actor.UserID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("trip %d: %w", tripID, ErrTripNotFound)
		case errors.Is(err, repository.ErrNotAllowed):
			return fmt.Errorf("cancel trip %d: %w", tripID, ErrNotAuthorized)
		case errors.Is(err, repository.ErrInvalidTransition):
			return fmt.Errorf("cancel trip %d: %w", tripID, ErrInvalidState)
		default:
			return fmt.Errorf("cancel trip %d: %w", tripID, err)
		}
	}

	log.Printf("[trip] company %d cancelled trip %d (was '%s')", actor.UserID, tripID, res.PreviousStatus)
	s.drivers.InvalidateEligible(ctx, tripID)

	if res.AssignedDriverUserID != nil {
		s.notify.Enqueue(ctx, notify.Notification{
			UserID:  *res.AssignedDriverUserID,
			Title:   "Trip cancelled",
			Message: fmt.Sprintf("Trip %d you were assigned to has been cancelled.", tripID),
		})
	}
	if res.PreviousStatus == model.TripInProgress {
		s.notify.Enqueue(ctx, notify.Notification{
			UserID:  s.opsUserID,
			Title:   "In-progress trip cancelled",
			Message: fmt.Sprintf("Trip %d was cancelled while underway by company %d.", tripID, actor.UserID),
		})
	}
	return nil
}

// DeleteTrip removes a trip and all of its requests and ratings.
func (s *TripService) DeleteTrip(ctx context.Context, actor model.Actor, tripID int64) error {
	if actor.Role != model.RoleCompany {
		return fmt.Errorf("delete trip: %w", ErrNotAuthorized)
	}
	if err := s.trips.DeleteTrip(ctx, tripID, actor.UserID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("trip %d: %w", tripID, ErrTripNotFound)
		case errors.Is(err, repository.ErrNotAllowed):
			return fmt.Errorf("delete trip %d: %w", tripID, ErrNotAuthorized)
		default:
			return fmt.Errorf("delete trip %d: %w", tripID, err)
		}
	}
	s.drivers.InvalidateEligible(ctx, tripID)
	log.Printf("[trip] company %d deleted trip %d", actor.UserID, tripID)
	return nil
}

// StartTrip moves an assigned trip to in_progress, by its assigned driver.
func (s *TripService) StartTrip(ctx context.Context, actor model.Actor, tripID int64) error {
	driver, err := s.actingDriver(ctx, actor)
	if err != nil {
		return err
	}
	if err := s.trips.StartTrip(ctx, tripID, driver.ID); err != nil {
		return mapTransitionErr("start", tripID, err)
	}
	log.Printf("[trip] driver %d started trip %d", driver.ID, tripID)
	return nil
}

// CompleteTripInput optionally carries a rating alongside completion.
type CompleteTripInput struct {
	Score   int
	Comment string
}

// CompleteTrip moves an in_progress trip to completed, by its assigned
// driver. A rating, when provided, is saved best-effort: a rating failure
// never rolls back the completion. The returned bool reports whether the
// rating was persisted.
func (s *TripService) CompleteTrip(ctx context.Context, actor model.Actor, tripID int64, in *CompleteTripInput) (bool, error) {
	driver, err := s.actingDriver(ctx, actor)
	if err != nil {
		return false, err
	}
	if in != nil && (in.Score < 1 || in.Score > 5) {
		return false, invalidField("score", "must be between 1 and 5")
	}

	if err := s.trips.CompleteTrip(ctx, tripID, driver.ID); err != nil {
		return false, mapTransitionErr("complete", tripID, err)
	}
	log.Printf("[trip] driver %d completed trip %d", driver.ID, tripID)

	if in == nil {
		return false, nil
	}
	rating := &model.Rating{TripID: tripID, DriverID: driver.ID, Score: in.Score, Comment: in.Comment}
	if err := s.trips.SaveRating(ctx, rating); err != nil {
		log.Printf("[trip] rating for trip %d not saved: %v", tripID, err)
		return false, nil
	}
	return true, nil
}

func (s *TripService) actingDriver(ctx context.Context, actor model.Actor) (*model.Driver, error) {
	if actor.Role != model.RoleDriver {
		return nil, fmt.Errorf("driver operation: %w", ErrNotAuthorized)
	}
	driver, err := s.drivers.GetDriverByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("user %d: %w", actor.UserID, ErrDriverNotFound)
		}
		return nil, fmt.Errorf("resolve driver for user %d: %w", actor.UserID, err)
	}
	return driver, nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

func mapTransitionErr(op string, tripID int64, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("trip %d: %w", tripID, ErrTripNotFound)
	case errors.Is(err, repository.ErrNotAllowed):
		return fmt.Errorf("%s trip %d: %w", op, tripID, ErrNotAuthorized)
	case errors.Is(err, repository.ErrInvalidTransition):
		return fmt.Errorf("%s trip %d: %w", op, tripID, ErrInvalidState)
	default:
		return fmt.Errorf("%s trip %d: %w", op, tripID, err)
	}
}
