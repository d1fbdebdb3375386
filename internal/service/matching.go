package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/omerk/haulink/internal/model"
	"github.com/omerk/haulink/internal/observability"
	"github.com/omerk/haulink/internal/repository"
	"github.com/omerk/haulink/pkg/window"
)

// MatchingService finds drivers eligible for a trip.
//
// A driver is eligible when all of the following hold:
//  1. the availability window is fully declared,
//  2. the vehicle class covers the trip's requirement,
//  3. the availability location overlaps the pickup location,
//  4. the departure instant falls inside the availability window,
//  5. the driver has no open request on this trip already,
//  6. the driver holds no trip departing within the conflict buffer.
//
// Checks 1 and 2 are pushed into SQL; the rest run here per candidate.
// The result is advisory: acceptance re-validates conflicts under the trip
// lock.
type MatchingService struct {
	trips    *repository.TripRepository
	drivers  *repository.DriverRepository
	requests *repository.RequestRepository
}

// NewMatchingService creates a new matching service.
func NewMatchingService(trips *repository.TripRepository, drivers *repository.DriverRepository, requests *repository.RequestRepository) *MatchingService {
	return &MatchingService{trips: trips, drivers: drivers, requests: requests}
}

// EligibleDrivers returns the drivers currently eligible for the trip. Only
// the trip's owning company may search. Results are cached briefly per trip.
func (s *MatchingService) EligibleDrivers(ctx context.Context, actor model.Actor, tripID int64) ([]*model.Driver, error) {
	trip, err := s.trips.GetTripByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("trip %d: %w", tripID, ErrTripNotFound)
		}
		return nil, fmt.Errorf("match trip %d: %w", tripID, err)
	}
	if actor.Role != model.RoleCompany || actor.UserID != trip.CompanyID {
		return nil, fmt.Errorf("match trip %d: %w", tripID, ErrNotAuthorized)
	}
	if trip.Status != model.TripPending {
		return nil, fmt.Errorf("match trip %d: status is '%s': %w", tripID, trip.Status, ErrInvalidState)
	}
	if trip.PickupLocation == "" {
		return nil, invalidField("pickup_location", "required for matching")
	}
	if trip.TripDate.IsZero() || trip.DepartureTime == "" {
		return nil, invalidField("departure_time", "trip date and time required for matching")
	}

	if ids, ok := s.drivers.CachedEligibleDriverIDs(ctx, tripID); ok {
		observability.MatchCacheHits.WithLabelValues("hit").Inc()
		return s.hydrate(ctx, ids)
	}
	observability.MatchCacheHits.WithLabelValues("miss").Inc()

	departure, err := window.CombineDateTime(trip.TripDate, trip.DepartureTime)
	if err != nil {
		return nil, fmt.Errorf("match trip %d: %w", tripID, err)
	}

	candidates, err := s.drivers.FindCandidateDrivers(ctx, trip.VehicleClass)
	if err != nil {
		return nil, fmt.Errorf("match trip %d: %w", tripID, err)
	}
	inPlay, err := s.requests.OpenRequestDriverIDs(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("match trip %d: %w", tripID, err)
	}

	var eligible []*model.Driver
	for _, d := range candidates {
		if !d.Searchable() {
			continue
		}
		if !window.LocationsOverlap(*d.AvailLocation, trip.PickupLocation) {
			continue
		}
		if !window.Contains(*d.AvailFrom, *d.AvailTo, departure) {
			continue
		}
		if inPlay[d.ID] {
			continue
		}
		conflict, err := s.trips.HasSchedulingConflict(ctx, d.ID, departure, tripID)
		if err != nil {
			return nil, fmt.Errorf("match trip %d: %w", tripID, err)
		}
		if conflict {
			log.Printf("[match] trip %d: driver %d skipped, conflicting schedule", tripID, d.ID)
			continue
		}
		eligible = append(eligible, d)
	}

	ids := make([]int64, len(eligible))
	for i, d := range eligible {
		ids[i] = d.ID
	}
	s.drivers.StoreEligibleDriverIDs(ctx, tripID, ids)

	log.Printf("[match] trip %d: %d of %d candidates eligible", tripID, len(eligible), len(candidates))
	return eligible, nil
}

// hydrate resolves cached driver ids into profiles, dropping any deleted in
// the meantime.
func (s *MatchingService) hydrate(ctx context.Context, ids []int64) ([]*model.Driver, error) {
	drivers := make([]*model.Driver, 0, len(ids))
	for _, id := range ids {
		d, err := s.drivers.GetDriverByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("hydrate driver %d: %w", id, err)
		}
		drivers = append(drivers, d)
	}
	return drivers, nil
}
