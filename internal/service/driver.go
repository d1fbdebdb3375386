package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/omerk/haulink/internal/model"
	"github.com/omerk/haulink/internal/repository"
)

// DriverService owns driver profiles and availability windows.
type DriverService struct {
	drivers *repository.DriverRepository
}

// NewDriverService creates a new driver service.
func NewDriverService(drivers *repository.DriverRepository) *DriverService {
	return &DriverService{drivers: drivers}
}

// GetDriver fetches a driver profile by id.
func (s *DriverService) GetDriver(ctx context.Context, driverID int64) (*model.Driver, error) {
	driver, err := s.drivers.GetDriverByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("driver %d: %w", driverID, ErrDriverNotFound)
		}
		return nil, fmt.Errorf("get driver %d: %w", driverID, err)
	}
	return driver, nil
}

// AvailabilityInput is the driver's declared window. All three fields must
// be set together or all cleared; a partial window makes the driver
// unsearchable, so it is rejected outright.
type AvailabilityInput struct {
	Location string
	From     string // RFC 3339
	To       string // RFC 3339
	Clear    bool
}

// UpdateAvailability overwrites the acting driver's availability window.
func (s *DriverService) UpdateAvailability(ctx context.Context, actor model.Actor, in AvailabilityInput) (*model.Driver, error) {
	if actor.Role != model.RoleDriver {
		return nil, fmt.Errorf("update availability: %w", ErrNotAuthorized)
	}
	driver, err := s.drivers.GetDriverByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("user %d: %w", actor.UserID, ErrDriverNotFound)
		}
		return nil, fmt.Errorf("update availability: %w", err)
	}

	var location *string
	var from, to *time.Time
	if !in.Clear {
		if in.Location == "" {
			return nil, invalidField("location", "must not be empty")
		}
		f, err := time.Parse(time.RFC3339, in.From)
		if err != nil {
			return nil, invalidField("from", "must be RFC 3339")
		}
		t, err := time.Parse(time.RFC3339, in.To)
		if err != nil {
			return nil, invalidField("to", "must be RFC 3339")
		}
		f, t = f.UTC(), t.UTC()
		if !t.After(f) {
			return nil, invalidField("to", "must be after from")
		}
		location, from, to = &in.Location, &f, &t
	}

	if err := s.drivers.UpdateAvailability(ctx, driver.ID, location, from, to); err != nil {
		return nil, fmt.Errorf("update availability for driver %d: %w", driver.ID, err)
	}
	if in.Clear {
		log.Printf("[driver] driver %d cleared availability", driver.ID)
	} else {
		log.Printf("[driver] driver %d now available at %q from %s to %s",
			driver.ID, in.Location, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return s.drivers.GetDriverByID(ctx, driver.ID)
}
