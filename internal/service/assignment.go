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

// AssignmentService accepts trip requests. The heavy lifting is the accept
// transaction in the repository; this layer maps errors, emits metrics and
// fans out post-commit notifications.
type AssignmentService struct {
	assignments *repository.AssignmentRepository
	drivers     *repository.DriverRepository
	notify      *notify.Queue
}

// NewAssignmentService creates a new assignment service.
func NewAssignmentService(assignments *repository.AssignmentRepository, drivers *repository.DriverRepository, nq *notify.Queue) *AssignmentService {
	return &AssignmentService{assignments: assignments, drivers: drivers, notify: nq}
}

// AcceptRequest accepts a pending request on behalf of the actor. On
// success the trip is either bound to the request's driver (with every
// rival request rejected) or, for a reassignment approval, released back to
// pending. Notifications go out only after the transaction commits.
func (s *AssignmentService) AcceptRequest(ctx context.Context, actor model.Actor, requestID int64) (*repository.AssignmentResult, error) {
	res, err := s.assignments.AcceptRequest(ctx, requestID, actor)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("accept request %d: %w", requestID, ErrRequestNotFound)
		case errors.Is(err, repository.ErrNotAllowed):
			return nil, fmt.Errorf("accept request %d: %w", requestID, ErrNotAuthorized)
		case errors.Is(err, repository.ErrRequestNotPending), errors.Is(err, repository.ErrTripClosed):
			return nil, fmt.Errorf("accept request %d: %w", requestID, ErrInvalidState)
		case errors.Is(err, repository.ErrSchedulingConflict):
			observability.SchedulingConflicts.Inc()
			return nil, fmt.Errorf("accept request %d: %w", requestID, ErrSchedulingConflict)
		case errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("accept request %d: lock wait: %w", requestID, err)
		default:
			return nil, fmt.Errorf("accept request %d: %w", requestID, err)
		}
	}

	s.drivers.InvalidateEligible(ctx, res.TripID)

	if res.Released {
		observability.Assignments.WithLabelValues("released").Inc()
		log.Printf("[assign] request %d accepted: trip %d released to pending by driver %d",
			requestID, res.TripID, res.Request.DriverID)
		s.notify.Enqueue(ctx, notify.Notification{
			UserID:  res.CompanyID,
			Title:   "Trip released",
			Message: fmt.Sprintf("The driver approved reassignment; trip %d is open again.", res.TripID),
		})
		return res, nil
	}

	observability.Assignments.WithLabelValues("assigned").Inc()
	observability.CascadeRejections.Add(float64(len(res.Rejected)))
	log.Printf("[assign] request %d accepted: trip %d -> driver %d, %d rival request(s) rejected",
		requestID, res.TripID, res.Request.DriverID, len(res.Rejected))

	// Winner, owner, then losers.
	s.notify.Enqueue(ctx, notify.Notification{
		UserID:  res.DriverUserID,
		Title:   "Trip assigned",
		Message: fmt.Sprintf("You are now assigned to trip %d.", res.TripID),
	})
	s.notify.Enqueue(ctx, notify.Notification{
		UserID:  res.CompanyID,
		Title:   "Trip assigned",
		Message: fmt.Sprintf("Trip %d has been assigned to a driver.", res.TripID),
	})
	for _, rr := range res.Rejected {
		s.notify.Enqueue(ctx, notify.Notification{
			UserID:  rr.DriverUserID,
			Title:   "Request rejected",
			Message: fmt.Sprintf("Trip %d was assigned to another driver.", res.TripID),
		})
	}

	return res, nil
}
