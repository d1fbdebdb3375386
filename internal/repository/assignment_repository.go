package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omerk/haulink/internal/model"
)

// DefaultAssignmentTimeout bounds how long an acceptance may wait on row
// locks before giving up.
const DefaultAssignmentTimeout = 5 * time.Second

// RejectedRequest identifies a rival request swept up by the cascade.
type RejectedRequest struct {
	RequestID    int64
	DriverID     int64
	DriverUserID int64
}

// AssignmentResult carries everything the service layer needs after the
// transaction commits: who won, who lost, and whether the trip was assigned
// or released back to pending.
type AssignmentResult struct {
	Request      *model.TripRequest
	TripID       int64
	CompanyID    int64
	TripStatus   model.TripStatus
	DriverUserID int64
	Released     bool
	Rejected     []RejectedRequest
}

// AssignmentRepository owns the accept transaction. It is the single place
// where a request acceptance, the trip's driver binding and the rival
// cascade are written, all under the trip's row lock.
type AssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository creates a new assignment repository.
func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{pool: pool}
}

// AcceptRequest accepts a pending request atomically.
//
// For company_to_driver and driver_to_company requests the trip is bound to
// the request's driver, every other pending request on the trip is rejected,
// and the driver's schedule is re-checked for conflicts under the lock. For
// reassignment_approval requests the trip is released back to pending and
// unassigned; no cascade and no conflict check apply.
//
// Lock order is trip first, then request. Concurrent acceptances on the
// same trip all queue on the trip lock holding no other row locks, so the
// winner's cascade can never deadlock against a waiting rival; each rival
// then finds its request already rejected.
func (r *AssignmentRepository) AcceptRequest(ctx context.Context, requestID int64, actor model.Actor) (*AssignmentResult, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultAssignmentTimeout)
	defer cancel()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("accept request: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Step 1: read the request (no lock yet) to learn which trip to lock.
	var tripID int64
	err = tx.QueryRow(ctx, `
		SELECT trip_id FROM trip_requests WHERE id = $1
	`, requestID).Scan(&tripID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("request %d: %w", requestID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("accept request: read request %d: %w", requestID, err)
	}

	// Step 2: lock the trip. Validation below happens under this lock.
	var companyID int64
	var tripStatus model.TripStatus
	var assignedDriverID *int64
	err = tx.QueryRow(ctx, `
		SELECT company_id, status, driver_id FROM trips WHERE id = $1 FOR UPDATE
	`, tripID).Scan(&companyID, &tripStatus, &assignedDriverID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("trip %d: %w", tripID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("accept request: lock trip %d: %w", tripID, err)
	}

	// Step 2b: lock the request and re-check it; a rival accepted while we
	// waited may have cascade-rejected it.
	req := &model.TripRequest{}
	err = tx.QueryRow(ctx, `
		SELECT id, trip_id, driver_id, direction, status, created_at, updated_at
		FROM trip_requests WHERE id = $1 FOR UPDATE
	`, requestID).Scan(
		&req.ID, &req.TripID, &req.DriverID, &req.Direction, &req.Status,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("accept request: lock request %d: %w", requestID, err)
	}
	if req.Status != model.RequestPending {
		return nil, fmt.Errorf("request %d status is '%s': %w", requestID, req.Status, ErrRequestNotPending)
	}

	// Step 3: resolve the request driver's user account and check that the
	// actor is the party this direction allows to accept.
	var driverUserID int64
	if err := tx.QueryRow(ctx, `SELECT user_id FROM drivers WHERE id = $1`, req.DriverID).Scan(&driverUserID); err != nil {
		return nil, fmt.Errorf("accept request: resolve driver %d: %w", req.DriverID, err)
	}
	if !model.CanResolveRequest(req.Direction, actor, companyID, driverUserID, req.DriverID, assignedDriverID) {
		return nil, fmt.Errorf("accept request %d: %w", requestID, ErrNotAllowed)
	}

	// Step 4: the trip must still be live.
	if model.TerminalTrip(tripStatus) {
		return nil, fmt.Errorf("accept request %d: trip %d is '%s': %w", requestID, req.TripID, tripStatus, ErrTripClosed)
	}

	result := &AssignmentResult{
		Request:      req,
		TripID:       req.TripID,
		CompanyID:    companyID,
		DriverUserID: driverUserID,
	}

	if req.Direction == model.ReassignmentApproval {
		// Step 5a: release. The trip returns to the open pool unassigned.
		if _, err := tx.Exec(ctx, `
			UPDATE trips SET status = 'pending', driver_id = NULL, updated_at = NOW() WHERE id = $1
		`, req.TripID); err != nil {
			return nil, fmt.Errorf("release trip %d: %w", req.TripID, err)
		}
		result.Released = true
		result.TripStatus = model.TripPending
	} else {
		// Step 5b: assign. Re-check the driver's schedule under the lock;
		// this is the authoritative conflict check.
		var conflict bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM trips c
				WHERE c.driver_id = $1
				  AND c.status IN ('assigned', 'in_progress')
				  AND c.id <> $2
				  AND ABS(EXTRACT(EPOCH FROM (
				        (c.trip_date + c.departure_time) -
				        (SELECT t.trip_date + t.departure_time FROM trips t WHERE t.id = $2)
				  ))) < $3
			)
		`, req.DriverID, req.TripID, model.ConflictBuffer.Seconds()).Scan(&conflict)
		if err != nil {
			return nil, fmt.Errorf("accept request %d: conflict check: %w", requestID, err)
		}
		if conflict {
			return nil, fmt.Errorf("accept request %d: driver %d: %w", requestID, req.DriverID, ErrSchedulingConflict)
		}

		// Collect rivals before the cascade so the caller can notify them.
		rows, err := tx.Query(ctx, `
			SELECT tr.id, tr.driver_id, d.user_id
			FROM trip_requests tr
			JOIN drivers d ON d.id = tr.driver_id
			WHERE tr.trip_id = $1 AND tr.status = 'pending' AND tr.id <> $2
		`, req.TripID, requestID)
		if err != nil {
			return nil, fmt.Errorf("accept request %d: list rivals: %w", requestID, err)
		}
		for rows.Next() {
			var rr RejectedRequest
			if err := rows.Scan(&rr.RequestID, &rr.DriverID, &rr.DriverUserID); err != nil {
				rows.Close()
				return nil, fmt.Errorf("accept request %d: scan rival: %w", requestID, err)
			}
			result.Rejected = append(result.Rejected, rr)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("accept request %d: list rivals: %w", requestID, err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE trip_requests SET status = 'rejected', updated_at = NOW()
			WHERE trip_id = $1 AND status = 'pending' AND id <> $2
		`, req.TripID, requestID); err != nil {
			return nil, fmt.Errorf("accept request %d: cascade reject: %w", requestID, err)
		}

		// A trip already running keeps its status; otherwise it becomes
		// assigned.
		newStatus := model.TripAssigned
		if tripStatus == model.TripInProgress {
			newStatus = model.TripInProgress
		}
		if _, err := tx.Exec(ctx, `
			UPDATE trips SET driver_id = $2, status = $3, updated_at = NOW() WHERE id = $1
		`, req.TripID, req.DriverID, newStatus); err != nil {
			return nil, fmt.Errorf("accept request %d: bind driver: %w", requestID, err)
		}
		result.TripStatus = newStatus
	}

	// Step 6: mark the winner and commit.
	if _, err := tx.Exec(ctx, `
		UPDATE trip_requests SET status = 'accepted', updated_at = NOW() WHERE id = $1
	`, requestID); err != nil {
		return nil, fmt.Errorf("accept request %d: %w", requestID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("accept request: commit: %w", err)
	}

	req.Status = model.RequestAccepted
	return result, nil
}
