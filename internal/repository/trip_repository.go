// Package repository provides database access for the trip brokering system.
//
// All multi-row mutations run inside transactions with row-level locking
// (SELECT ... FOR UPDATE) so that trip status changes serialize against the
// assignment transaction in assignment_repository.go.
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

// tripColumns is the SELECT list shared by every trip query. departure_time
// is a TIME column exposed to Go as "HH:MM".
const tripColumns = `
	id, company_id, driver_id, pickup_location, destination,
	trip_date, to_char(departure_time, 'HH24:MI') AS departure_time,
	passenger_count, vehicle_class, company_price_cents, driver_price_cents,
	permit_number, status, created_at, updated_at`

// TripRepository handles trip CRUD and trip status transitions.
type TripRepository struct {
	pool *pgxpool.Pool
}

// NewTripRepository creates a new trip repository.
func NewTripRepository(pool *pgxpool.Pool) *TripRepository {
	return &TripRepository{pool: pool}
}

func scanTrip(row pgx.Row) (*model.Trip, error) {
	t := &model.Trip{}
	err := row.Scan(
		&t.ID, &t.CompanyID, &t.DriverID, &t.PickupLocation, &t.Destination,
		&t.TripDate, &t.DepartureTime,
		&t.PassengerCount, &t.VehicleClass, &t.CompanyPriceCents, &t.DriverPriceCents,
		&t.PermitNumber, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("trip: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan trip: %w", err)
	}
	return t, nil
}

// ─── CRUD ───────────────────────────────────────────────────

// CreateTrip inserts a new pending trip.
//
// Permit uniqueness per company is enforced by lookup-before-create (the
// partial unique index in the schema is only a backstop).
func (r *TripRepository) CreateTrip(ctx context.Context, t *model.Trip) error {
	if t.PermitNumber != nil {
		var existing int64
		err := r.pool.QueryRow(ctx, `
			SELECT id FROM trips
			WHERE company_id = $1 AND permit_number = $2
		`, t.CompanyID, *t.PermitNumber).Scan(&existing)
		if err == nil {
			return fmt.Errorf("create trip: permit %q on trip %d: %w", *t.PermitNumber, existing, ErrDuplicatePermit)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("create trip: permit lookup: %w", err)
		}
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO trips (
			company_id, pickup_location, destination,
			trip_date, departure_time, passenger_count, vehicle_class,
			company_price_cents, driver_price_cents, permit_number, status
		) VALUES ($1, $2, $3, $4, $5::time, $6, $7, $8, $9, $10, 'pending')
		RETURNING id, created_at, updated_at
	`,
		t.CompanyID, t.PickupLocation, t.Destination,
		t.TripDate, t.DepartureTime, t.PassengerCount, t.VehicleClass,
		t.CompanyPriceCents, t.DriverPriceCents, t.PermitNumber,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create trip: %w", err)
	}

	t.Status = model.TripPending
	return nil
}

// GetTripByID fetches a trip.
func (r *TripRepository) GetTripByID(ctx context.Context, id int64) (*model.Trip, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+tripColumns+` FROM trips WHERE id = $1`, id)
	return scanTrip(row)
}

// UpdateTrip rewrites a trip's mutable attributes. Only unassigned pending
// trips may be edited; the row is locked so the check cannot race an
// acceptance.
func (r *TripRepository) UpdateTrip(ctx context.Context, t *model.Trip) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("update trip: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var companyID int64
	var status model.TripStatus
	err = tx.QueryRow(ctx, `
		SELECT company_id, status FROM trips WHERE id = $1 FOR UPDATE
	`, t.ID).Scan(&companyID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("update trip %d: %w", t.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update trip: lock trip %d: %w", t.ID, err)
	}
	if companyID != t.CompanyID {
		return fmt.Errorf("update trip %d: %w", t.ID, ErrNotAllowed)
	}
	if status != model.TripPending {
		return fmt.Errorf("update trip %d: status is '%s': %w", t.ID, status, ErrInvalidTransition)
	}

	_, err = tx.Exec(ctx, `
		UPDATE trips
		SET pickup_location = $2, destination = $3,
		    trip_date = $4, departure_time = $5::time,
		    passenger_count = $6, vehicle_class = $7,
		    company_price_cents = $8, driver_price_cents = $9,
		    updated_at = NOW()
		WHERE id = $1
	`,
		t.ID, t.PickupLocation, t.Destination,
		t.TripDate, t.DepartureTime,
		t.PassengerCount, t.VehicleClass,
		t.CompanyPriceCents, t.DriverPriceCents,
	)
	if err != nil {
		return fmt.Errorf("update trip %d: %w", t.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("update trip: commit: %w", err)
	}
	return nil
}

// DeleteTrip removes a trip and cascades request and rating cleanup.
func (r *TripRepository) DeleteTrip(ctx context.Context, tripID, companyID int64) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("delete trip: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var owner int64
	err = tx.QueryRow(ctx, `SELECT company_id FROM trips WHERE id = $1 FOR UPDATE`, tripID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("delete trip %d: %w", tripID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete trip: lock trip %d: %w", tripID, err)
	}
	if owner != companyID {
		return fmt.Errorf("delete trip %d: %w", tripID, ErrNotAllowed)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM trip_requests WHERE trip_id = $1`, tripID); err != nil {
		return fmt.Errorf("delete trip %d requests: %w", tripID, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM ratings WHERE trip_id = $1`, tripID); err != nil {
		return fmt.Errorf("delete trip %d ratings: %w", tripID, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM trips WHERE id = $1`, tripID); err != nil {
		return fmt.Errorf("delete trip %d: %w", tripID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("delete trip: commit: %w", err)
	}
	return nil
}

// ─── Status transitions ─────────────────────────────────────

// StartTrip moves an assigned trip to in_progress. Only the assigned driver
// may start it. The trip row is locked so the transition serializes against
// concurrent acceptances and cancellations.
func (r *TripRepository) StartTrip(ctx context.Context, tripID, driverID int64) error {
	return r.driverTransition(ctx, tripID, driverID, model.TripAssigned, model.TripInProgress)
}

// CompleteTrip moves an in_progress trip to completed, by the assigned
// driver only.
func (r *TripRepository) CompleteTrip(ctx context.Context, tripID, driverID int64) error {
	return r.driverTransition(ctx, tripID, driverID, model.TripInProgress, model.TripCompleted)
}

func (r *TripRepository) driverTransition(ctx context.Context, tripID, driverID int64, from, to model.TripStatus) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("trip transition: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var status model.TripStatus
	var assigned *int64
	err = tx.QueryRow(ctx, `
		SELECT status, driver_id FROM trips WHERE id = $1 FOR UPDATE
	`, tripID).Scan(&status, &assigned)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("trip %d: %w", tripID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("trip transition: lock trip %d: %w", tripID, err)
	}

	if assigned == nil || *assigned != driverID {
		return fmt.Errorf("trip %d is not assigned to driver %d: %w", tripID, driverID, ErrNotAllowed)
	}
	if status != from {
		return fmt.Errorf("trip %d status is '%s', expected '%s': %w", tripID, status, from, ErrInvalidTransition)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE trips SET status = $2, updated_at = NOW() WHERE id = $1
	`, tripID, to); err != nil {
		return fmt.Errorf("trip %d: set status '%s': %w", tripID, to, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("trip transition: commit: %w", err)
	}
	return nil
}

// CancelResult reports what a cancellation displaced, so the service layer
// can notify the right parties.
type CancelResult struct {
	PreviousStatus       model.TripStatus
	AssignedDriverUserID *int64
}

// CancelTrip cancels any non-terminal trip owned by the company. The
// assigned driver (if any) is unassigned so the driver_id/status invariant
// holds, and any still-pending requests are cancelled with the trip.
func (r *TripRepository) CancelTrip(ctx context.Context, tripID, companyID int64) (*CancelResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("cancel trip: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var owner int64
	var status model.TripStatus
	var assigned *int64
	err = tx.QueryRow(ctx, `
		SELECT company_id, status, driver_id FROM trips WHERE id = $1 FOR UPDATE
	`, tripID).Scan(&owner, &status, &assigned)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("cancel trip %d: %w", tripID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("cancel trip: lock trip %d: %w", tripID, err)
	}
	if owner != companyID {
		return nil, fmt.Errorf("cancel trip %d: %w", tripID, ErrNotAllowed)
	}
	if model.TerminalTrip(status) {
		return nil, fmt.Errorf("cancel trip %d: status is '%s': %w", tripID, status, ErrInvalidTransition)
	}

	result := &CancelResult{PreviousStatus: status}
	if assigned != nil {
		var userID int64
		if err := tx.QueryRow(ctx, `SELECT user_id FROM drivers WHERE id = $1`, *assigned).Scan(&userID); err != nil {
			return nil, fmt.Errorf("cancel trip %d: resolve driver %d: %w", tripID, *assigned, err)
		}
		result.AssignedDriverUserID = &userID
	}

	if _, err := tx.Exec(ctx, `
		UPDATE trips SET status = 'cancelled', driver_id = NULL, updated_at = NOW() WHERE id = $1
	`, tripID); err != nil {
		return nil, fmt.Errorf("cancel trip %d: %w", tripID, err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE trip_requests SET status = 'cancelled', updated_at = NOW()
		WHERE trip_id = $1 AND status = 'pending'
	`, tripID); err != nil {
		return nil, fmt.Errorf("cancel trip %d: cancel requests: %w", tripID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("cancel trip: commit: %w", err)
	}
	return result, nil
}

// SaveRating records the rating submitted when a trip is completed. One
// rating per trip; a second write updates the first.
func (r *TripRepository) SaveRating(ctx context.Context, rating *model.Rating) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO ratings (trip_id, driver_id, score, comment)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (trip_id) DO UPDATE
		SET score = EXCLUDED.score, comment = EXCLUDED.comment
		RETURNING id, created_at
	`, rating.TripID, rating.DriverID, rating.Score, rating.Comment).
		Scan(&rating.ID, &rating.CreatedAt)
	if err != nil {
		return fmt.Errorf("save rating for trip %d: %w", rating.TripID, err)
	}
	return nil
}

// ─── Conflict detection ─────────────────────────────────────

// HasSchedulingConflict reports whether the driver holds a trip whose
// departure lies strictly within the conflict buffer of `at`. Trips exactly
// ConflictBuffer apart are allowed. This is the eager, advisory form used
// by the matcher; the assignment transaction re-runs the same predicate
// under the trip lock before committing.
func (r *TripRepository) HasSchedulingConflict(ctx context.Context, driverID int64, at time.Time, excludeTripID int64) (bool, error) {
	var conflict bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM trips
			WHERE driver_id = $1
			  AND status IN ('assigned', 'in_progress')
			  AND id <> $2
			  AND ABS(EXTRACT(EPOCH FROM ((trip_date + departure_time) - $3::timestamp))) < $4
		)
	`, driverID, excludeTripID, at.UTC(), model.ConflictBuffer.Seconds()).Scan(&conflict)
	if err != nil {
		return false, fmt.Errorf("scheduling conflict check for driver %d: %w", driverID, err)
	}
	return conflict, nil
}
