package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omerk/haulink/internal/model"
)

const requestColumns = `
	id, trip_id, driver_id, direction, status, created_at, updated_at`

// RequestRepository handles trip request rows. Acceptance lives in
// AssignmentRepository because it mutates trips and rival requests in one
// transaction.
type RequestRepository struct {
	pool *pgxpool.Pool
}

// NewRequestRepository creates a new request repository.
func NewRequestRepository(pool *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{pool: pool}
}

func scanRequest(row pgx.Row) (*model.TripRequest, error) {
	req := &model.TripRequest{}
	err := row.Scan(
		&req.ID, &req.TripID, &req.DriverID, &req.Direction, &req.Status,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("trip request: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan trip request: %w", err)
	}
	return req, nil
}

// CreateRequest inserts a pending request after checking for an existing
// unresolved one for the same (trip, driver) pair. A duplicate returns
// DuplicateRequestError carrying the existing request's id.
func (r *RequestRepository) CreateRequest(ctx context.Context, req *model.TripRequest) error {
	var existingID int64
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM trip_requests
		WHERE trip_id = $1 AND driver_id = $2 AND status = 'pending'
	`, req.TripID, req.DriverID).Scan(&existingID)
	if err == nil {
		return &DuplicateRequestError{RequestID: existingID}
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("create request: duplicate lookup: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO trip_requests (trip_id, driver_id, direction, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING id, created_at, updated_at
	`, req.TripID, req.DriverID, req.Direction).
		Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Status = model.RequestPending
	return nil
}

// GetRequestByID fetches a request.
func (r *RequestRepository) GetRequestByID(ctx context.Context, id int64) (*model.TripRequest, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+requestColumns+` FROM trip_requests WHERE id = $1`, id)
	return scanRequest(row)
}

// ListByTrip returns every request for a trip, newest first.
func (r *RequestRepository) ListByTrip(ctx context.Context, tripID int64) ([]*model.TripRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+requestColumns+`
		FROM trip_requests
		WHERE trip_id = $1
		ORDER BY created_at DESC
	`, tripID)
	if err != nil {
		return nil, fmt.Errorf("list requests for trip %d: %w", tripID, err)
	}
	defer rows.Close()

	var reqs []*model.TripRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list requests for trip %d: %w", tripID, err)
	}
	return reqs, nil
}

// OpenRequestDriverIDs returns the driver ids with an unresolved or accepted
// request on a trip. The matcher uses this to exclude drivers already in
// play.
func (r *RequestRepository) OpenRequestDriverIDs(ctx context.Context, tripID int64) (map[int64]bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT driver_id FROM trip_requests
		WHERE trip_id = $1 AND status IN ('pending', 'accepted')
	`, tripID)
	if err != nil {
		return nil, fmt.Errorf("open request drivers for trip %d: %w", tripID, err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("open request drivers for trip %d: %w", tripID, err)
		}
		ids[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("open request drivers for trip %d: %w", tripID, err)
	}
	return ids, nil
}

// ResolveRequest moves a pending request to `to` (rejected or cancelled).
// The request row is locked so a racing acceptance observes one outcome.
// Terminal requests return ErrRequestNotPending.
func (r *RequestRepository) ResolveRequest(ctx context.Context, requestID int64, to model.RequestStatus) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("resolve request: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var status model.RequestStatus
	err = tx.QueryRow(ctx, `
		SELECT status FROM trip_requests WHERE id = $1 FOR UPDATE
	`, requestID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("request %d: %w", requestID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("resolve request: lock request %d: %w", requestID, err)
	}
	if status != model.RequestPending {
		return fmt.Errorf("request %d status is '%s': %w", requestID, status, ErrRequestNotPending)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE trip_requests SET status = $2, updated_at = NOW() WHERE id = $1
	`, requestID, to); err != nil {
		return fmt.Errorf("resolve request %d: %w", requestID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("resolve request: commit: %w", err)
	}
	return nil
}
