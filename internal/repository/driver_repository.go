package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/omerk/haulink/internal/model"
)

const driverColumns = `
	id, user_id, vehicle_class, avail_location, avail_from, avail_to,
	created_at, updated_at`

// DriverRepository handles driver profiles, availability windows and the
// eligible-driver cache.
type DriverRepository struct {
	pool     *pgxpool.Pool
	redis    *redis.Client
	cacheTTL time.Duration
}

// NewDriverRepository creates a new driver repository.
func NewDriverRepository(pool *pgxpool.Pool, rdb *redis.Client, cacheTTL time.Duration) *DriverRepository {
	return &DriverRepository{pool: pool, redis: rdb, cacheTTL: cacheTTL}
}

func scanDriver(row pgx.Row) (*model.Driver, error) {
	d := &model.Driver{}
	err := row.Scan(
		&d.ID, &d.UserID, &d.VehicleClass, &d.AvailLocation, &d.AvailFrom, &d.AvailTo,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("driver: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan driver: %w", err)
	}
	return d, nil
}

// GetDriverByID fetches a driver profile.
func (r *DriverRepository) GetDriverByID(ctx context.Context, id int64) (*model.Driver, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+driverColumns+` FROM drivers WHERE id = $1`, id)
	return scanDriver(row)
}

// GetDriverByUserID fetches the driver profile backing a user account.
func (r *DriverRepository) GetDriverByUserID(ctx context.Context, userID int64) (*model.Driver, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+driverColumns+` FROM drivers WHERE user_id = $1`, userID)
	return scanDriver(row)
}

// CreateDriver inserts a driver profile. Used by seeding and tests; driver
// onboarding has no HTTP surface here.
func (r *DriverRepository) CreateDriver(ctx context.Context, d *model.Driver) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO drivers (user_id, vehicle_class, avail_location, avail_from, avail_to)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, d.UserID, d.VehicleClass, d.AvailLocation, d.AvailFrom, d.AvailTo).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create driver: %w", err)
	}
	return nil
}

// UpdateAvailability overwrites the driver's availability triple. Each call
// replaces the previous window; a driver has at most one.
func (r *DriverRepository) UpdateAvailability(ctx context.Context, driverID int64, location *string, from, to *time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE drivers
		SET avail_location = $2, avail_from = $3, avail_to = $4, updated_at = NOW()
		WHERE id = $1
	`, driverID, location, from, to)
	if err != nil {
		return fmt.Errorf("update availability for driver %d: %w", driverID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("driver %d: %w", driverID, ErrNotFound)
	}
	return nil
}

// FindCandidateDrivers returns drivers whose vehicle class covers the trip's
// requirement and whose availability window is fully set. Location and
// window checks happen in the service layer, per driver, because the
// location match is a substring test the database cannot index.
func (r *DriverRepository) FindCandidateDrivers(ctx context.Context, minClass model.VehicleClass) ([]*model.Driver, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+driverColumns+`
		FROM drivers
		WHERE vehicle_class >= $1
		  AND avail_location IS NOT NULL
		  AND avail_from IS NOT NULL
		  AND avail_to IS NOT NULL
		ORDER BY avail_from ASC
	`, minClass)
	if err != nil {
		return nil, fmt.Errorf("find candidate drivers: %w", err)
	}
	defer rows.Close()

	var drivers []*model.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find candidate drivers: %w", err)
	}
	return drivers, nil
}

// ─── Eligible-driver cache ──────────────────────────────────

// The matcher result for a trip is cached briefly in Redis. The cache is
// advisory: assignment always re-validates conflicts under the trip lock.

func eligibleCacheKey(tripID int64) string {
	return fmt.Sprintf("match:eligible:%d", tripID)
}

// CachedEligibleDriverIDs returns the cached matcher result for a trip, or
// (nil, false) on a miss. Redis errors degrade to a miss.
func (r *DriverRepository) CachedEligibleDriverIDs(ctx context.Context, tripID int64) ([]int64, bool) {
	val, err := r.redis.Get(ctx, eligibleCacheKey(tripID)).Result()
	if err != nil {
		return nil, false
	}
	if val == "" {
		return []int64{}, true
	}
	parts := strings.Split(val, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// StoreEligibleDriverIDs caches the matcher result for a trip.
func (r *DriverRepository) StoreEligibleDriverIDs(ctx context.Context, tripID int64, ids []int64) {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = strconv.FormatInt(id, 10)
	}
	if err := r.redis.Set(ctx, eligibleCacheKey(tripID), strings.Join(strs, ","), r.cacheTTL).Err(); err != nil {
		// Cache write failures are non-fatal.
		return
	}
}

// InvalidateEligible drops the cached matcher result for a trip. Called on
// assignment and on any trip mutation.
func (r *DriverRepository) InvalidateEligible(ctx context.Context, tripID int64) {
	_ = r.redis.Del(ctx, eligibleCacheKey(tripID)).Err()
}
