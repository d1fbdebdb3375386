// DB-backed tests for the eligibility matcher. They need PostgreSQL; Redis
// is optional (an unreachable Redis degrades every lookup to a cache miss).
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/omerk/haulink/internal/model"
	"github.com/omerk/haulink/internal/repository"
)

const testCompanyID = int64(100)

var testCompany = model.Actor{UserID: testCompanyID, Role: model.RoleCompany}

type matchFixture struct {
	pool    *pgxpool.Pool
	drivers *repository.DriverRepository
	svc     *MatchingService
}

func setupMatching(t *testing.T) *matchFixture {
	t.Helper()

	dsn := os.Getenv("HAULINK_TEST_DSN")
	if dsn == "" {
		t.Skip("HAULINK_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	if err := applyTestMigration(ctx, pool); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := pool.Exec(ctx, "TRUNCATE TABLE ratings, trip_requests, trips, drivers RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	redisAddr := os.Getenv("HAULINK_TEST_REDIS")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr, DialTimeout: 500 * time.Millisecond})
	t.Cleanup(func() { rdb.Close() })

	tripRepo := repository.NewTripRepository(pool)
	driverRepo := repository.NewDriverRepository(pool, rdb, 15*time.Second)
	requestRepo := repository.NewRequestRepository(pool)

	return &matchFixture{
		pool:    pool,
		drivers: driverRepo,
		svc:     NewMatchingService(tripRepo, driverRepo, requestRepo),
	}
}

func applyTestMigration(ctx context.Context, pool *pgxpool.Pool) error {
	path := filepath.Join("..", "..", "migrations", "001_create_schema.up.sql")
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var lines []string
	for _, line := range strings.Split(string(content), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}
	for _, stmt := range strings.Split(strings.Join(lines, "\n"), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec migration statement: %w", err)
		}
	}
	return nil
}

func (f *matchFixture) seedTrip(t *testing.T, hhmm string, class model.VehicleClass) int64 {
	t.Helper()
	var id int64
	err := f.pool.QueryRow(context.Background(), `
		INSERT INTO trips (
			company_id, pickup_location, destination,
			trip_date, departure_time, passenger_count, vehicle_class, status
		) VALUES ($1, 'Haifa', 'Tel Aviv', '2025-10-26', $2::time, 4, $3, 'pending')
		RETURNING id
	`, testCompanyID, hhmm, class).Scan(&id)
	if err != nil {
		t.Fatalf("seed trip: %v", err)
	}
	return id
}

func (f *matchFixture) seedDriver(t *testing.T, userID int64, class model.VehicleClass, location string, fromHour, toHour int) int64 {
	t.Helper()
	day := time.Date(2025, 10, 26, 0, 0, 0, 0, time.UTC)
	var id int64
	err := f.pool.QueryRow(context.Background(), `
		INSERT INTO drivers (user_id, vehicle_class, avail_location, avail_from, avail_to)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, userID, class, location, day.Add(time.Duration(fromHour)*time.Hour), day.Add(time.Duration(toHour)*time.Hour)).Scan(&id)
	if err != nil {
		t.Fatalf("seed driver: %v", err)
	}
	return id
}

// eligible runs the matcher with a cleared cache and returns driver ids.
func (f *matchFixture) eligible(t *testing.T, tripID int64) []int64 {
	t.Helper()
	ctx := context.Background()
	f.drivers.InvalidateEligible(ctx, tripID)

	drivers, err := f.svc.EligibleDrivers(ctx, testCompany, tripID)
	if err != nil {
		t.Fatalf("EligibleDrivers(%d): %v", tripID, err)
	}
	ids := make([]int64, len(drivers))
	for i, d := range drivers {
		ids[i] = d.ID
	}
	return ids
}

func TestEligibleDrivers_LocationAndWindow(t *testing.T) {
	f := setupMatching(t)

	// Trip from Haifa at 14:00, class car.
	tripID := f.seedTrip(t, "14:00", model.VehicleCar)

	d1 := f.seedDriver(t, 201, model.VehicleCar, "Haifa", 8, 18)
	f.seedDriver(t, 202, model.VehicleCar, "Tel Aviv", 8, 18) // wrong city

	got := f.eligible(t, tripID)
	if len(got) != 1 || got[0] != d1 {
		t.Fatalf("eligible = %v, want exactly [%d]", got, d1)
	}
}

func TestEligibleDrivers_SubstringLocation(t *testing.T) {
	f := setupMatching(t)
	tripID := f.seedTrip(t, "14:00", model.VehicleCar)

	port := f.seedDriver(t, 211, model.VehicleCar, "Haifa Port", 8, 18) // contains "Haifa"
	f.seedDriver(t, 212, model.VehicleCar, "haifa", 8, 18)             // case mismatch

	got := f.eligible(t, tripID)
	if len(got) != 1 || got[0] != port {
		t.Fatalf("eligible = %v, want exactly [%d]", got, port)
	}
}

func TestEligibleDrivers_VehicleClassOrdinal(t *testing.T) {
	f := setupMatching(t)

	// Van trip: a bus may serve it, a car may not.
	tripID := f.seedTrip(t, "14:00", model.VehicleVan)

	f.seedDriver(t, 221, model.VehicleCar, "Haifa", 8, 18)
	van := f.seedDriver(t, 222, model.VehicleVan, "Haifa", 8, 18)
	bus := f.seedDriver(t, 223, model.VehicleBus, "Haifa", 8, 18)

	got := f.eligible(t, tripID)
	if len(got) != 2 {
		t.Fatalf("eligible = %v, want [%d %d]", got, van, bus)
	}
	seen := map[int64]bool{got[0]: true, got[1]: true}
	if !seen[van] || !seen[bus] {
		t.Errorf("eligible = %v, want van %d and bus %d", got, van, bus)
	}
}

func TestEligibleDrivers_WindowBounds(t *testing.T) {
	f := setupMatching(t)
	tripID := f.seedTrip(t, "14:00", model.VehicleCar)

	inside := f.seedDriver(t, 231, model.VehicleCar, "Haifa", 8, 18)
	boundary := f.seedDriver(t, 232, model.VehicleCar, "Haifa", 14, 14) // window is exactly 14:00, inclusive
	f.seedDriver(t, 233, model.VehicleCar, "Haifa", 15, 18)            // window starts after departure

	got := f.eligible(t, tripID)
	if len(got) != 2 {
		t.Fatalf("eligible = %v, want [%d %d]", got, inside, boundary)
	}
}

func TestEligibleDrivers_ExcludesUnsearchable(t *testing.T) {
	f := setupMatching(t)
	tripID := f.seedTrip(t, "14:00", model.VehicleCar)

	d1 := f.seedDriver(t, 241, model.VehicleCar, "Haifa", 8, 18)
	// Driver with no declared window.
	if _, err := f.pool.Exec(context.Background(), `
		INSERT INTO drivers (user_id, vehicle_class) VALUES (242, 1)
	`); err != nil {
		t.Fatalf("seed unsearchable driver: %v", err)
	}

	got := f.eligible(t, tripID)
	if len(got) != 1 || got[0] != d1 {
		t.Fatalf("eligible = %v, want exactly [%d]", got, d1)
	}
}

func TestEligibleDrivers_ExcludesOpenRequests(t *testing.T) {
	f := setupMatching(t)
	tripID := f.seedTrip(t, "14:00", model.VehicleCar)

	engaged := f.seedDriver(t, 251, model.VehicleCar, "Haifa", 8, 18)
	free := f.seedDriver(t, 252, model.VehicleCar, "Haifa", 8, 18)

	if _, err := f.pool.Exec(context.Background(), `
		INSERT INTO trip_requests (trip_id, driver_id, direction, status)
		VALUES ($1, $2, 'driver_to_company', 'pending')
	`, tripID, engaged); err != nil {
		t.Fatalf("seed request: %v", err)
	}

	got := f.eligible(t, tripID)
	if len(got) != 1 || got[0] != free {
		t.Fatalf("eligible = %v, want exactly [%d]", got, free)
	}

	// A rejected request no longer blocks the driver.
	if _, err := f.pool.Exec(context.Background(), `
		UPDATE trip_requests SET status = 'rejected' WHERE trip_id = $1
	`, tripID); err != nil {
		t.Fatalf("reject request: %v", err)
	}
	if got := f.eligible(t, tripID); len(got) != 2 {
		t.Fatalf("eligible after rejection = %v, want both drivers", got)
	}
}

func TestEligibleDrivers_ConflictPreFilter(t *testing.T) {
	f := setupMatching(t)
	tripID := f.seedTrip(t, "14:00", model.VehicleCar)

	busy := f.seedDriver(t, 261, model.VehicleCar, "Haifa", 8, 18)
	clear := f.seedDriver(t, 262, model.VehicleCar, "Haifa", 8, 18)

	// busy already holds a 15:00 trip, inside the two-hour buffer.
	if _, err := f.pool.Exec(context.Background(), `
		INSERT INTO trips (
			company_id, driver_id, pickup_location, destination,
			trip_date, departure_time, passenger_count, vehicle_class, status
		) VALUES ($1, $2, 'Haifa', 'Nazareth', '2025-10-26', '15:00', 2, 1, 'assigned')
	`, testCompanyID, busy); err != nil {
		t.Fatalf("seed busy trip: %v", err)
	}

	got := f.eligible(t, tripID)
	if len(got) != 1 || got[0] != clear {
		t.Fatalf("eligible = %v, want exactly [%d]", got, clear)
	}
}

func TestEligibleDrivers_Authorization(t *testing.T) {
	f := setupMatching(t)
	tripID := f.seedTrip(t, "14:00", model.VehicleCar)

	stranger := model.Actor{UserID: 999, Role: model.RoleCompany}
	if _, err := f.svc.EligibleDrivers(context.Background(), stranger, tripID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("foreign company search: err = %v, want ErrNotAuthorized", err)
	}

	if _, err := f.svc.EligibleDrivers(context.Background(), testCompany, 424242); !errors.Is(err, ErrTripNotFound) {
		t.Fatalf("missing trip: err = %v, want ErrTripNotFound", err)
	}
}
