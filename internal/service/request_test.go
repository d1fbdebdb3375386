// DB-backed tests for request creation guards and resolution authorization.
package service

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/omerk/haulink/internal/model"
	"github.com/omerk/haulink/internal/notify"
	"github.com/omerk/haulink/internal/repository"
)

type requestFixture struct {
	*matchFixture
	requests    *RequestService
	assignments *AssignmentService
}

func setupRequests(t *testing.T) *requestFixture {
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
	assignmentRepo := repository.NewAssignmentRepository(pool)
	queue := notify.NewQueue(rdb, "haulink:test:notifications")

	return &requestFixture{
		matchFixture: &matchFixture{
			pool:    pool,
			drivers: driverRepo,
			svc:     NewMatchingService(tripRepo, driverRepo, requestRepo),
		},
		requests:    NewRequestService(tripRepo, driverRepo, requestRepo, queue),
		assignments: NewAssignmentService(assignmentRepo, driverRepo, queue),
	}
}

func TestCreateRequest_DriverToCompany(t *testing.T) {
	f := setupRequests(t)
	ctx := context.Background()

	tripID := f.seedTrip(t, "14:00", model.VehicleCar)
	f.seedDriver(t, 301, model.VehicleCar, "Haifa", 8, 18)
	driverActor := model.Actor{UserID: 301, Role: model.RoleDriver}

	req, err := f.requests.CreateRequest(ctx, driverActor, CreateRequestInput{
		TripID: tripID, Direction: model.DriverToCompany,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.Status != model.RequestPending {
		t.Errorf("status = %s, want pending", req.Status)
	}

	// A second request from the same driver reports the existing one.
	_, err = f.requests.CreateRequest(ctx, driverActor, CreateRequestInput{
		TripID: tripID, Direction: model.DriverToCompany,
	})
	var exists *RequestExistsError
	if !errors.As(err, &exists) {
		t.Fatalf("duplicate create: err = %v, want RequestExistsError", err)
	}
	if exists.RequestID != req.ID {
		t.Errorf("duplicate reports request %d, want %d", exists.RequestID, req.ID)
	}
}

func TestCreateRequest_GuardsTripState(t *testing.T) {
	f := setupRequests(t)
	ctx := context.Background()

	tripID := f.seedTrip(t, "14:00", model.VehicleCar)
	driverID := f.seedDriver(t, 311, model.VehicleCar, "Haifa", 8, 18)
	driverActor := model.Actor{UserID: 311, Role: model.RoleDriver}

	// Assign the trip out from under the driver.
	if _, err := f.pool.Exec(ctx, `UPDATE trips SET status = 'assigned', driver_id = $2 WHERE id = $1`, tripID, driverID); err != nil {
		t.Fatalf("assign trip: %v", err)
	}

	_, err := f.requests.CreateRequest(ctx, driverActor, CreateRequestInput{
		TripID: tripID, Direction: model.DriverToCompany,
	})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("request on assigned trip: err = %v, want ErrInvalidState", err)
	}

	// A reassignment approval on that same trip is fine, but only for the
	// assigned driver.
	if _, err := f.requests.CreateRequest(ctx, testCompany, CreateRequestInput{
		TripID: tripID, DriverID: driverID, Direction: model.ReassignmentApproval,
	}); err != nil {
		t.Fatalf("reassignment approval: %v", err)
	}

	other := f.seedDriver(t, 312, model.VehicleCar, "Haifa", 8, 18)
	if _, err := f.requests.CreateRequest(ctx, testCompany, CreateRequestInput{
		TripID: tripID, DriverID: other, Direction: model.ReassignmentApproval,
	}); !errors.Is(err, ErrValidation) {
		t.Fatalf("reassignment to non-assigned driver: err = %v, want validation error", err)
	}
}

func TestCreateRequest_WrongActor(t *testing.T) {
	f := setupRequests(t)
	ctx := context.Background()

	tripID := f.seedTrip(t, "14:00", model.VehicleCar)
	driverID := f.seedDriver(t, 321, model.VehicleCar, "Haifa", 8, 18)

	// Only the owning company may offer its trip.
	stranger := model.Actor{UserID: 999, Role: model.RoleCompany}
	if _, err := f.requests.CreateRequest(ctx, stranger, CreateRequestInput{
		TripID: tripID, DriverID: driverID, Direction: model.CompanyToDriver,
	}); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("foreign company offer: err = %v, want ErrNotAuthorized", err)
	}

	if _, err := f.requests.CreateRequest(ctx, testCompany, CreateRequestInput{
		TripID: tripID, DriverID: driverID, Direction: "sideways",
	}); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad direction: err = %v, want validation error", err)
	}
}

func TestRejectAndCancel_Authorization(t *testing.T) {
	f := setupRequests(t)
	ctx := context.Background()

	tripID := f.seedTrip(t, "14:00", model.VehicleCar)
	driverID := f.seedDriver(t, 331, model.VehicleCar, "Haifa", 8, 18)
	driverActor := model.Actor{UserID: 331, Role: model.RoleDriver}

	req, err := f.requests.CreateRequest(ctx, testCompany, CreateRequestInput{
		TripID: tripID, DriverID: driverID, Direction: model.CompanyToDriver,
	})
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}

	// The company cannot reject its own offer; it cancels instead.
	if err := f.requests.RejectRequest(ctx, testCompany, req.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("company rejecting own offer: err = %v, want ErrNotAuthorized", err)
	}
	// The target driver cannot cancel the company's offer.
	if err := f.requests.CancelRequest(ctx, driverActor, req.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("driver cancelling company offer: err = %v, want ErrNotAuthorized", err)
	}

	if err := f.requests.RejectRequest(ctx, driverActor, req.ID); err != nil {
		t.Fatalf("driver reject: %v", err)
	}

	// Terminal requests stay terminal.
	if err := f.requests.RejectRequest(ctx, driverActor, req.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("double reject: err = %v, want ErrInvalidState", err)
	}
	if _, err := f.assignments.AcceptRequest(ctx, driverActor, req.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("accept after reject: err = %v, want ErrInvalidState", err)
	}
}

func TestAcceptRequest_ServiceFlow(t *testing.T) {
	f := setupRequests(t)
	ctx := context.Background()

	tripID := f.seedTrip(t, "14:00", model.VehicleCar)
	driverID := f.seedDriver(t, 341, model.VehicleCar, "Haifa", 8, 18)
	driverActor := model.Actor{UserID: 341, Role: model.RoleDriver}

	req, err := f.requests.CreateRequest(ctx, testCompany, CreateRequestInput{
		TripID: tripID, DriverID: driverID, Direction: model.CompanyToDriver,
	})
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}

	res, err := f.assignments.AcceptRequest(ctx, driverActor, req.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if res.TripStatus != model.TripAssigned {
		t.Errorf("trip status = %s, want assigned", res.TripStatus)
	}

	// The assigned trip no longer matches anyone.
	if _, err := f.svc.EligibleDrivers(ctx, testCompany, tripID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("matching an assigned trip: err = %v, want ErrInvalidState", err)
	}
}
