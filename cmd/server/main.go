package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/omerk/haulink/config"
	"github.com/omerk/haulink/internal/handler"
	"github.com/omerk/haulink/internal/middleware"
	"github.com/omerk/haulink/internal/notify"
	"github.com/omerk/haulink/internal/repository"
	"github.com/omerk/haulink/internal/service"
	"github.com/omerk/haulink/pkg/cache"
	"github.com/omerk/haulink/pkg/db"
)

func main() {
	// ── Load configuration ──────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// ── Connect to PostgreSQL ───────────────────────────
	pgPool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("failed to connect to PostgreSQL: %v", err)
	}
	defer pgPool.Close()
	log.Println("✓ PostgreSQL connected")

	// ── Connect to Redis ────────────────────────────────
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("✓ Redis connected")

	// ── Initialize layers ───────────────────────────────
	tripRepo := repository.NewTripRepository(pgPool)
	driverRepo := repository.NewDriverRepository(pgPool, redisClient, cfg.Matching.CacheTTL)
	requestRepo := repository.NewRequestRepository(pgPool)
	assignmentRepo := repository.NewAssignmentRepository(pgPool)

	notifyQueue := notify.NewQueue(redisClient, cfg.Notify.Stream)

	tripSvc := service.NewTripService(tripRepo, driverRepo, notifyQueue, cfg.Notify.OpsUserID)
	driverSvc := service.NewDriverService(driverRepo)
	matchingSvc := service.NewMatchingService(tripRepo, driverRepo, requestRepo)
	requestSvc := service.NewRequestService(tripRepo, driverRepo, requestRepo, notifyQueue)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, driverRepo, notifyQueue)

	tripHandler := handler.NewTripHandler(tripSvc)
	driverHandler := handler.NewDriverHandler(driverSvc)
	matchHandler := handler.NewMatchHandler(matchingSvc)
	requestHandler := handler.NewRequestHandler(requestSvc, assignmentSvc)

	// ── Setup router ────────────────────────────────────
	router := mux.NewRouter()

	// Health check and metrics endpoints.
	router.HandleFunc("/health", healthHandler(pgPool, redisClient)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// API v1 routes.
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Metrics)

	// Trip CRUD and lifecycle
	api.HandleFunc("/trips", tripHandler.CreateTrip).Methods(http.MethodPost)
	api.HandleFunc("/trips/{trip_id}", tripHandler.GetTrip).Methods(http.MethodGet)
	api.HandleFunc("/trips/{trip_id}", tripHandler.UpdateTrip).Methods(http.MethodPut)
	api.HandleFunc("/trips/{trip_id}", tripHandler.DeleteTrip).Methods(http.MethodDelete)
	api.HandleFunc("/trips/{trip_id}/cancel", tripHandler.CancelTrip).Methods(http.MethodPost)
	api.HandleFunc("/trips/{trip_id}/start", tripHandler.StartTrip).Methods(http.MethodPost)
	api.HandleFunc("/trips/{trip_id}/complete", tripHandler.CompleteTrip).Methods(http.MethodPost)

	// Matching
	api.HandleFunc("/trips/{trip_id}/eligible-drivers", matchHandler.EligibleDrivers).Methods(http.MethodGet)

	// Requests and assignment
	api.HandleFunc("/requests", requestHandler.CreateRequest).Methods(http.MethodPost)
	api.HandleFunc("/trips/{trip_id}/requests", requestHandler.ListTripRequests).Methods(http.MethodGet)
	api.HandleFunc("/requests/{request_id}/accept", requestHandler.AcceptRequest).Methods(http.MethodPost)
	api.HandleFunc("/requests/{request_id}/reject", requestHandler.RejectRequest).Methods(http.MethodPost)
	api.HandleFunc("/requests/{request_id}/cancel", requestHandler.CancelRequest).Methods(http.MethodPost)

	// Drivers
	api.HandleFunc("/drivers/availability", driverHandler.UpdateAvailability).Methods(http.MethodPut)
	api.HandleFunc("/drivers/{driver_id}", driverHandler.GetDriver).Methods(http.MethodGet)

	// Outer middleware: recover, log, CORS.
	root := middleware.Recoverer(middleware.RequestLogger(middleware.CORS(router)))

	// ── Start HTTP server ───────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      root,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in a goroutine so we can listen for shutdown signals.
	go func() {
		log.Printf("🚀 Server listening on %s", cfg.Server.ServerAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// ── Graceful shutdown ───────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("⏳ Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// healthHandler returns an HTTP handler that checks PG and Redis connectivity.
func healthHandler(pgPool *pgxpool.Pool, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:   "ok",
			Services: make(map[string]string),
		}

		if err := db.HealthCheck(r.Context(), pgPool); err != nil {
			resp.Status = "degraded"
			resp.Services["postgres"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["postgres"] = "healthy"
		}

		if err := cache.HealthCheck(r.Context(), redisClient); err != nil {
			resp.Status = "degraded"
			resp.Services["redis"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["redis"] = "healthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	}
}
