// Package model contains domain models for the trip brokering system.
// These structs map to the PostgreSQL schema defined in migrations/001_create_schema.up.sql.
package model

import "time"

// ─── Enums ──────────────────────────────────────────────────

type UserRole string

const (
	RoleCompany UserRole = "company"
	RoleDriver  UserRole = "driver"
)

// VehicleClass is an ordinal: a higher class may serve a lower-class trip.
type VehicleClass int

const (
	VehicleCar VehicleClass = 1
	VehicleVan VehicleClass = 2
	VehicleBus VehicleClass = 3
)

type TripStatus string

const (
	TripPending    TripStatus = "pending"
	TripAssigned   TripStatus = "assigned"
	TripInProgress TripStatus = "in_progress"
	TripCompleted  TripStatus = "completed"
	TripCancelled  TripStatus = "cancelled"
)

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestAccepted  RequestStatus = "accepted"
	RequestRejected  RequestStatus = "rejected"
	RequestCancelled RequestStatus = "cancelled"
)

// RequestDirection tags who initiated a negotiation and who may resolve it.
type RequestDirection string

const (
	// CompanyToDriver: company offers the trip; the driver accepts/rejects,
	// the company may cancel.
	CompanyToDriver RequestDirection = "company_to_driver"
	// DriverToCompany: driver asks for the trip; the company accepts/rejects,
	// the driver may cancel.
	DriverToCompany RequestDirection = "driver_to_company"
	// ReassignmentApproval: company asks the currently assigned driver to
	// release the trip back to pending; only that driver may resolve it.
	ReassignmentApproval RequestDirection = "reassignment_approval"
)

// ─── Constants ──────────────────────────────────────────────

// ConflictBuffer is the minimum separation required between the departures
// of any two trips held by the same driver. Two trips exactly this far
// apart do NOT conflict.
const ConflictBuffer = 2 * time.Hour

// ─── Actor ──────────────────────────────────────────────────

// Actor identifies the caller of an operation. Resolution from
// authentication happens upstream; the engine only sees id + role.
type Actor struct {
	UserID int64
	Role   UserRole
}

// ─── Domain Models ──────────────────────────────────────────

// Trip maps to the `trips` table. CompanyID is the owning company user's id.
// Invariant: DriverID is non-nil iff Status is assigned/in_progress/completed.
type Trip struct {
	ID                int64        `json:"id"`
	CompanyID         int64        `json:"company_id"`
	DriverID          *int64       `json:"driver_id,omitempty"`
	PickupLocation    string       `json:"pickup_location"`
	Destination       string       `json:"destination"`
	TripDate          time.Time    `json:"trip_date"`
	DepartureTime     string       `json:"departure_time"` // "HH:MM"
	PassengerCount    int          `json:"passenger_count"`
	VehicleClass      VehicleClass `json:"vehicle_class"`
	CompanyPriceCents int64        `json:"company_price_cents"`
	DriverPriceCents  int64        `json:"driver_price_cents"`
	PermitNumber      *string      `json:"permit_number,omitempty"`
	Status            TripStatus   `json:"status"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Driver maps to the `drivers` table. The availability window is the
// driver's self-declared (location, time-range); any nil field makes the
// driver unsearchable. Each update overwrites the previous window; no
// history is kept.
type Driver struct {
	ID            int64        `json:"id"`
	UserID        int64        `json:"user_id"`
	VehicleClass  VehicleClass `json:"vehicle_class"`
	AvailLocation *string      `json:"avail_location,omitempty"`
	AvailFrom     *time.Time   `json:"avail_from,omitempty"`
	AvailTo       *time.Time   `json:"avail_to,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Searchable reports whether the driver's availability window is fully
// populated.
func (d *Driver) Searchable() bool {
	return d.AvailLocation != nil && d.AvailFrom != nil && d.AvailTo != nil
}

// TripRequest maps to the `trip_requests` table: one negotiation instance
// between one trip and one driver, in one direction. At most one pending
// request may exist per (trip, driver) pair, enforced by
// lookup-before-create.
type TripRequest struct {
	ID        int64            `json:"id"`
	TripID    int64            `json:"trip_id"`
	DriverID  int64            `json:"driver_id"`
	Direction RequestDirection `json:"direction"`
	Status    RequestStatus    `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Terminal reports whether the request can no longer transition.
func (r *TripRequest) Terminal() bool {
	return r.Status != RequestPending
}

// Rating maps to the `ratings` table: at most one per trip, written by the
// completing driver. Rating persistence is independent of completion.
type Rating struct {
	ID        int64     `json:"id"`
	TripID    int64     `json:"trip_id"`
	DriverID  int64     `json:"driver_id"`
	Score     int       `json:"score"` // 1..5
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
