package handler

import (
	"encoding/json"
	"net/http"

	"github.com/omerk/haulink/internal/model"
	"github.com/omerk/haulink/internal/service"
)

// TripHandler handles trip HTTP requests.
type TripHandler struct {
	tripSvc *service.TripService
}

// NewTripHandler creates a new trip handler.
func NewTripHandler(tripSvc *service.TripService) *TripHandler {
	return &TripHandler{tripSvc: tripSvc}
}

type tripPayload struct {
	PickupLocation    string  `json:"pickup_location"`
	Destination       string  `json:"destination"`
	TripDate          string  `json:"trip_date"`
	DepartureTime     string  `json:"departure_time"`
	PassengerCount    int     `json:"passenger_count"`
	VehicleClass      int     `json:"vehicle_class"`
	CompanyPriceCents int64   `json:"company_price_cents"`
	DriverPriceCents  int64   `json:"driver_price_cents"`
	PermitNumber      *string `json:"permit_number,omitempty"`
}

func (p *tripPayload) toInput() service.CreateTripInput {
	return service.CreateTripInput{
		PickupLocation:    p.PickupLocation,
		Destination:       p.Destination,
		TripDate:          p.TripDate,
		DepartureTime:     p.DepartureTime,
		PassengerCount:    p.PassengerCount,
		VehicleClass:      model.VehicleClass(p.VehicleClass),
		CompanyPriceCents: p.CompanyPriceCents,
		DriverPriceCents:  p.DriverPriceCents,
		PermitNumber:      p.PermitNumber,
	}
}

// CreateTrip handles POST /api/v1/trips
func (h *TripHandler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var payload tripPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	trip, err := h.tripSvc.CreateTrip(r.Context(), actor, payload.toInput())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, trip)
}

// GetTrip handles GET /api/v1/trips/{trip_id}
func (h *TripHandler) GetTrip(w http.ResponseWriter, r *http.Request) {
	tripID, ok := pathID(w, r, "trip_id")
	if !ok {
		return
	}
	trip, err := h.tripSvc.GetTrip(r.Context(), tripID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// UpdateTrip handles PUT /api/v1/trips/{trip_id}
//
// Only pending, unassigned trips may be edited, by their owning company.
func (h *TripHandler) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	tripID, ok := pathID(w, r, "trip_id")
	if !ok {
		return
	}
	var payload tripPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	trip, err := h.tripSvc.UpdateTrip(r.Context(), actor, tripID, payload.toInput())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// CancelTrip handles POST /api/v1/trips/{trip_id}/cancel
func (h *TripHandler) CancelTrip(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	tripID, ok := pathID(w, r, "trip_id")
	if !ok {
		return
	}
	if err := h.tripSvc.CancelTrip(r.Context(), actor, tripID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// DeleteTrip handles DELETE /api/v1/trips/{trip_id}
func (h *TripHandler) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	tripID, ok := pathID(w, r, "trip_id")
	if !ok {
		return
	}
	if err := h.tripSvc.DeleteTrip(r.Context(), actor, tripID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// StartTrip handles POST /api/v1/trips/{trip_id}/start
func (h *TripHandler) StartTrip(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	tripID, ok := pathID(w, r, "trip_id")
	if !ok {
		return
	}
	if err := h.tripSvc.StartTrip(r.Context(), actor, tripID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "in_progress"})
}

// CompleteTrip handles POST /api/v1/trips/{trip_id}/complete
//
// An optional body carries a rating. Rating persistence is best-effort; the
// reply's rating_saved field reports whether it stuck.
func (h *TripHandler) CompleteTrip(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	tripID, ok := pathID(w, r, "trip_id")
	if !ok {
		return
	}

	var rating *service.CompleteTripInput
	if r.Body != nil && r.ContentLength != 0 {
		var payload struct {
			Score   int    `json:"score"`
			Comment string `json:"comment"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		if payload.Score != 0 {
			rating = &service.CompleteTripInput{Score: payload.Score, Comment: payload.Comment}
		}
	}

	saved, err := h.tripSvc.CompleteTrip(r.Context(), actor, tripID, rating)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "completed",
		"rating_saved": saved,
	})
}
