package handler

import (
	"encoding/json"
	"net/http"

	"github.com/omerk/haulink/internal/service"
)

// DriverHandler handles driver profile and availability HTTP requests.
type DriverHandler struct {
	driverSvc *service.DriverService
}

// NewDriverHandler creates a new driver handler.
func NewDriverHandler(driverSvc *service.DriverService) *DriverHandler {
	return &DriverHandler{driverSvc: driverSvc}
}

// GetDriver handles GET /api/v1/drivers/{driver_id}
func (h *DriverHandler) GetDriver(w http.ResponseWriter, r *http.Request) {
	driverID, ok := pathID(w, r, "driver_id")
	if !ok {
		return
	}
	driver, err := h.driverSvc.GetDriver(r.Context(), driverID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, driver)
}

// UpdateAvailability handles PUT /api/v1/drivers/availability
//
// The acting driver declares (or clears) their availability window. All
// three fields travel together; each call replaces the previous window.
func (h *DriverHandler) UpdateAvailability(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var payload struct {
		Location string `json:"location"`
		From     string `json:"from"`
		To       string `json:"to"`
		Clear    bool   `json:"clear"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	driver, err := h.driverSvc.UpdateAvailability(r.Context(), actor, service.AvailabilityInput{
		Location: payload.Location,
		From:     payload.From,
		To:       payload.To,
		Clear:    payload.Clear,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, driver)
}
