package handler

import (
	"net/http"

	"github.com/omerk/haulink/internal/service"
)

// MatchHandler handles the eligible-driver search.
type MatchHandler struct {
	matcher *service.MatchingService
}

// NewMatchHandler creates a new handler wired to the matching service.
func NewMatchHandler(matcher *service.MatchingService) *MatchHandler {
	return &MatchHandler{matcher: matcher}
}

// EligibleDrivers handles GET /api/v1/trips/{trip_id}/eligible-drivers
//
// Returns the drivers currently eligible for the trip, ordered by window
// start. The set is advisory: accepting a request re-checks conflicts
// authoritatively.
func (h *MatchHandler) EligibleDrivers(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	tripID, ok := pathID(w, r, "trip_id")
	if !ok {
		return
	}

	drivers, err := h.matcher.EligibleDrivers(r.Context(), actor, tripID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trip_id": tripID,
		"count":   len(drivers),
		"drivers": drivers,
	})
}
