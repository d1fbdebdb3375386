package handler

import (
	"encoding/json"
	"net/http"

	"github.com/omerk/haulink/internal/model"
	"github.com/omerk/haulink/internal/service"
)

// RequestHandler handles trip request HTTP endpoints: creation, listing,
// and the three resolutions (accept, reject, cancel).
type RequestHandler struct {
	requestSvc    *service.RequestService
	assignmentSvc *service.AssignmentService
}

// NewRequestHandler creates a new request handler.
func NewRequestHandler(requestSvc *service.RequestService, assignmentSvc *service.AssignmentService) *RequestHandler {
	return &RequestHandler{requestSvc: requestSvc, assignmentSvc: assignmentSvc}
}

// CreateRequest handles POST /api/v1/requests
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var payload struct {
		TripID    int64  `json:"trip_id"`
		DriverID  int64  `json:"driver_id"`
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	req, err := h.requestSvc.CreateRequest(r.Context(), actor, service.CreateRequestInput{
		TripID:    payload.TripID,
		DriverID:  payload.DriverID,
		Direction: model.RequestDirection(payload.Direction),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// ListTripRequests handles GET /api/v1/trips/{trip_id}/requests
func (h *RequestHandler) ListTripRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	tripID, ok := pathID(w, r, "trip_id")
	if !ok {
		return
	}
	reqs, err := h.requestSvc.ListTripRequests(r.Context(), actor, tripID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

// AcceptRequest handles POST /api/v1/requests/{request_id}/accept
//
// Acceptance is the assignment transaction: the trip is bound to the
// request's driver and every rival pending request is rejected, atomically.
// A reassignment approval instead releases the trip back to pending.
func (h *RequestHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "request_id")
	if !ok {
		return
	}

	result, err := h.assignmentSvc.AcceptRequest(r.Context(), actor, requestID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := map[string]interface{}{
		"request":           result.Request,
		"trip_status":       result.TripStatus,
		"released":          result.Released,
		"rejected_requests": len(result.Rejected),
	}
	writeJSON(w, http.StatusOK, resp)
}

// RejectRequest handles POST /api/v1/requests/{request_id}/reject
func (h *RequestHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "request_id")
	if !ok {
		return
	}
	if err := h.requestSvc.RejectRequest(r.Context(), actor, requestID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// CancelRequest handles POST /api/v1/requests/{request_id}/cancel
func (h *RequestHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "request_id")
	if !ok {
		return
	}
	if err := h.requestSvc.CancelRequest(r.Context(), actor, requestID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
