// Package handler contains HTTP request handlers for the trip brokering API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/omerk/haulink/internal/model"
	"github.com/omerk/haulink/internal/service"
)

// writeJSON is a helper that writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// actorFromRequest reads the caller's identity from the gateway headers.
// Authentication happens upstream; the engine trusts X-User-ID and
// X-User-Role.
func actorFromRequest(r *http.Request) (model.Actor, bool) {
	userID, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil || userID <= 0 {
		return model.Actor{}, false
	}
	role := model.UserRole(r.Header.Get("X-User-Role"))
	if role != model.RoleCompany && role != model.RoleDriver {
		return model.Actor{}, false
	}
	return model.Actor{UserID: userID, Role: role}, true
}

// requireActor writes a 400 and returns false when identity headers are
// missing or malformed.
func requireActor(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "missing_identity",
			"message": "X-User-ID and X-User-Role headers are required.",
		})
	}
	return actor, ok
}

// pathID parses the named integer path variable, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid " + name + ": must be an integer",
		})
		return 0, false
	}
	return id, true
}

// writeServiceError maps the service error taxonomy onto HTTP responses.
//
// Response codes:
//
//	404 — trip / driver / request not found
//	403 — actor not allowed for this operation or direction
//	409 — invalid state (terminal request, wrong trip status), duplicates
//	422 — driver schedule conflict
//	400 — validation failure
//	408 — lock-wait timeout
//	500 — unexpected error
func writeServiceError(w http.ResponseWriter, err error) {
	var exists *service.RequestExistsError
	var invalid *service.ValidationError

	switch {
	case errors.Is(err, service.ErrTripNotFound),
		errors.Is(err, service.ErrDriverNotFound),
		errors.Is(err, service.ErrRequestNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":   "not_found",
			"message": err.Error(),
		})
	case errors.Is(err, service.ErrNotAuthorized):
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error":   "not_authorized",
			"message": "You are not allowed to perform this operation.",
		})
	case errors.As(err, &exists):
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":      "request_exists",
			"message":    "A pending request already exists for this trip and driver.",
			"request_id": exists.RequestID,
		})
	case errors.Is(err, service.ErrPermitTaken):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":   "permit_taken",
			"message": "This permit number is already used by another of your trips.",
		})
	case errors.Is(err, service.ErrInvalidState):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":   "invalid_state",
			"message": "The trip or request is not in a state that allows this operation.",
		})
	case errors.Is(err, service.ErrSchedulingConflict):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":   "scheduling_conflict",
			"message": "The driver already holds a trip departing within two hours.",
		})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "validation_failed",
			"message": invalid.Error(),
		})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusRequestTimeout, map[string]string{
			"error":   "timeout",
			"message": "The operation timed out due to contention. Please retry.",
		})
	default:
		log.Printf("[handler] unexpected error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal_error",
		})
	}
}
