// Package handlers exposes the scheduling operations over HTTP. Handlers
// decode and validate transport concerns, call into the domain services, and
// map sentinel errors onto status codes; all scheduling rules live below.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/caredesk/clinic-scheduling/internal/appointment"
	"github.com/caredesk/clinic-scheduling/internal/auth"
	"github.com/caredesk/clinic-scheduling/internal/clinic"
	"github.com/caredesk/clinic-scheduling/internal/patient"
	"github.com/caredesk/clinic-scheduling/internal/reminder"
	"github.com/caredesk/clinic-scheduling/internal/runlog"
	"github.com/caredesk/clinic-scheduling/internal/slot"
	"github.com/caredesk/clinic-scheduling/internal/waitlist"
	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

// errorBody is the JSON error envelope for every non-2xx response.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}

// writeDomainError maps domain sentinels onto transport codes. Unrecognized
// errors become a generic 500; the handler logs the detail separately.
func writeDomainError(w http.ResponseWriter, logger *logging.Logger, op string, err error) {
	var invalid *appointment.InvalidTransitionError

	switch {
	case errors.Is(err, appointment.ErrInvalidInput),
		errors.Is(err, waitlist.ErrInvalidEntry),
		errors.Is(err, patient.ErrInvalidPhone):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "caller scope does not allow this operation")
	case errors.Is(err, appointment.ErrNotFound),
		errors.Is(err, slot.ErrNotFound),
		errors.Is(err, waitlist.ErrNotFound),
		errors.Is(err, patient.ErrNotFound),
		errors.Is(err, clinic.ErrNotFound),
		errors.Is(err, runlog.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, appointment.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", "slot no longer available, please choose another")
	case errors.As(err, &invalid):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, appointment.ErrAlreadyFinalized),
		errors.Is(err, appointment.ErrConflict),
		errors.Is(err, slot.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, appointment.ErrAlreadyPast):
		writeError(w, http.StatusUnprocessableEntity, "already_past", err.Error())
	case errors.Is(err, appointment.ErrNotCancellable):
		writeError(w, http.StatusUnprocessableEntity, "not_cancellable", err.Error())
	case errors.Is(err, reminder.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, "run_in_progress", err.Error())
	default:
		if logger != nil {
			logger.Error("request failed", "op", op, "error", err)
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// pathUUID parses a uuid URL parameter; ok=false means the 400 was written.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
