package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/caredesk/clinic-scheduling/internal/appointment"
	"github.com/caredesk/clinic-scheduling/internal/auth"
	"github.com/caredesk/clinic-scheduling/internal/http/middleware"
	"github.com/caredesk/clinic-scheduling/internal/messaging"
	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

// AppointmentHandler exposes booking and lifecycle operations.
type AppointmentHandler struct {
	svc      *appointment.Service
	messages *messaging.Store
	logger   *logging.Logger
}

// NewAppointmentHandler creates the appointment endpoints.
func NewAppointmentHandler(svc *appointment.Service, logger *logging.Logger) *AppointmentHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentHandler{svc: svc, logger: logger.Named("http.appointments")}
}

// WithMessageLog exposes the outbound delivery log under each appointment.
func (h *AppointmentHandler) WithMessageLog(store *messaging.Store) *AppointmentHandler {
	h.messages = store
	return h
}

type createAppointmentRequest struct {
	SlotID    uuid.UUID `json:"slot_id"`
	PatientID uuid.UUID `json:"patient_id"`
	ClinicID  uuid.UUID `json:"clinic_id,omitempty"`
	Type      string    `json:"type,omitempty"`
	Notes     string    `json:"notes,omitempty"`
}

// Create books a slot. POST /api/v1/appointments
func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller scope")
		return
	}
	var req createAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	// Patient tokens book for themselves; the field is for staff.
	if scope.Role == auth.RolePatient && req.PatientID == uuid.Nil {
		req.PatientID = scope.PatientID
	}

	a, err := h.svc.Create(r.Context(), scope, appointment.CreateParams{
		SlotID:    req.SlotID,
		PatientID: req.PatientID,
		ClinicID:  req.ClinicID,
		Type:      req.Type,
		Notes:     req.Notes,
	})
	if err != nil {
		writeDomainError(w, h.logger, "appointment.create", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// Get returns one appointment visible to the caller.
// GET /api/v1/appointments/{appointmentID}
func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller scope")
		return
	}
	id, ok := pathUUID(w, r, "appointmentID")
	if !ok {
		return
	}
	a, err := h.svc.Get(r.Context(), scope, id)
	if err != nil {
		writeDomainError(w, h.logger, "appointment.get", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type transitionRequest struct {
	Target       string    `json:"target"`
	Reason       string    `json:"reason,omitempty"`
	ActorStaffID uuid.UUID `json:"actor_staff_id,omitempty"`
}

// Transition moves an appointment through the state machine (staff only).
// POST /api/v1/appointments/{appointmentID}/transition
func (h *AppointmentHandler) Transition(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller scope")
		return
	}
	id, ok := pathUUID(w, r, "appointmentID")
	if !ok {
		return
	}
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	a, err := h.svc.Transition(r.Context(), scope, id, appointment.TransitionParams{
		Target:       appointment.Status(req.Target),
		Reason:       req.Reason,
		ActorStaffID: req.ActorStaffID,
	})
	if err != nil {
		writeDomainError(w, h.logger, "appointment.transition", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Cancel is the patient-initiated cancellation.
// POST /api/v1/appointments/{appointmentID}/cancel
func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller scope")
		return
	}
	id, ok := pathUUID(w, r, "appointmentID")
	if !ok {
		return
	}
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
	}
	if scope.PatientID == uuid.Nil {
		writeError(w, http.StatusForbidden, "forbidden", "patient token required")
		return
	}

	a, err := h.svc.CancelByPatient(r.Context(), scope, id, scope.PatientID, req.Reason)
	if err != nil {
		writeDomainError(w, h.logger, "appointment.cancel", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Messages returns the outbound delivery log for one appointment. Visibility
// follows the appointment itself: a caller who cannot read the appointment
// cannot read its messages.
// GET /api/v1/appointments/{appointmentID}/messages
func (h *AppointmentHandler) Messages(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller scope")
		return
	}
	id, ok := pathUUID(w, r, "appointmentID")
	if !ok {
		return
	}
	if _, err := h.svc.Get(r.Context(), scope, id); err != nil {
		writeDomainError(w, h.logger, "appointment.messages", err)
		return
	}

	var msgs []messaging.OutboundMessage
	if h.messages != nil {
		var err error
		msgs, err = h.messages.ListForAppointment(r.Context(), id)
		if err != nil {
			writeDomainError(w, h.logger, "appointment.messages", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"appointment_id": id,
		"messages":       msgs,
		"count":          len(msgs),
	})
}

// ListForPatient returns a patient's appointments, newest first.
// GET /api/v1/patients/{patientID}/appointments
func (h *AppointmentHandler) ListForPatient(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller scope")
		return
	}
	patientID, ok := pathUUID(w, r, "patientID")
	if !ok {
		return
	}
	appts, err := h.svc.ListForPatient(r.Context(), scope, patientID)
	if err != nil {
		writeDomainError(w, h.logger, "appointment.list_for_patient", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"appointments": appts,
		"count":        len(appts),
	})
}

// ListForClinicDay returns a clinic's schedule for one date (staff only).
// GET /api/v1/clinics/{clinicID}/appointments?date=2026-03-10
func (h *AppointmentHandler) ListForClinicDay(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller scope")
		return
	}
	clinicID, ok := pathUUID(w, r, "clinicID")
	if !ok {
		return
	}
	date, ok := queryDate(w, r, time.Now().UTC())
	if !ok {
		return
	}
	appts, err := h.svc.ListForClinicDay(r.Context(), scope, clinicID, date)
	if err != nil {
		writeDomainError(w, h.logger, "appointment.list_for_clinic_day", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":         date.Format("2006-01-02"),
		"appointments": appts,
		"count":        len(appts),
	})
}

// queryDate parses the date query parameter, defaulting when absent;
// ok=false means the 400 was written.
func queryDate(w http.ResponseWriter, r *http.Request, fallback time.Time) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		y, m, d := fallback.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}
