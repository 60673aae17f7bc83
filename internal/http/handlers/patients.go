package handlers

import (
	"net/http"

	"github.com/caredesk/clinic-scheduling/internal/auth"
	"github.com/caredesk/clinic-scheduling/internal/http/middleware"
	"github.com/caredesk/clinic-scheduling/internal/messaging"
	"github.com/caredesk/clinic-scheduling/internal/patient"
	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

// PatientHandler exposes patient identity lookup and preferences.
type PatientHandler struct {
	patients *patient.Store
	logger   *logging.Logger
}

// NewPatientHandler creates the patient endpoints.
func NewPatientHandler(patients *patient.Store, logger *logging.Logger) *PatientHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &PatientHandler{patients: patients, logger: logger.Named("http.patients")}
}

type registerPatientRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name,omitempty"`
}

// Register finds or creates a patient by phone (staff only). Registration is
// idempotent: the same phone always resolves to the same patient.
// POST /api/v1/patients
func (h *PatientHandler) Register(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller scope")
		return
	}
	if !scope.Staff() {
		writeDomainError(w, h.logger, "patient.register", auth.ErrForbidden)
		return
	}
	var req registerPatientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	p, err := h.patients.FindOrCreateByPhone(r.Context(), req.Phone, req.Name)
	if err != nil {
		writeDomainError(w, h.logger, "patient.register", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Lookup resolves a patient by phone number (staff only). Front-desk callers
// use this when a patient phones in without their record id at hand.
// GET /api/v1/patients/lookup?phone=%2B15551234567
func (h *PatientHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller scope")
		return
	}
	if !scope.Staff() {
		writeDomainError(w, h.logger, "patient.lookup", auth.ErrForbidden)
		return
	}
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		writeError(w, http.StatusBadRequest, "invalid_phone", "phone query parameter required")
		return
	}
	p, err := h.patients.GetByPhone(r.Context(), phone)
	if err != nil {
		writeDomainError(w, h.logger, "patient.lookup", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Get returns one patient. GET /api/v1/patients/{patientID}
func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller scope")
		return
	}
	id, ok := pathUUID(w, r, "patientID")
	if !ok {
		return
	}
	if !scope.CanManagePatient(id) {
		writeDomainError(w, h.logger, "patient.get", auth.ErrForbidden)
		return
	}
	p, err := h.patients.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, "patient.get", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type preferencesRequest struct {
	Language string `json:"language"`
	Channel  string `json:"channel"`
}

// UpdatePreferences sets reminder language and channel.
// PATCH /api/v1/patients/{patientID}/preferences
func (h *PatientHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller scope")
		return
	}
	id, ok := pathUUID(w, r, "patientID")
	if !ok {
		return
	}
	if !scope.CanManagePatient(id) {
		writeDomainError(w, h.logger, "patient.update_preferences", auth.ErrForbidden)
		return
	}
	var req preferencesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if req.Language == "" {
		writeError(w, http.StatusBadRequest, "invalid_language", "language is required")
		return
	}
	channel, err := messaging.ParseChannel(req.Channel)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_channel", err.Error())
		return
	}

	if err := h.patients.UpdatePreferences(r.Context(), id, req.Language, channel); err != nil {
		writeDomainError(w, h.logger, "patient.update_preferences", err)
		return
	}
	p, err := h.patients.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, "patient.update_preferences", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
