package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/caredesk/clinic-scheduling/internal/auth"
	"github.com/caredesk/clinic-scheduling/internal/http/middleware"
	"github.com/caredesk/clinic-scheduling/internal/timeofday"
	"github.com/caredesk/clinic-scheduling/internal/waitlist"
	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

// WaitlistHandler exposes waitlist entry management and the manual sweep.
type WaitlistHandler struct {
	entries *waitlist.Store
	matcher *waitlist.Matcher
	logger  *logging.Logger
}

// NewWaitlistHandler creates the waitlist endpoints.
func NewWaitlistHandler(entries *waitlist.Store, matcher *waitlist.Matcher, logger *logging.Logger) *WaitlistHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WaitlistHandler{entries: entries, matcher: matcher, logger: logger.Named("http.waitlist")}
}

type addWaitlistRequest struct {
	PatientID        uuid.UUID `json:"patient_id"`
	ClinicID         uuid.UUID `json:"clinic_id"`
	PreferredDate    string    `json:"preferred_date"`
	PreferredTime    string    `json:"preferred_time,omitempty"`
	PreferredDayPart string    `json:"preferred_day_part,omitempty"`
	PreferredStaffID uuid.UUID `json:"preferred_staff_id,omitempty"`
	Type             string    `json:"type,omitempty"`
	Priority         int       `json:"priority,omitempty"`
}

// Add places a patient on the waitlist. POST /api/v1/waitlist
func (h *WaitlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller scope")
		return
	}
	var req addWaitlistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if scope.Role == auth.RolePatient {
		if req.PatientID == uuid.Nil {
			req.PatientID = scope.PatientID
		}
		// Priority is a staff lever; self-service entries queue at zero.
		req.Priority = 0
	}
	if !scope.CanManagePatient(req.PatientID) {
		writeDomainError(w, h.logger, "waitlist.add", auth.ErrForbidden)
		return
	}

	date, err := time.Parse("2006-01-02", req.PreferredDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_preferred_date", "preferred_date must be YYYY-MM-DD")
		return
	}

	entry := &waitlist.Entry{
		PatientID:        req.PatientID,
		ClinicID:         req.ClinicID,
		PreferredDate:    date,
		PreferredTime:    req.PreferredTime,
		PreferredDayPart: timeofday.DayPart(req.PreferredDayPart),
		PreferredStaffID: req.PreferredStaffID,
		Type:             req.Type,
		Priority:         req.Priority,
	}
	if err := entry.Validate(); err != nil {
		writeDomainError(w, h.logger, "waitlist.add", err)
		return
	}
	if err := h.entries.Create(r.Context(), entry); err != nil {
		writeDomainError(w, h.logger, "waitlist.add", err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// ListForClinic returns a clinic's waitlist, waiting entries first.
// GET /api/v1/clinics/{clinicID}/waitlist
func (h *WaitlistHandler) ListForClinic(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller scope")
		return
	}
	clinicID, ok := pathUUID(w, r, "clinicID")
	if !ok {
		return
	}
	if !scope.Staff() || !scope.CanManageClinic(clinicID) {
		writeDomainError(w, h.logger, "waitlist.list", auth.ErrForbidden)
		return
	}
	entries, err := h.entries.ListForClinic(r.Context(), clinicID)
	if err != nil {
		writeDomainError(w, h.logger, "waitlist.list", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// Sweep runs the matcher over a clinic's pending entries against open slots.
// POST /api/v1/clinics/{clinicID}/waitlist/sweep
func (h *WaitlistHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller scope")
		return
	}
	clinicID, ok := pathUUID(w, r, "clinicID")
	if !ok {
		return
	}
	if !scope.Staff() || !scope.CanManageClinic(clinicID) {
		writeDomainError(w, h.logger, "waitlist.sweep", auth.ErrForbidden)
		return
	}
	summary, err := h.matcher.ProcessAll(r.Context(), clinicID)
	if err != nil {
		writeDomainError(w, h.logger, "waitlist.sweep", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
