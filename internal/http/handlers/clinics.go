package handlers

import (
	"net/http"
	"time"

	"github.com/caredesk/clinic-scheduling/internal/auth"
	"github.com/caredesk/clinic-scheduling/internal/clinic"
	"github.com/caredesk/clinic-scheduling/internal/http/middleware"
	"github.com/caredesk/clinic-scheduling/internal/slot"
	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

// ClinicHandler exposes clinic and staff administration.
type ClinicHandler struct {
	clinics     *clinic.Store
	slots       *slot.Store
	defaultLang string
	logger      *logging.Logger
}

// NewClinicHandler creates the clinic endpoints.
func NewClinicHandler(clinics *clinic.Store, slots *slot.Store, logger *logging.Logger) *ClinicHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ClinicHandler{clinics: clinics, slots: slots, logger: logger.Named("http.clinics")}
}

// WithDefaultLanguage sets the language assigned to clinics registered
// without one.
func (h *ClinicHandler) WithDefaultLanguage(lang string) *ClinicHandler {
	h.defaultLang = lang
	return h
}

type createClinicRequest struct {
	Name             string             `json:"name"`
	Phone            string             `json:"phone,omitempty"`
	Email            string             `json:"email,omitempty"`
	Region           string             `json:"region,omitempty"`
	UTCOffsetMinutes int                `json:"utc_offset_minutes"`
	DefaultLanguage  string             `json:"default_language,omitempty"`
	Hours            clinic.WeeklyHours `json:"hours"`
}

// Create registers a clinic (admin only). POST /api/v1/admin/clinics
func (h *ClinicHandler) Create(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller scope")
		return
	}
	if scope.Role != auth.RoleAdmin {
		writeDomainError(w, h.logger, "clinic.create", auth.ErrForbidden)
		return
	}
	var req createClinicRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_name", "name is required")
		return
	}
	if req.DefaultLanguage == "" {
		req.DefaultLanguage = h.defaultLang
	}

	c := &clinic.Clinic{
		Name:             req.Name,
		Phone:            req.Phone,
		Email:            req.Email,
		Region:           req.Region,
		Active:           true,
		UTCOffsetMinutes: req.UTCOffsetMinutes,
		DefaultLanguage:  req.DefaultLanguage,
		Hours:            req.Hours,
	}
	if err := h.clinics.Create(r.Context(), c); err != nil {
		writeDomainError(w, h.logger, "clinic.create", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Get returns one clinic. GET /api/v1/clinics/{clinicID}
func (h *ClinicHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "clinicID")
	if !ok {
		return
	}
	c, err := h.clinics.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, "clinic.get", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// List returns all clinics. GET /api/v1/clinics
func (h *ClinicHandler) List(w http.ResponseWriter, r *http.Request) {
	clinics, err := h.clinics.List(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, "clinic.list", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"clinics": clinics,
		"count":   len(clinics),
	})
}

type createStaffRequest struct {
	Name           string `json:"name"`
	Role           string `json:"role"`
	Specialization string `json:"specialization,omitempty"`
}

// CreateStaff adds a staff member to a clinic (admin only).
// POST /api/v1/admin/clinics/{clinicID}/staff
func (h *ClinicHandler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller scope")
		return
	}
	if scope.Role != auth.RoleAdmin {
		writeDomainError(w, h.logger, "clinic.create_staff", auth.ErrForbidden)
		return
	}
	clinicID, ok := pathUUID(w, r, "clinicID")
	if !ok {
		return
	}
	var req createStaffRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	role, err := clinic.ParseStaffRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_role", err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_name", "name is required")
		return
	}

	st := &clinic.Staff{
		ClinicID:       clinicID,
		Name:           req.Name,
		Role:           role,
		Specialization: req.Specialization,
		Active:         true,
	}
	if err := h.clinics.CreateStaff(r.Context(), st); err != nil {
		writeDomainError(w, h.logger, "clinic.create_staff", err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// ListStaff returns a clinic's roster. GET /api/v1/clinics/{clinicID}/staff
func (h *ClinicHandler) ListStaff(w http.ResponseWriter, r *http.Request) {
	clinicID, ok := pathUUID(w, r, "clinicID")
	if !ok {
		return
	}
	staff, err := h.clinics.ListStaff(r.Context(), clinicID)
	if err != nil {
		writeDomainError(w, h.logger, "clinic.list_staff", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"staff": staff,
		"count": len(staff),
	})
}

type provisionSlotsRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ProvisionSlots expands the clinic's operating hours into slots for a date
// range (admin only). Existing slots on the same staff/date/time are left
// untouched. POST /api/v1/admin/clinics/{clinicID}/slots
func (h *ClinicHandler) ProvisionSlots(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller scope")
		return
	}
	if scope.Role != auth.RoleAdmin {
		writeDomainError(w, h.logger, "clinic.provision_slots", auth.ErrForbidden)
		return
	}
	clinicID, ok := pathUUID(w, r, "clinicID")
	if !ok {
		return
	}
	var req provisionSlotsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	from, err := time.Parse("2006-01-02", req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_to", "to must be YYYY-MM-DD")
		return
	}

	c, err := h.clinics.Get(r.Context(), clinicID)
	if err != nil {
		writeDomainError(w, h.logger, "clinic.provision_slots", err)
		return
	}
	staff, err := h.clinics.ListStaff(r.Context(), clinicID)
	if err != nil {
		writeDomainError(w, h.logger, "clinic.provision_slots", err)
		return
	}

	slots, err := clinic.BuildSlots(c, staff, from, to)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
		return
	}
	created, err := h.slots.BulkCreate(r.Context(), nil, slots)
	if err != nil {
		writeDomainError(w, h.logger, "clinic.provision_slots", err)
		return
	}

	h.logger.Info("slots provisioned",
		"clinic_id", clinicID, "from", req.From, "to", req.To,
		"generated", len(slots), "created", created)
	writeJSON(w, http.StatusCreated, map[string]any{
		"generated": len(slots),
		"created":   created,
	})
}
