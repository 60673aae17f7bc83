package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/caredesk/clinic-scheduling/internal/auth"
	"github.com/caredesk/clinic-scheduling/internal/http/middleware"
	"github.com/caredesk/clinic-scheduling/internal/reminder"
	"github.com/caredesk/clinic-scheduling/internal/runlog"
	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

// ReminderHandler exposes manual reminder runs and the run ledger.
type ReminderHandler struct {
	scheduler *reminder.Scheduler
	runs      *runlog.Store
	logger    *logging.Logger
}

// NewReminderHandler creates the reminder admin endpoints.
func NewReminderHandler(scheduler *reminder.Scheduler, runs *runlog.Store, logger *logging.Logger) *ReminderHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ReminderHandler{scheduler: scheduler, runs: runs, logger: logger.Named("http.reminders")}
}

type triggerRunRequest struct {
	Kind          string    `json:"kind,omitempty"`
	Force         bool      `json:"force,omitempty"`
	DryRun        bool      `json:"dry_run,omitempty"`
	AppointmentID uuid.UUID `json:"appointment_id,omitempty"`
}

// TriggerRun executes a reminder run synchronously and returns its closed
// ledger record. POST /api/v1/admin/reminder-runs
func (h *ReminderHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller scope")
		return
	}
	if scope.Role != auth.RoleAdmin {
		writeDomainError(w, h.logger, "reminder.trigger", auth.ErrForbidden)
		return
	}
	var req triggerRunRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
	}

	opts := reminder.Options{
		Trigger:       runlog.TriggerManual,
		Force:         req.Force,
		DryRun:        req.DryRun,
		AppointmentID: req.AppointmentID,
	}
	if req.Kind != "" {
		kind, err := reminder.ParseKind(req.Kind)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_kind", err.Error())
			return
		}
		opts.Kind = kind
	}

	rec, err := h.scheduler.Run(r.Context(), opts)
	if err != nil {
		// A run that failed but closed its ledger row is still an outcome
		// worth returning; only transport-level failures stay opaque.
		if rec != nil {
			writeJSON(w, http.StatusOK, rec)
			return
		}
		writeDomainError(w, h.logger, "reminder.trigger", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListRuns returns recent ledger entries for one job.
// GET /api/v1/admin/reminder-runs?job=reminder&limit=20
func (h *ReminderHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller scope")
		return
	}
	if !scope.Staff() {
		writeDomainError(w, h.logger, "reminder.list_runs", auth.ErrForbidden)
		return
	}

	job := r.URL.Query().Get("job")
	if job == "" {
		job = reminder.Kind("").JobName()
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRecent(r.Context(), job, limit)
	if err != nil {
		writeDomainError(w, h.logger, "reminder.list_runs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job":   job,
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun returns one ledger entry.
// GET /api/v1/admin/reminder-runs/{runID}
func (h *ReminderHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller scope")
		return
	}
	if !scope.Staff() {
		writeDomainError(w, h.logger, "reminder.get_run", auth.ErrForbidden)
		return
	}
	id, ok := pathUUID(w, r, "runID")
	if !ok {
		return
	}
	rec, err := h.runs.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, "reminder.get_run", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
