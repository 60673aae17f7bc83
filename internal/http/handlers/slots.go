package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/caredesk/clinic-scheduling/internal/clinic"
	"github.com/caredesk/clinic-scheduling/internal/slot"
	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

// SlotHandler exposes availability queries.
type SlotHandler struct {
	slots   *slot.Store
	clinics *clinic.Store
	buffer  time.Duration
	now     func() time.Time
	logger  *logging.Logger
}

// NewSlotHandler creates the slot endpoints. buffer is the same-day booking
// lead time; zero keeps the 15 minute default.
func NewSlotHandler(slots *slot.Store, clinics *clinic.Store, buffer time.Duration, logger *logging.Logger) *SlotHandler {
	if buffer <= 0 {
		buffer = 15 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SlotHandler{
		slots:   slots,
		clinics: clinics,
		buffer:  buffer,
		now:     time.Now,
		logger:  logger.Named("http.slots"),
	}
}

// WithClock overrides the time source for tests.
func (h *SlotHandler) WithClock(now func() time.Time) *SlotHandler {
	if now != nil {
		h.now = now
	}
	return h
}

// FindAvailable lists a clinic's open slots for a date. Same-day queries
// exclude slots starting inside the booking buffer.
// GET /api/v1/clinics/{clinicID}/slots?date=2026-03-10&specialization=&staff_id=&near_days=
func (h *SlotHandler) FindAvailable(w http.ResponseWriter, r *http.Request) {
	clinicID, ok := pathUUID(w, r, "clinicID")
	if !ok {
		return
	}
	date, ok := queryDate(w, r, h.now().UTC())
	if !ok {
		return
	}

	cl, err := h.clinics.Get(r.Context(), clinicID)
	if err != nil {
		writeDomainError(w, h.logger, "slot.find_available", err)
		return
	}

	q := r.URL.Query()
	if raw := q.Get("near_days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 0 {
			writeError(w, http.StatusBadRequest, "invalid_near_days", "near_days must be a non-negative integer")
			return
		}
		slots, err := h.slots.FindAvailableNear(r.Context(), nil, clinicID, date, days)
		if err != nil {
			writeDomainError(w, h.logger, "slot.find_available_near", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"slots": slots, "count": len(slots)})
		return
	}

	opts := slot.FindOptions{
		Specialization: q.Get("specialization"),
		MinStartTime:   slot.MinStartForDate(h.now(), date, cl.UTCOffsetMinutes, h.buffer),
	}
	if raw := q.Get("staff_id"); raw != "" {
		staffID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_staff_id", "staff_id must be a valid UUID")
			return
		}
		opts.StaffID = staffID
	}

	slots, err := h.slots.FindAvailable(r.Context(), nil, clinicID, date, opts)
	if err != nil {
		writeDomainError(w, h.logger, "slot.find_available", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  date.Format("2006-01-02"),
		"slots": slots,
		"count": len(slots),
	})
}
