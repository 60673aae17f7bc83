package waitlist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/caredesk/clinic-scheduling/internal/appointment"
	"github.com/caredesk/clinic-scheduling/internal/auth"
	"github.com/caredesk/clinic-scheduling/internal/observability/metrics"
	"github.com/caredesk/clinic-scheduling/internal/slot"
	"github.com/caredesk/clinic-scheduling/internal/timeofday"
	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

var tracer = otel.Tracer("caredesk.internal.waitlist")

// Booker creates appointments. Implemented by appointment.Service; the
// matcher books through the same path as every other caller so the slot
// race rules apply unchanged.
type Booker interface {
	Create(ctx context.Context, scope auth.Scope, p appointment.CreateParams) (*appointment.Appointment, error)
}

// Notifier tells a patient their waitlist wish came through. Failures are
// logged and never unwind the booking.
type Notifier interface {
	WaitlistFilled(ctx context.Context, patientID, clinicID uuid.UUID, date time.Time, startTime string) error
}

// Matcher promotes waiting patients into freed slots. Selection is
// deterministic: candidates are scored against the slot and the highest
// score wins, with ties resolved by priority then entry age.
type Matcher struct {
	entries  *Store
	slots    *slot.Store
	appts    *appointment.Store
	booker   Booker
	notifier Notifier
	metrics  *metrics.SchedulingMetrics
	logger   *logging.Logger
	now      func() time.Time
}

func NewMatcher(entries *Store, slots *slot.Store, appts *appointment.Store, booker Booker, logger *logging.Logger) *Matcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Matcher{
		entries: entries,
		slots:   slots,
		appts:   appts,
		booker:  booker,
		logger:  logger.Named("waitlist"),
		now:     time.Now,
	}
}

// WithNotifier enables fill notifications.
func (m *Matcher) WithNotifier(n Notifier) *Matcher {
	m.notifier = n
	return m
}

func (m *Matcher) WithMetrics(mm *metrics.SchedulingMetrics) *Matcher {
	m.metrics = mm
	return m
}

// WithClock overrides the time source for tests.
func (m *Matcher) WithClock(now func() time.Time) *Matcher {
	if now != nil {
		m.now = now
	}
	return m
}

// FillResult reports what TryFill did with a slot.
type FillResult struct {
	Filled        bool      `json:"filled"`
	EntryID       uuid.UUID `json:"entry_id,omitempty"`
	PatientID     uuid.UUID `json:"patient_id,omitempty"`
	AppointmentID uuid.UUID `json:"appointment_id,omitempty"`
}

// Score weights. Priority is added raw on top.
const (
	scoreExactDate  = 10
	scoreStaffMatch = 5
	scoreExactTime  = 5
	scoreDayPart    = 3
)

// score rates how well an entry fits a slot. Higher is better; zero is
// still a valid match since pool membership already implies the entry
// wants a date within a day of the slot.
func score(e *Entry, sl *slot.Slot) int {
	total := e.Priority
	if sameDate(e.PreferredDate, sl.Date) {
		total += scoreExactDate
	}
	if e.PreferredStaffID != uuid.Nil && e.PreferredStaffID == sl.StaffID {
		total += scoreStaffMatch
	}
	if e.PreferredTime != "" && e.PreferredTime == sl.StartTime {
		total += scoreExactTime
	} else if part := wantedPart(e); part != "" {
		if mins, err := timeofday.Parse(sl.StartTime); err == nil && timeofday.PartOf(mins) == part {
			total += scoreDayPart
		}
	}
	return total
}

// wantedPart resolves the entry's day-part preference: explicit if set,
// otherwise derived from the exact preferred time so a 09:00 wish still
// counts toward any morning slot.
func wantedPart(e *Entry) timeofday.DayPart {
	if e.PreferredDayPart != "" {
		return e.PreferredDayPart
	}
	if e.PreferredTime == "" {
		return ""
	}
	mins, err := timeofday.Parse(e.PreferredTime)
	if err != nil {
		return ""
	}
	return timeofday.PartOf(mins)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// TryFill offers one freed slot to the best-matching WAITING entry. It
// books through the regular create path, marks the winning entry NOTIFIED,
// and sends a best-effort notification. An unfillable slot (no candidates,
// or the slot was re-taken first) returns Filled=false with no error.
func (m *Matcher) TryFill(ctx context.Context, slotID, clinicID uuid.UUID) (*FillResult, error) {
	ctx, span := tracer.Start(ctx, "waitlist.TryFill")
	defer span.End()
	span.SetAttributes(attribute.String("slot_id", slotID.String()))

	sl, err := m.slots.Get(ctx, nil, slotID)
	if err != nil {
		if errors.Is(err, slot.ErrNotFound) {
			return &FillResult{}, nil
		}
		return nil, err
	}
	if !sl.Available || sl.ClinicID != clinicID {
		return &FillResult{}, nil
	}

	cands, err := m.entries.ListCandidates(ctx, clinicID, sl.Date, 10)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return &FillResult{}, nil
	}

	// Stable sort preserves the store's priority-then-age order for ties.
	scored := make([]*Entry, len(cands))
	for i := range cands {
		scored[i] = &cands[i]
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return score(scored[i], sl) > score(scored[j], sl)
	})

	for _, e := range scored {
		res, err := m.offer(ctx, e, sl)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
	}
	return &FillResult{}, nil
}

// offer tries one candidate. nil means skip to the next candidate. A
// non-nil result ends the scan: either the entry filled the slot, or the
// slot was consumed elsewhere mid-scan and there is nothing left to offer.
func (m *Matcher) offer(ctx context.Context, e *Entry, sl *slot.Slot) (*FillResult, error) {
	// An entry whose patient already booked that day is stale, not a
	// candidate. Retire it and keep scanning; the slot is untouched.
	busy, err := m.appts.HasActiveOnDate(ctx, nil, e.PatientID, e.ClinicID, sl.Date)
	if err != nil {
		return nil, err
	}
	if busy {
		if _, err := m.entries.MarkExpired(ctx, e.ID); err != nil {
			return nil, err
		}
		m.metrics.ObserveWaitlistFill("expired_stale")
		m.logger.Info("waitlist entry expired as stale",
			"entry_id", e.ID, "patient_id", e.PatientID)
		return nil, nil
	}

	appt, err := m.booker.Create(ctx, auth.System(), appointment.CreateParams{
		SlotID:    sl.ID,
		PatientID: e.PatientID,
		ClinicID:  e.ClinicID,
		Type:      e.Type,
		Notes:     "waitlist auto-fill",
	})
	if err != nil {
		if errors.Is(err, appointment.ErrSlotUnavailable) || errors.Is(err, appointment.ErrConflict) {
			return &FillResult{}, nil
		}
		return nil, fmt.Errorf("waitlist: fill booking: %w", err)
	}

	ok, err := m.entries.MarkNotified(ctx, e.ID, sl.ID, m.now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		// Entry flipped concurrently; the booking stands regardless.
		m.logger.Warn("waitlist entry changed during fill", "entry_id", e.ID)
	}

	if m.notifier != nil {
		if err := m.notifier.WaitlistFilled(ctx, e.PatientID, e.ClinicID, sl.Date, sl.StartTime); err != nil {
			m.logger.Warn("waitlist fill notification failed",
				"entry_id", e.ID, "error", err)
		}
	}

	m.metrics.ObserveWaitlistFill("filled")
	m.logger.Info("waitlist entry filled slot",
		"entry_id", e.ID, "slot_id", sl.ID, "appointment_id", appt.ID)
	return &FillResult{
		Filled:        true,
		EntryID:       e.ID,
		PatientID:     e.PatientID,
		AppointmentID: appt.ID,
	}, nil
}

// FillFreedSlot satisfies appointment.Filler.
func (m *Matcher) FillFreedSlot(ctx context.Context, slotID, clinicID uuid.UUID) (bool, error) {
	res, err := m.TryFill(ctx, slotID, clinicID)
	if err != nil {
		return false, err
	}
	return res.Filled, nil
}

// Summary reports one waitlist sweep.
type Summary struct {
	Processed int `json:"processed"`
	Filled    int `json:"filled"`
	Errors    int `json:"errors"`
}

// ProcessAll sweeps a clinic's pending entries against currently open
// slots. It recovers promotions lost to crashes between a cancellation
// commit and its fill attempt. Each entry drives slot discovery only; the
// fill itself still goes through TryFill, so a higher-priority entry can
// win a slot surfaced by a lower-priority one.
func (m *Matcher) ProcessAll(ctx context.Context, clinicID uuid.UUID) (*Summary, error) {
	ctx, span := tracer.Start(ctx, "waitlist.ProcessAll")
	defer span.End()

	today := m.now().UTC().Truncate(24 * time.Hour)
	pending, err := m.entries.ListPending(ctx, clinicID, today)
	if err != nil {
		return nil, err
	}

	sum := &Summary{}
	for _, e := range pending {
		sum.Processed++
		open, err := m.slots.FindAvailableNear(ctx, nil, clinicID, e.PreferredDate, 1)
		if err != nil {
			sum.Errors++
			m.logger.Warn("waitlist sweep slot lookup failed", "entry_id", e.ID, "error", err)
			continue
		}
		for _, sl := range open {
			res, err := m.TryFill(ctx, sl.ID, clinicID)
			if err != nil {
				sum.Errors++
				m.logger.Warn("waitlist sweep fill failed", "slot_id", sl.ID, "error", err)
				break
			}
			if res.Filled {
				sum.Filled++
				break
			}
		}
	}
	m.logger.Info("waitlist sweep finished", "clinic_id", clinicID,
		"processed", sum.Processed, "filled", sum.Filled, "errors", sum.Errors)
	return sum, nil
}
