package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/caredesk/clinic-scheduling/internal/auth"
	"github.com/caredesk/clinic-scheduling/internal/clinic"
	"github.com/caredesk/clinic-scheduling/internal/observability/metrics"
	"github.com/caredesk/clinic-scheduling/internal/slot"
	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

var tracer = otel.Tracer("caredesk.internal.appointment")

type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Filler offers a freed slot to waiting patients. Implemented by the
// waitlist matcher; declared here so cancellation paths can trigger a fill
// without the two packages importing each other.
type Filler interface {
	FillFreedSlot(ctx context.Context, slotID, clinicID uuid.UUID) (bool, error)
}

// Service coordinates booking writes across the slot and appointment tables.
// The availability flip and the appointment row change always commit in the
// same transaction, so the two can never drift apart.
type Service struct {
	db      db
	appts   *Store
	slots   *slot.Store
	clinics *clinic.Store
	filler  Filler
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewService(database db, appts *Store, slots *slot.Store, clinics *clinic.Store, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		db:      database,
		appts:   appts,
		slots:   slots,
		clinics: clinics,
		logger:  logger.Named("appointment"),
		timeout: 5 * time.Second,
		now:     time.Now,
	}
}

// WithFiller enables waitlist auto-fill after cancellations.
func (s *Service) WithFiller(f Filler) *Service {
	s.filler = f
	return s
}

func (s *Service) WithMetrics(m *metrics.SchedulingMetrics) *Service {
	s.metrics = m
	return s
}

// WithTimeout bounds each booking/transition transaction.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// WithClock overrides the time source for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// CreateParams describes a booking request. ClinicID is optional; when set
// it must match the clinic owning the slot.
type CreateParams struct {
	SlotID    uuid.UUID
	PatientID uuid.UUID
	ClinicID  uuid.UUID
	Type      string
	Notes     string
}

// Create books a slot for a patient. The slot's availability flip and the
// appointment insert commit atomically; of two concurrent calls against the
// same slot exactly one succeeds and the other observes ErrSlotUnavailable
// or ErrConflict.
func (s *Service) Create(ctx context.Context, scope auth.Scope, p CreateParams) (*Appointment, error) {
	if p.SlotID == uuid.Nil {
		return nil, fmt.Errorf("%w: slot id required", ErrInvalidInput)
	}
	if p.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient id required", ErrInvalidInput)
	}
	if !scope.CanManagePatient(p.PatientID) {
		return nil, auth.ErrForbidden
	}

	ctx, span := tracer.Start(ctx, "appointment.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("caredesk.slot_id", p.SlotID.String()),
		attribute.String("caredesk.patient_id", p.PatientID.String()),
	)

	started := s.now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointment: begin booking: %w", err)
	}
	defer tx.Rollback(ctx)

	sl, err := s.slots.Get(ctx, tx, p.SlotID)
	if err != nil {
		return nil, err
	}
	if p.ClinicID != uuid.Nil && p.ClinicID != sl.ClinicID {
		return nil, fmt.Errorf("%w: slot belongs to a different clinic", ErrInvalidInput)
	}
	// Patients may book at any clinic; staff only within their own.
	if scope.Staff() && !scope.CanManageClinic(sl.ClinicID) {
		return nil, auth.ErrForbidden
	}
	if !sl.Available {
		s.metrics.ObserveBooking("unavailable", s.now().Sub(started).Seconds())
		return nil, ErrSlotUnavailable
	}

	if err := s.slots.MarkUnavailable(ctx, tx, p.SlotID); err != nil {
		if errors.Is(err, slot.ErrConflict) {
			// Lost the race: another booking flipped the slot between our
			// read and the conditional update.
			s.metrics.ObserveSlotConflict()
			s.metrics.ObserveBooking("conflict", s.now().Sub(started).Seconds())
			return nil, ErrConflict
		}
		return nil, err
	}

	a := &Appointment{
		SlotID:    sl.ID,
		PatientID: p.PatientID,
		ClinicID:  sl.ClinicID,
		Status:    StatusBooked,
		Type:      p.Type,
		Notes:     p.Notes,
	}
	if err := s.appts.Insert(ctx, tx, a); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointment: commit booking: %w", err)
	}

	s.metrics.ObserveBooking("booked", s.now().Sub(started).Seconds())
	s.logger.Info("appointment booked",
		"appointment_id", a.ID,
		"slot_id", a.SlotID,
		"clinic_id", a.ClinicID,
		"patient_id", a.PatientID)
	return a, nil
}

// TransitionParams describes a staff-driven status change.
type TransitionParams struct {
	Target       Status
	ActorStaffID uuid.UUID
	Reason       string
}

// Transition moves an appointment through the state machine on behalf of
// staff. Cancellations release the slot in the same transaction; afterwards
// the waitlist filler is offered the freed slot best-effort.
func (s *Service) Transition(ctx context.Context, scope auth.Scope, id uuid.UUID, p TransitionParams) (*Appointment, error) {
	if !scope.Staff() {
		return nil, auth.ErrForbidden
	}
	if _, err := ParseStatus(string(p.Target)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	fillCtx := ctx
	ctx, span := tracer.Start(ctx, "appointment.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("caredesk.appointment_id", id.String()),
		attribute.String("caredesk.target_status", string(p.Target)),
	)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointment: begin transition: %w", err)
	}
	defer tx.Rollback(ctx)

	a, err := s.appts.Get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !scope.CanManageClinic(a.ClinicID) {
		return nil, auth.ErrForbidden
	}
	if err := CanTransition(a.Status, p.Target); err != nil {
		return nil, err
	}
	if err := s.apply(ctx, tx, a, p.Target, p.Reason); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointment: commit transition: %w", err)
	}

	s.metrics.ObserveTransition(string(p.Target))
	s.logger.Info("appointment transitioned",
		"appointment_id", a.ID,
		"status", a.Status,
		"actor_staff_id", p.ActorStaffID)

	if p.Target == StatusCancelled {
		s.offerFreedSlot(fillCtx, a.SlotID, a.ClinicID)
	}
	return a, nil
}

// CancelByPatient cancels one of the caller's own appointments. The slot is
// released atomically with the cancellation, then offered to the waitlist.
func (s *Service) CancelByPatient(ctx context.Context, scope auth.Scope, id, patientID uuid.UUID, reason string) (*Appointment, error) {
	if !scope.CanManagePatient(patientID) {
		return nil, auth.ErrForbidden
	}

	fillCtx := ctx
	ctx, span := tracer.Start(ctx, "appointment.cancel_by_patient")
	defer span.End()
	span.SetAttributes(attribute.String("caredesk.appointment_id", id.String()))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointment: begin cancel: %w", err)
	}
	defer tx.Rollback(ctx)

	// Ownership scoping happens in the query itself: a foreign appointment
	// id reads as not found, leaking nothing.
	a, err := s.appts.GetOwned(ctx, tx, id, patientID)
	if err != nil {
		return nil, err
	}

	sl, err := s.slots.Get(ctx, tx, a.SlotID)
	if err != nil {
		return nil, fmt.Errorf("appointment: load slot for cancel: %w", err)
	}
	cl, err := s.clinics.Get(ctx, a.ClinicID)
	if err != nil {
		return nil, fmt.Errorf("appointment: load clinic for cancel: %w", err)
	}
	startsAt, err := sl.StartsAt(cl.UTCOffsetMinutes)
	if err != nil {
		return nil, fmt.Errorf("appointment: resolve start time: %w", err)
	}
	if !s.now().Before(startsAt) {
		return nil, ErrAlreadyPast
	}
	if !a.Status.cancellableByPatient() {
		return nil, ErrNotCancellable
	}
	if err := s.apply(ctx, tx, a, StatusCancelled, reason); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointment: commit cancel: %w", err)
	}

	s.metrics.ObserveTransition(string(StatusCancelled))
	s.logger.Info("appointment cancelled by patient",
		"appointment_id", a.ID,
		"patient_id", patientID)

	s.offerFreedSlot(fillCtx, a.SlotID, a.ClinicID)
	return a, nil
}

// apply performs the status write for a transition already validated against
// the state machine. A zero-row CAS means a concurrent writer got there
// first.
func (s *Service) apply(ctx context.Context, tx pgx.Tx, a *Appointment, target Status, reason string) error {
	switch target {
	case StatusCancelled:
		now := s.now().UTC()
		ok, err := s.appts.MarkCancelled(ctx, tx, a.ID, a.Status, reason, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}
		if err := s.slots.MarkAvailable(ctx, tx, a.SlotID); err != nil {
			return fmt.Errorf("appointment: release slot: %w", err)
		}
		a.Status = StatusCancelled
		a.CancelledAt = &now
		a.CancelReason = reason
	case StatusCompleted:
		now := s.now().UTC()
		ok, err := s.appts.MarkCompleted(ctx, tx, a.ID, a.Status, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}
		a.Status = StatusCompleted
		a.CompletedAt = &now
	default:
		ok, err := s.appts.UpdateStatus(ctx, tx, a.ID, a.Status, target)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}
		a.Status = target
	}
	return nil
}

// offerFreedSlot hands a just-released slot to the waitlist. Failures are
// logged and swallowed: the cancellation has already committed and must
// report success regardless.
func (s *Service) offerFreedSlot(ctx context.Context, slotID, clinicID uuid.UUID) {
	if s.filler == nil {
		return
	}
	filled, err := s.filler.FillFreedSlot(ctx, slotID, clinicID)
	if err != nil {
		s.logger.Warn("waitlist fill after cancellation failed",
			"error", err,
			"slot_id", slotID,
			"clinic_id", clinicID)
		return
	}
	if filled {
		s.logger.Info("freed slot refilled from waitlist", "slot_id", slotID)
	}
}

// Get returns an appointment visible to the caller's scope.
func (s *Service) Get(ctx context.Context, scope auth.Scope, id uuid.UUID) (*Appointment, error) {
	a, err := s.appts.Get(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if !scope.CanManagePatient(a.PatientID) && !scope.CanManageClinic(a.ClinicID) {
		return nil, ErrNotFound
	}
	return a, nil
}

// ListForPatient returns the patient's appointments, newest first.
func (s *Service) ListForPatient(ctx context.Context, scope auth.Scope, patientID uuid.UUID) ([]Appointment, error) {
	if !scope.CanManagePatient(patientID) {
		return nil, auth.ErrForbidden
	}
	return s.appts.ListForPatient(ctx, nil, patientID)
}

// ListForClinicDay returns a clinic's appointments for one calendar day.
func (s *Service) ListForClinicDay(ctx context.Context, scope auth.Scope, clinicID uuid.UUID, date time.Time) ([]Appointment, error) {
	if !scope.Staff() || !scope.CanManageClinic(clinicID) {
		return nil, auth.ErrForbidden
	}
	return s.appts.ListForClinicDay(ctx, nil, clinicID, date)
}
