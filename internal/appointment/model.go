// Package appointment owns appointment records and the lifecycle state
// machine that guards every status change. Booking and cancellation commit
// the appointment write and the slot availability flip in one transaction;
// nothing else may touch the flag.
package appointment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when an appointment does not exist or is not
	// visible to the caller's scope.
	ErrNotFound = errors.New("appointment: not found")
	// ErrSlotUnavailable is returned when a booking loses the race for a
	// slot or targets a slot already held.
	ErrSlotUnavailable = errors.New("appointment: slot unavailable")
	// ErrConflict is returned when a concurrent writer changed the
	// appointment between read and write.
	ErrConflict = errors.New("appointment: concurrent update conflict")
	// ErrAlreadyPast rejects a patient cancel after the slot's start time.
	ErrAlreadyPast = errors.New("appointment: start time already passed")
	// ErrNotCancellable rejects a patient cancel from a status outside the
	// patient cancel window.
	ErrNotCancellable = errors.New("appointment: not cancellable")

	// ErrInvalidInput marks booking requests with missing or malformed fields.
	ErrInvalidInput = errors.New("appointment: invalid input")
)

// ReminderState tracks one reminder kind's delivery on an appointment.
type ReminderState struct {
	Sent   bool       `json:"sent"`
	SentAt *time.Time `json:"sent_at,omitempty"`
	Failed bool       `json:"failed"`
	Error  string     `json:"error,omitempty"`
}

// Appointment is one booking of a slot by a patient. Records are never
// deleted; terminal statuses retain them for history.
type Appointment struct {
	ID        uuid.UUID `json:"id"`
	SlotID    uuid.UUID `json:"slot_id"`
	PatientID uuid.UUID `json:"patient_id"`
	ClinicID  uuid.UUID `json:"clinic_id"`
	Status    Status    `json:"status"`
	Type      string    `json:"type,omitempty"`
	Notes     string    `json:"notes,omitempty"`

	// Two independent reminder tracks; see the reminder package.
	Reminder24h     ReminderState `json:"reminder_24h"`
	ReminderSameDay ReminderState `json:"reminder_same_day"`

	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
