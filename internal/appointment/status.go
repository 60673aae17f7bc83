package appointment

import (
	"errors"
	"fmt"
)

// Status is an appointment's lifecycle state.
type Status string

const (
	StatusBooked       Status = "BOOKED"
	StatusConfirmed    Status = "CONFIRMED"
	StatusReminderSent Status = "REMINDER_SENT"
	StatusCheckedIn    Status = "CHECKED_IN"
	StatusCompleted    Status = "COMPLETED"
	StatusCancelled    Status = "CANCELLED"
	StatusNoShow       Status = "NO_SHOW"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusBooked, StatusConfirmed, StatusReminderSent, StatusCheckedIn,
		StatusCompleted, StatusCancelled, StatusNoShow:
		return Status(s), nil
	default:
		return "", fmt.Errorf("appointment: unknown status %q", s)
	}
}

// transitions is the closed lifecycle table. REMINDER_SENT behaves like
// CONFIRMED: it is entered only by the reminder scheduler's flag write, never
// through Transition, and leaves through the same moves CONFIRMED allows.
var transitions = map[Status][]Status{
	StatusBooked:       {StatusConfirmed, StatusCancelled},
	StatusConfirmed:    {StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusReminderSent: {StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusCheckedIn:    {StatusCompleted, StatusCancelled, StatusNoShow},
	StatusCompleted:    nil,
	StatusCancelled:    nil,
	StatusNoShow:       nil,
}

// Terminal reports whether no further transitions may leave this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	default:
		return false
	}
}

// ErrAlreadyFinalized rejects any move out of a terminal status, before the
// table is consulted.
var ErrAlreadyFinalized = errors.New("appointment: already finalized")

// InvalidTransitionError reports a status change the lifecycle table forbids.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("appointment: invalid transition %s -> %s", e.From, e.To)
}

// CanTransition validates a status change against the lifecycle table.
func CanTransition(from, to Status) error {
	if from.Terminal() {
		return fmt.Errorf("%w: %s", ErrAlreadyFinalized, from)
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: from, To: to}
}

// cancellableByPatient reports whether a patient may still cancel from this
// status. REMINDER_SENT counts as CONFIRMED here: a sent reminder must not
// strip the patient of the cancel window.
func (s Status) cancellableByPatient() bool {
	switch s {
	case StatusBooked, StatusConfirmed, StatusReminderSent:
		return true
	default:
		return false
	}
}
