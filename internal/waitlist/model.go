// Package waitlist queues patients who want a date with no open slot and
// promotes them when a slot frees up. Matching is score-based and strictly
// deterministic: a fixed candidate set always produces the same pick.
package waitlist

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caredesk/clinic-scheduling/internal/timeofday"
)

// EntryStatus is the lifecycle of one waitlist entry.
type EntryStatus string

const (
	// StatusWaiting entries are live candidates for matching.
	StatusWaiting EntryStatus = "WAITING"
	// StatusNotified entries were matched to a slot and booked.
	StatusNotified EntryStatus = "NOTIFIED"
	// StatusExpired entries were found stale: the patient already holds an
	// active appointment on their preferred date.
	StatusExpired EntryStatus = "EXPIRED"
)

var (
	// ErrNotFound is returned when a waitlist entry does not exist.
	ErrNotFound = errors.New("waitlist: not found")
	// ErrInvalidEntry marks entries with missing or malformed fields.
	ErrInvalidEntry = errors.New("waitlist: invalid entry")
)

// Entry is one patient's standing request for an appointment near a date.
// PreferredTime and PreferredDayPart are alternatives: an exact "HH:MM" wish
// or a coarse part of day.
type Entry struct {
	ID               uuid.UUID         `json:"id"`
	PatientID        uuid.UUID         `json:"patient_id"`
	ClinicID         uuid.UUID         `json:"clinic_id"`
	PreferredDate    time.Time         `json:"preferred_date"`
	PreferredTime    string            `json:"preferred_time,omitempty"`
	PreferredDayPart timeofday.DayPart `json:"preferred_day_part,omitempty"`
	PreferredStaffID uuid.UUID         `json:"preferred_staff_id,omitempty"`
	Type             string            `json:"type,omitempty"`
	Priority         int               `json:"priority"`
	Status           EntryStatus       `json:"status"`

	FilledAt     *time.Time `json:"filled_at,omitempty"`
	FilledSlotID *uuid.UUID `json:"filled_slot_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate checks an entry before insertion.
func (e *Entry) Validate() error {
	if e.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient id required", ErrInvalidEntry)
	}
	if e.ClinicID == uuid.Nil {
		return fmt.Errorf("%w: clinic id required", ErrInvalidEntry)
	}
	if e.PreferredDate.IsZero() {
		return fmt.Errorf("%w: preferred date required", ErrInvalidEntry)
	}
	if e.Priority < 0 {
		return fmt.Errorf("%w: priority must not be negative", ErrInvalidEntry)
	}
	if e.PreferredTime != "" {
		if _, err := timeofday.Parse(e.PreferredTime); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
		}
	}
	switch e.PreferredDayPart {
	case "", timeofday.Morning, timeofday.Afternoon, timeofday.Evening:
	default:
		return fmt.Errorf("%w: unknown day part %q", ErrInvalidEntry, e.PreferredDayPart)
	}
	return nil
}
