// Package slot owns bookable time slots. A slot belongs to one clinic and
// one staff member on one calendar date; its availability flag is the single
// source of truth a booking races against. The flag is false exactly while a
// non-cancelled appointment holds the slot.
package slot

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/caredesk/clinic-scheduling/internal/timeofday"
)

var (
	// ErrNotFound is returned when a slot does not exist.
	ErrNotFound = errors.New("slot: not found")
	// ErrConflict is returned when an availability flip loses a race or a
	// slot is flipped unavailable twice. Double-unavailable means a
	// double-booking bug and must never succeed silently.
	ErrConflict = errors.New("slot: availability conflict")
)

// Slot is one bookable opening.
type Slot struct {
	ID        uuid.UUID `json:"id"`
	ClinicID  uuid.UUID `json:"clinic_id"`
	StaffID   uuid.UUID `json:"staff_id"`
	Date      time.Time `json:"date"`       // calendar date; time-of-day parts ignored
	StartTime string    `json:"start_time"` // "HH:MM"
	EndTime   string    `json:"end_time"`   // "HH:MM"
	Available bool      `json:"available"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StartsAt resolves the slot's absolute start instant using the owning
// clinic's fixed UTC offset.
func (s *Slot) StartsAt(utcOffsetMinutes int) (time.Time, error) {
	return timeofday.Combine(s.Date, s.StartTime, utcOffsetMinutes)
}

// MinStartForDate computes the earliest bookable "HH:MM" when querying a
// clinic's slots for a date. It returns "" unless date is "today" in the
// clinic's local time, in which case slots starting less than buffer from the
// local now are excluded. The cutoff rounds up to the next whole minute so a
// slot is never admitted with less than the full buffer remaining.
func MinStartForDate(now, date time.Time, utcOffsetMinutes int, buffer time.Duration) string {
	y, m, d := timeofday.LocalDate(now, utcOffsetMinutes)
	dy, dm, dd := date.Date()
	if y != dy || m != dm || d != dd {
		return ""
	}
	local := now.In(timeofday.Zone(utcOffsetMinutes)).Add(buffer)
	ly, lm, ld := local.Date()
	if ly != y || lm != m || ld != d {
		// Buffer spilled past local midnight; excludes every slot.
		return "24:00"
	}
	minutes := local.Hour()*60 + local.Minute()
	if local.Second() > 0 || local.Nanosecond() > 0 {
		minutes++
	}
	if minutes > 23*60+59 {
		// Past the last representable mark; excludes every slot.
		return "24:00"
	}
	return timeofday.Format(minutes)
}
