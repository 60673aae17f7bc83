// Package clinic owns clinic and staff records: operating hours, the fixed
// UTC offset used for all local-time math, and the staff roster that slots
// hang off.
package clinic

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caredesk/clinic-scheduling/internal/timeofday"
)

// DayHours represents the opening hours for a single day.
// Nil means the clinic is closed that day.
type DayHours struct {
	Open  string `json:"open"`  // "09:00" in 24-hour format
	Close string `json:"close"` // "18:00" in 24-hour format
	// Marks lists the bookable start times within the open hours. When empty,
	// marks are generated on a half-hour grid between Open and Close.
	Marks []string `json:"marks,omitempty"`
}

// WeeklyHours maps day names to their hours.
type WeeklyHours struct {
	Monday    *DayHours `json:"monday,omitempty"`
	Tuesday   *DayHours `json:"tuesday,omitempty"`
	Wednesday *DayHours `json:"wednesday,omitempty"`
	Thursday  *DayHours `json:"thursday,omitempty"`
	Friday    *DayHours `json:"friday,omitempty"`
	Saturday  *DayHours `json:"saturday,omitempty"`
	Sunday    *DayHours `json:"sunday,omitempty"`
}

// ForWeekday returns the hours for a given weekday (0=Sunday, 6=Saturday).
func (w *WeeklyHours) ForWeekday(weekday time.Weekday) *DayHours {
	switch weekday {
	case time.Sunday:
		return w.Sunday
	case time.Monday:
		return w.Monday
	case time.Tuesday:
		return w.Tuesday
	case time.Wednesday:
		return w.Wednesday
	case time.Thursday:
		return w.Thursday
	case time.Friday:
		return w.Friday
	case time.Saturday:
		return w.Saturday
	default:
		return nil
	}
}

// HasAnyHours returns true if at least one day has hours configured.
func (w *WeeklyHours) HasAnyHours() bool {
	return w.Sunday != nil || w.Monday != nil || w.Tuesday != nil ||
		w.Wednesday != nil || w.Thursday != nil || w.Friday != nil || w.Saturday != nil
}

// SlotTimes returns the bookable start marks for the day. Explicit marks win;
// otherwise marks are generated every 30 minutes from Open up to (not
// including) Close. Invalid open/close strings yield no marks.
func (d *DayHours) SlotTimes() []string {
	if d == nil {
		return nil
	}
	if len(d.Marks) > 0 {
		out := make([]string, len(d.Marks))
		copy(out, d.Marks)
		return out
	}
	open, err := timeofday.Parse(d.Open)
	if err != nil {
		return nil
	}
	close, err := timeofday.Parse(d.Close)
	if err != nil {
		return nil
	}
	var marks []string
	for m := open; m < close; m += 30 {
		marks = append(marks, timeofday.Format(m))
	}
	return marks
}

// Clinic holds a clinic's identity and scheduling configuration. Local-time
// calculations use the fixed UTCOffsetMinutes; daylight-saving shifts are not
// modeled.
type Clinic struct {
	ID               uuid.UUID   `json:"id"`
	Name             string      `json:"name"`
	Phone            string      `json:"phone,omitempty"`
	Email            string      `json:"email,omitempty"`
	Region           string      `json:"region,omitempty"`
	Active           bool        `json:"active"`
	UTCOffsetMinutes int         `json:"utc_offset_minutes"`
	DefaultLanguage  string      `json:"default_language"`
	Hours            WeeklyHours `json:"hours"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Location returns the clinic's fixed-offset location.
func (c *Clinic) Location() *time.Location {
	return timeofday.Zone(c.UTCOffsetMinutes)
}

// StaffRole classifies a staff member.
type StaffRole string

const (
	StaffRoleDoctor     StaffRole = "doctor"
	StaffRoleNurse      StaffRole = "nurse"
	StaffRoleSpecialist StaffRole = "specialist"
	StaffRoleAdmin      StaffRole = "admin"
)

// ParseStaffRole validates a staff role string.
func ParseStaffRole(s string) (StaffRole, error) {
	switch StaffRole(s) {
	case StaffRoleDoctor, StaffRoleNurse, StaffRoleSpecialist, StaffRoleAdmin:
		return StaffRole(s), nil
	default:
		return "", fmt.Errorf("clinic: unknown staff role %q", s)
	}
}

// Staff is a bookable member of exactly one clinic.
type Staff struct {
	ID             uuid.UUID `json:"id"`
	ClinicID       uuid.UUID `json:"clinic_id"`
	Name           string    `json:"name"`
	Role           StaffRole `json:"role"`
	Specialization string    `json:"specialization,omitempty"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}
