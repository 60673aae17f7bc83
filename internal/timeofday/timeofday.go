// Package timeofday handles the clinic scheduling time representation:
// calendar dates paired with "HH:MM" clock strings, resolved against a
// clinic's fixed UTC offset. Clock strings compare correctly as plain
// strings, which keeps SQL ordering and range filters trivial.
package timeofday

import (
	"fmt"
	"strconv"
	"time"
)

// DayPart buckets a clock time for waitlist preference matching.
type DayPart string

const (
	Morning   DayPart = "morning"
	Afternoon DayPart = "afternoon"
	Evening   DayPart = "evening"
)

// Parse validates an "HH:MM" clock string and returns minutes after midnight.
func Parse(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("timeofday: invalid clock time %q", s)
	}
	hh, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, fmt.Errorf("timeofday: invalid clock time %q", s)
	}
	mm, err := strconv.Atoi(s[3:])
	if err != nil {
		return 0, fmt.Errorf("timeofday: invalid clock time %q", s)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("timeofday: clock time %q out of range", s)
	}
	return hh*60 + mm, nil
}

// Format renders minutes after midnight as an "HH:MM" clock string.
func Format(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Zone returns the fixed-offset location for a clinic's UTC offset in minutes.
func Zone(offsetMinutes int) *time.Location {
	if offsetMinutes == 0 {
		return time.UTC
	}
	sign := "+"
	abs := offsetMinutes
	if abs < 0 {
		sign = "-"
		abs = -abs
	}
	name := fmt.Sprintf("UTC%s%02d:%02d", sign, abs/60, abs%60)
	return time.FixedZone(name, offsetMinutes*60)
}

// Combine resolves a calendar date and an "HH:MM" clock string in a clinic's
// fixed UTC offset into an absolute UTC instant. Only the year, month and day
// of date are used.
func Combine(date time.Time, clock string, offsetMinutes int) (time.Time, error) {
	mins, err := Parse(clock)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, mins/60, mins%60, 0, 0, Zone(offsetMinutes)).UTC(), nil
}

// LocalDate returns the calendar date of an instant as seen from a clinic's
// fixed UTC offset.
func LocalDate(instant time.Time, offsetMinutes int) (int, time.Month, int) {
	return instant.In(Zone(offsetMinutes)).Date()
}

// PartOf buckets minutes after midnight: morning before 12:00, afternoon from
// 12:00 until 17:00, evening after.
func PartOf(minutes int) DayPart {
	switch {
	case minutes < 12*60:
		return Morning
	case minutes < 17*60:
		return Afternoon
	default:
		return Evening
	}
}
