package reminder

import (
	"time"

	"github.com/caredesk/clinic-scheduling/internal/timeofday"
)

// Window brackets absolute time; both bounds are inclusive in the candidate
// queries.
type Window struct {
	From time.Time
	To   time.Time
}

// Window24Hour brackets slots starting 23 to 25 hours from now. The two-hour
// width tolerates an hourly trigger drifting without dropping candidates.
func Window24Hour(now time.Time) Window {
	return Window{From: now.Add(23 * time.Hour), To: now.Add(25 * time.Hour)}
}

// WindowSameDay brackets slots starting 2 to 4 hours from now. Candidates
// must additionally start on today's local calendar date; the hour window
// alone can straddle a local midnight and leak tomorrow's early slots in.
func WindowSameDay(now time.Time) Window {
	return Window{From: now.Add(2 * time.Hour), To: now.Add(4 * time.Hour)}
}

// WindowFor returns the kind's candidate window anchored at now.
func WindowFor(kind Kind, now time.Time) Window {
	if kind == KindSameDay {
		return WindowSameDay(now)
	}
	return Window24Hour(now)
}

// Contains reports whether instant t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// SameLocalDay reports whether two instants share a calendar date in a
// clinic's fixed-offset local time.
func SameLocalDay(a, b time.Time, utcOffsetMinutes int) bool {
	ay, am, ad := timeofday.LocalDate(a, utcOffsetMinutes)
	by, bm, bd := timeofday.LocalDate(b, utcOffsetMinutes)
	return ay == by && am == bm && ad == bd
}
