package reminder

import (
	"testing"
	"time"
)

func TestWindow24HourBounds(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	w := Window24Hour(now)

	tests := []struct {
		name    string
		startAt time.Time
		want    bool
	}{
		{"exactly 23h ahead", now.Add(23 * time.Hour), true},
		{"exactly 24h ahead", now.Add(24 * time.Hour), true},
		{"exactly 25h ahead", now.Add(25 * time.Hour), true},
		{"one minute under", now.Add(23*time.Hour - time.Minute), false},
		{"one minute over", now.Add(25*time.Hour + time.Minute), false},
		{"30h ahead", now.Add(30 * time.Hour), false},
		{"in the past", now.Add(-time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.Contains(tt.startAt); got != tt.want {
				t.Fatalf("Contains(%s) = %v, want %v", tt.startAt, got, tt.want)
			}
		})
	}
}

func TestWindowSameDayBounds(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	w := WindowSameDay(now)

	if !w.Contains(now.Add(2 * time.Hour)) {
		t.Fatal("2h ahead must be inside the same-day window")
	}
	if !w.Contains(now.Add(4 * time.Hour)) {
		t.Fatal("4h ahead must be inside the same-day window")
	}
	if w.Contains(now.Add(90 * time.Minute)) {
		t.Fatal("90m ahead must be outside the same-day window")
	}
	if w.Contains(now.Add(5 * time.Hour)) {
		t.Fatal("5h ahead must be outside the same-day window")
	}
}

func TestWindowForDispatch(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if got := WindowFor(Kind24Hour, now); got != Window24Hour(now) {
		t.Fatalf("WindowFor(24h) = %+v", got)
	}
	if got := WindowFor(KindSameDay, now); got != WindowSameDay(now) {
		t.Fatalf("WindowFor(same_day) = %+v", got)
	}
}

// A same-day window computed near local midnight reaches into the next local
// calendar day; those candidates belong to tomorrow's runs, not today's.
func TestSameLocalDayMidnightStraddle(t *testing.T) {
	const offset = 120 // UTC+2

	// 21:30 local on March 10. The window tops out at 01:30 local March 11.
	now := time.Date(2026, 3, 10, 19, 30, 0, 0, time.UTC)
	w := WindowSameDay(now)

	// Slot at 00:30 local March 11: inside the hour window, different day.
	past := time.Date(2026, 3, 10, 22, 30, 0, 0, time.UTC)
	if !w.Contains(past) {
		t.Fatal("slot must be inside the raw hour window")
	}
	if SameLocalDay(now, past, offset) {
		t.Fatal("00:30 next local day must not count as today")
	}

	// Slot at 23:45 local March 10: inside the window, same day.
	sameDay := time.Date(2026, 3, 10, 21, 45, 0, 0, time.UTC)
	if !w.Contains(sameDay) {
		t.Fatal("slot must be inside the raw hour window")
	}
	if !SameLocalDay(now, sameDay, offset) {
		t.Fatal("23:45 same local day must count as today")
	}
}

func TestSameLocalDayOffsetShiftsDate(t *testing.T) {
	// 23:00 UTC March 10 is 01:00 March 11 at UTC+2 but 18:00 March 10 at
	// UTC-5. The same two instants can share a date in one clinic's zone and
	// not in another's.
	a := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	b := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)

	if SameLocalDay(a, b, 120) {
		t.Fatal("at UTC+2 the instants fall on different local dates")
	}
	if !SameLocalDay(a, b, -300) {
		t.Fatal("at UTC-5 the instants fall on the same local date")
	}
}
