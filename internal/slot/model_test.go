package slot

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestStartsAt(t *testing.T) {
	sl := Slot{
		ID:        uuid.New(),
		Date:      time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC),
		StartTime: "09:30",
	}
	got, err := sl.StartsAt(-300)
	if err != nil {
		t.Fatalf("StartsAt: %v", err)
	}
	want := time.Date(2026, time.March, 14, 14, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("StartsAt: got %s, want %s", got, want)
	}
}

func TestMinStartForDate(t *testing.T) {
	date := time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)

	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	if got := MinStartForDate(now, date, 0, 15*time.Minute); got != "10:15" {
		t.Fatalf("same-day cutoff: got %q", got)
	}

	// Partial minutes round up so the full buffer always holds.
	now = time.Date(2026, time.March, 14, 10, 0, 30, 0, time.UTC)
	if got := MinStartForDate(now, date, 0, 15*time.Minute); got != "10:16" {
		t.Fatalf("rounded cutoff: got %q", got)
	}

	// A future date has no cutoff.
	tomorrow := date.AddDate(0, 0, 1)
	if got := MinStartForDate(now, tomorrow, 0, 15*time.Minute); got != "" {
		t.Fatalf("future date should have no cutoff, got %q", got)
	}

	// 02:00 UTC on the 15th is still the evening of the 14th at UTC-05:00.
	now = time.Date(2026, time.March, 15, 2, 0, 0, 0, time.UTC)
	if got := MinStartForDate(now, date, -300, 15*time.Minute); got != "21:15" {
		t.Fatalf("offset cutoff: got %q", got)
	}
	// And in UTC the 14th is already over.
	if got := MinStartForDate(now, date, 0, 15*time.Minute); got != "" {
		t.Fatalf("past date should have no cutoff, got %q", got)
	}

	// A buffer that spills past midnight excludes every mark.
	now = time.Date(2026, time.March, 14, 23, 50, 0, 0, time.UTC)
	if got := MinStartForDate(now, date, 0, 15*time.Minute); got != "24:00" {
		t.Fatalf("overflow cutoff: got %q", got)
	}
}
