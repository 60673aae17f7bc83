package clinic

import (
	"testing"
	"time"
)

func TestForWeekday(t *testing.T) {
	hours := WeeklyHours{
		Monday: &DayHours{Open: "09:00", Close: "18:00"},
		Friday: &DayHours{Open: "09:00", Close: "17:00"},
	}
	if got := hours.ForWeekday(time.Monday); got == nil || got.Close != "18:00" {
		t.Fatalf("expected monday hours, got %+v", got)
	}
	if got := hours.ForWeekday(time.Friday); got == nil || got.Close != "17:00" {
		t.Fatalf("expected friday hours, got %+v", got)
	}
	if got := hours.ForWeekday(time.Sunday); got != nil {
		t.Fatalf("expected sunday closed, got %+v", got)
	}
}

func TestHasAnyHours(t *testing.T) {
	var empty WeeklyHours
	if empty.HasAnyHours() {
		t.Fatalf("empty schedule should have no hours")
	}
	withSat := WeeklyHours{Saturday: &DayHours{Open: "10:00", Close: "14:00"}}
	if !withSat.HasAnyHours() {
		t.Fatalf("expected saturday hours to count")
	}
}

func TestSlotTimesGenerated(t *testing.T) {
	day := &DayHours{Open: "09:00", Close: "11:00"}
	got := day.SlotTimes()
	want := []string{"09:00", "09:30", "10:00", "10:30"}
	if len(got) != len(want) {
		t.Fatalf("expected %d marks, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("mark %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSlotTimesExplicitMarks(t *testing.T) {
	day := &DayHours{Open: "09:00", Close: "17:00", Marks: []string{"09:15", "13:45"}}
	got := day.SlotTimes()
	if len(got) != 2 || got[0] != "09:15" || got[1] != "13:45" {
		t.Fatalf("expected explicit marks, got %v", got)
	}

	// Returned slice must be a copy.
	got[0] = "00:00"
	if day.Marks[0] != "09:15" {
		t.Fatalf("SlotTimes should not alias Marks")
	}
}

func TestSlotTimesInvalid(t *testing.T) {
	var nilDay *DayHours
	if nilDay.SlotTimes() != nil {
		t.Fatalf("nil day should have no marks")
	}
	bad := &DayHours{Open: "nine", Close: "17:00"}
	if bad.SlotTimes() != nil {
		t.Fatalf("invalid open time should yield no marks")
	}
}

func TestParseStaffRole(t *testing.T) {
	for _, valid := range []string{"doctor", "nurse", "specialist", "admin"} {
		role, err := ParseStaffRole(valid)
		if err != nil {
			t.Fatalf("ParseStaffRole(%q): %v", valid, err)
		}
		if string(role) != valid {
			t.Fatalf("ParseStaffRole(%q) = %q", valid, role)
		}
	}
	if _, err := ParseStaffRole("janitor"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestClinicLocation(t *testing.T) {
	c := Clinic{UTCOffsetMinutes: -300}
	at := time.Date(2026, time.June, 1, 15, 0, 0, 0, time.UTC)
	if got := at.In(c.Location()).Hour(); got != 10 {
		t.Fatalf("expected 10:00 local, got %d:00", got)
	}
}
