package appointment

import (
	"errors"
	"testing"
)

func TestParseStatus(t *testing.T) {
	for _, valid := range []string{"BOOKED", "CONFIRMED", "REMINDER_SENT", "CHECKED_IN", "COMPLETED", "CANCELLED", "NO_SHOW"} {
		got, err := ParseStatus(valid)
		if err != nil {
			t.Errorf("ParseStatus(%q): unexpected error %v", valid, err)
		}
		if string(got) != valid {
			t.Errorf("ParseStatus(%q) = %q", valid, got)
		}
	}
	for _, invalid := range []string{"", "booked", "DONE", "PENDING"} {
		if _, err := ParseStatus(invalid); err == nil {
			t.Errorf("ParseStatus(%q): expected error", invalid)
		}
	}
}

// TestCanTransitionGrid walks every (from, to) pair: listed pairs must pass,
// everything else must fail with the right error shape.
func TestCanTransitionGrid(t *testing.T) {
	all := []Status{
		StatusBooked, StatusConfirmed, StatusReminderSent, StatusCheckedIn,
		StatusCompleted, StatusCancelled, StatusNoShow,
	}
	allowed := map[Status]map[Status]bool{
		StatusBooked:       {StatusConfirmed: true, StatusCancelled: true},
		StatusConfirmed:    {StatusCheckedIn: true, StatusCancelled: true, StatusNoShow: true},
		StatusReminderSent: {StatusCheckedIn: true, StatusCancelled: true, StatusNoShow: true},
		StatusCheckedIn:    {StatusCompleted: true, StatusCancelled: true, StatusNoShow: true},
	}

	for _, from := range all {
		for _, to := range all {
			err := CanTransition(from, to)
			if allowed[from][to] {
				if err != nil {
					t.Errorf("%s -> %s: unexpected rejection: %v", from, to, err)
				}
				continue
			}
			if err == nil {
				t.Errorf("%s -> %s: expected rejection", from, to)
				continue
			}
			if from.Terminal() {
				if !errors.Is(err, ErrAlreadyFinalized) {
					t.Errorf("%s -> %s: want ErrAlreadyFinalized, got %v", from, to, err)
				}
				continue
			}
			var invalid *InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Errorf("%s -> %s: want InvalidTransitionError, got %v", from, to, err)
				continue
			}
			if invalid.From != from || invalid.To != to {
				t.Errorf("%s -> %s: error carries %s -> %s", from, to, invalid.From, invalid.To)
			}
		}
	}
}

func TestLifecycleSequence(t *testing.T) {
	steps := []Status{StatusConfirmed, StatusCheckedIn, StatusCompleted}
	current := StatusBooked
	for _, next := range steps {
		if err := CanTransition(current, next); err != nil {
			t.Fatalf("%s -> %s: %v", current, next, err)
		}
		current = next
	}
	if err := CanTransition(current, StatusConfirmed); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("COMPLETED -> CONFIRMED: want ErrAlreadyFinalized, got %v", err)
	}
}

func TestTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusCompleted: true,
		StatusCancelled: true,
		StatusNoShow:    true,
	}
	for _, s := range []Status{StatusBooked, StatusConfirmed, StatusReminderSent, StatusCheckedIn, StatusCompleted, StatusCancelled, StatusNoShow} {
		if got := s.Terminal(); got != terminal[s] {
			t.Errorf("%s.Terminal() = %v", s, got)
		}
	}
}

func TestCancellableByPatient(t *testing.T) {
	want := map[Status]bool{
		StatusBooked:       true,
		StatusConfirmed:    true,
		StatusReminderSent: true,
	}
	for _, s := range []Status{StatusBooked, StatusConfirmed, StatusReminderSent, StatusCheckedIn, StatusCompleted, StatusCancelled, StatusNoShow} {
		if got := s.cancellableByPatient(); got != want[s] {
			t.Errorf("%s.cancellableByPatient() = %v", s, got)
		}
	}
}
