// Package reminder sends appointment reminders on two independent tracks: a
// 24-hour-ahead nudge and a same-day nudge a few hours before the visit.
// Each scheduler run appends one record to the run ledger, so operators can
// audit every execution, including the ones that died mid-flight.
package reminder

import (
	"errors"
	"fmt"
)

// Kind names one reminder track.
type Kind string

const (
	// Kind24Hour reminds the day before, 23-25 hours ahead of the slot.
	Kind24Hour Kind = "24h"
	// KindSameDay reminds 2-4 hours ahead, same local calendar day only.
	KindSameDay Kind = "same_day"
)

// Kinds lists both tracks in processing order: same-day slots start sooner,
// so their reminders go out first within a combined run.
func Kinds() []Kind {
	return []Kind{KindSameDay, Kind24Hour}
}

// ParseKind validates a reminder kind from a request.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Kind24Hour, KindSameDay:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("reminder: unknown kind %q", s)
	}
}

// JobName returns the run ledger job name for a kind-filtered run.
func (k Kind) JobName() string {
	switch k {
	case Kind24Hour:
		return "reminder_24h"
	case KindSameDay:
		return "reminder_same_day"
	default:
		return "reminder"
	}
}

// ErrAlreadyRunning is returned when another scheduler instance holds the
// run lock for the same job.
var ErrAlreadyRunning = errors.New("reminder: run already in progress")
