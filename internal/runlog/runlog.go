// Package runlog keeps the append-only ledger of reminder scheduler runs.
// Every run opens a RUNNING row before doing any work and closes it exactly
// once, even when the run itself fails. An entry stuck in RUNNING means the
// process died mid-run.
package runlog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the final (or in-flight) state of one run.
type Status string

const (
	StatusRunning Status = "RUNNING"
	StatusSuccess Status = "SUCCESS"
	StatusPartial Status = "PARTIAL"
	StatusFailed  Status = "FAILED"
	StatusTimeout Status = "TIMEOUT"
)

// Trigger records what started a run.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
	TriggerTest      Trigger = "test"
)

// ErrNotFound is returned when a run record does not exist.
var ErrNotFound = errors.New("runlog: not found")

// Counts tallies one run's work.
type Counts struct {
	Checked int `json:"checked"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Retried int `json:"retried"`
}

// Record is one ledger entry.
type Record struct {
	ID         uuid.UUID  `json:"id"`
	JobName    string     `json:"job_name"`
	Trigger    Trigger    `json:"trigger"`
	Status     Status     `json:"status"`
	Counts     Counts     `json:"counts"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DurationMS *int64     `json:"duration_ms,omitempty"`
}
