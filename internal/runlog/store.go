package runlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists the run ledger in Postgres.
type Store struct {
	db Querier
}

// NewStore creates a run ledger store.
func NewStore(db Querier) *Store {
	return &Store{db: db}
}

const runColumns = `id, job_name, trigger_source, status, checked, sent, failed, retried,
	error_detail, started_at, finished_at, duration_ms`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.JobName, &rec.Trigger, &rec.Status,
		&rec.Counts.Checked, &rec.Counts.Sent, &rec.Counts.Failed, &rec.Counts.Retried,
		&rec.Error, &rec.StartedAt, &rec.FinishedAt, &rec.DurationMS)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Open appends a RUNNING entry and returns it. Call before any run work so a
// crash still leaves evidence of the attempt.
func (s *Store) Open(ctx context.Context, jobName string, trigger Trigger) (*Record, error) {
	rec := &Record{
		ID:        uuid.New(),
		JobName:   jobName,
		Trigger:   trigger,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO reminder_runs (id, job_name, trigger_source, status, started_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.JobName, rec.Trigger, rec.Status, rec.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("runlog: open: %w", err)
	}
	return rec, nil
}

// Close finalizes a run with its outcome and counts. Duration is derived from
// the stored start time so restarts cannot skew it.
func (s *Store) Close(ctx context.Context, id uuid.UUID, status Status, counts Counts, errDetail string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE reminder_runs
		SET status = $2, checked = $3, sent = $4, failed = $5, retried = $6,
			error_detail = $7, finished_at = now(),
			duration_ms = (extract(epoch FROM (now() - started_at)) * 1000)::bigint
		WHERE id = $1 AND status = 'RUNNING'`,
		id, status, counts.Checked, counts.Sent, counts.Failed, counts.Retried, errDetail)
	if err != nil {
		return fmt.Errorf("runlog: close: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("runlog: close: run %s not open", id)
	}
	return nil
}

// Get loads one run record.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := scanRecord(s.db.QueryRow(ctx,
		`SELECT `+runColumns+` FROM reminder_runs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("runlog: get: %w", err)
	}
	return rec, nil
}

// ListRecent returns the newest runs for a job, most recent first.
func (s *Store) ListRecent(ctx context.Context, jobName string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+runColumns+`
		FROM reminder_runs
		WHERE job_name = $1
		ORDER BY started_at DESC
		LIMIT $2`, jobName, limit)
	if err != nil {
		return nil, fmt.Errorf("runlog: list recent: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("runlog: scan: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runlog: rows: %w", err)
	}
	return out, nil
}

// CloseAbandoned marks RUNNING entries older than the cutoff as FAILED. A
// worker calls this on startup to clean up after crashes mid-run.
func (s *Store) CloseAbandoned(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE reminder_runs
		SET status = 'FAILED', error_detail = 'abandoned: process exited mid-run',
			finished_at = now(),
			duration_ms = (extract(epoch FROM (now() - started_at)) * 1000)::bigint
		WHERE status = 'RUNNING' AND started_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("runlog: close abandoned: %w", err)
	}
	return tag.RowsAffected(), nil
}
