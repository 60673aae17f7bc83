package reminder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/caredesk/clinic-scheduling/internal/messaging"
	"github.com/caredesk/clinic-scheduling/internal/observability/metrics"
	"github.com/caredesk/clinic-scheduling/internal/redislock"
	"github.com/caredesk/clinic-scheduling/internal/runlog"
	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

var tracer = otel.Tracer("caredesk.internal.reminder")

// RunAlerter tells operators about runs that ended badly. Implemented by
// notify.Service; alerts are best-effort.
type RunAlerter interface {
	RunFailure(ctx context.Context, rec *runlog.Record) error
}

// Scheduler executes reminder runs. Candidates are processed sequentially
// with a pacing delay between sends; one run never sends concurrently.
type Scheduler struct {
	store   *Store
	runs    *runlog.Store
	sender  messaging.Sender
	lock    *redislock.Locker
	alerts  RunAlerter
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger

	retryDelay time.Duration
	pacing     time.Duration
	budget     time.Duration
	now        func() time.Time
}

// NewScheduler creates a reminder scheduler.
func NewScheduler(store *Store, runs *runlog.Store, sender messaging.Sender, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		store:      store,
		runs:       runs,
		sender:     sender,
		logger:     logger.Named("reminder"),
		retryDelay: 2 * time.Second,
		pacing:     250 * time.Millisecond,
		budget:     5 * time.Minute,
		now:        time.Now,
	}
}

// WithLock serializes runs across instances via Redis.
func (s *Scheduler) WithLock(l *redislock.Locker) *Scheduler {
	s.lock = l
	return s
}

// WithAlerts enables operator alerts for failed and timed-out runs.
func (s *Scheduler) WithAlerts(a RunAlerter) *Scheduler {
	s.alerts = a
	return s
}

func (s *Scheduler) WithMetrics(m *metrics.SchedulingMetrics) *Scheduler {
	s.metrics = m
	return s
}

// WithDelays overrides the retry and pacing delays. Tests set both to zero.
func (s *Scheduler) WithDelays(retry, pacing time.Duration) *Scheduler {
	if retry >= 0 {
		s.retryDelay = retry
	}
	if pacing >= 0 {
		s.pacing = pacing
	}
	return s
}

// WithBudget bounds one run's total wall time. A run past its budget closes
// as TIMEOUT instead of staying RUNNING forever.
func (s *Scheduler) WithBudget(d time.Duration) *Scheduler {
	if d > 0 {
		s.budget = d
	}
	return s
}

// WithClock overrides the time source for tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	if now != nil {
		s.now = now
	}
	return s
}

// Options shape one run.
type Options struct {
	// Trigger tags the ledger row; zero value records as scheduled. A dry
	// run defaults to test instead.
	Trigger runlog.Trigger
	// Kind restricts the run to one reminder track; empty runs both.
	Kind Kind
	// AppointmentID restricts the candidate scan to one appointment.
	AppointmentID uuid.UUID
	// Force resends reminders whose sent or failed flags are already set.
	Force bool
	// DryRun renders and logs messages without sending or touching flags.
	DryRun bool
}

type workItem struct {
	kind Kind
	cand Candidate
}

// Run executes one reminder run and returns its closed ledger record. The
// ledger row is closed on every path, including panics and budget overruns.
func (s *Scheduler) Run(ctx context.Context, opts Options) (*runlog.Record, error) {
	jobName := opts.Kind.JobName()

	if s.lock == nil {
		return s.run(ctx, jobName, opts)
	}
	var rec *runlog.Record
	err := s.lock.WithLock(ctx, jobName, func(ctx context.Context) error {
		var err error
		rec, err = s.run(ctx, jobName, opts)
		return err
	})
	if errors.Is(err, redislock.ErrNotAcquired) {
		return nil, ErrAlreadyRunning
	}
	return rec, err
}

func (s *Scheduler) run(ctx context.Context, jobName string, opts Options) (rec *runlog.Record, err error) {
	ctx, span := tracer.Start(ctx, "reminder.Run")
	defer span.End()
	span.SetAttributes(attribute.String("job", jobName), attribute.Bool("dry_run", opts.DryRun))

	trigger := opts.Trigger
	if trigger == "" {
		trigger = runlog.TriggerScheduled
	}
	if opts.DryRun && trigger == runlog.TriggerScheduled {
		trigger = runlog.TriggerTest
	}

	open, err := s.runs.Open(ctx, jobName, trigger)
	if err != nil {
		return nil, fmt.Errorf("reminder: open run: %w", err)
	}
	started := s.now()

	runCtx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	var counts runlog.Counts
	status := runlog.StatusSuccess
	errDetail := ""

	// The ledger row must close no matter how the run dies. Closing uses a
	// fresh context: runCtx may already be expired when we get here.
	finish := func() (*runlog.Record, error) {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if err := s.runs.Close(closeCtx, open.ID, status, counts, errDetail); err != nil {
			s.logger.Error("run ledger close failed", "run_id", open.ID, "error", err)
			return nil, err
		}
		s.metrics.ObserveReminderRun(string(status), s.now().Sub(started).Seconds())
		rec, err := s.runs.Get(closeCtx, open.ID)
		if err != nil {
			return nil, err
		}
		if (status == runlog.StatusFailed || status == runlog.StatusTimeout) && s.alerts != nil {
			if alertErr := s.alerts.RunFailure(closeCtx, rec); alertErr != nil {
				s.logger.Warn("run failure alert failed", "run_id", open.ID, "error", alertErr)
			}
		}
		return rec, nil
	}

	defer func() {
		if p := recover(); p != nil {
			status = runlog.StatusFailed
			errDetail = fmt.Sprintf("panic: %v", p)
			s.logger.Error("reminder run panicked", "run_id", open.ID, "panic", p)
			rec, _ = finish()
			err = fmt.Errorf("reminder: run panicked: %v", p)
		}
	}()

	items, err := s.collect(runCtx, opts)
	if err != nil {
		status = runlog.StatusFailed
		errDetail = err.Error()
		if closed, ferr := finish(); ferr == nil {
			return closed, err
		}
		return nil, err
	}

	s.logger.Info("reminder run started",
		"run_id", open.ID, "job", jobName, "trigger", trigger,
		"candidates", len(items), "force", opts.Force, "dry_run", opts.DryRun)

	for i := range items {
		if runCtx.Err() != nil {
			status = runlog.StatusTimeout
			errDetail = "run budget exhausted"
			s.logger.Warn("reminder run out of budget",
				"run_id", open.ID, "processed", counts.Checked, "remaining", len(items)-i)
			break
		}
		if i > 0 {
			sleepCtx(runCtx, s.pacing)
		}
		s.processOne(runCtx, &items[i], opts.DryRun, &counts)
	}

	if status != runlog.StatusTimeout {
		switch {
		case counts.Failed == 0:
			status = runlog.StatusSuccess
		case counts.Sent > 0:
			status = runlog.StatusPartial
		default:
			status = runlog.StatusFailed
			errDetail = "all sends failed"
		}
	}

	return finish()
}

// collect gathers and orders this run's work: both tracks unless filtered,
// earliest slot first, deduplicated by appointment id. An appointment cannot
// logically sit in both windows, but the dedupe guards clock-skew edges.
func (s *Scheduler) collect(ctx context.Context, opts Options) ([]workItem, error) {
	kinds := Kinds()
	if opts.Kind != "" {
		kinds = []Kind{opts.Kind}
	}

	listOpts := ListOptions{IncludeFlagged: opts.Force, AppointmentID: opts.AppointmentID}
	now := s.now().UTC()

	var items []workItem
	seen := make(map[uuid.UUID]bool)
	for _, k := range kinds {
		cands, err := s.store.ListDue(ctx, k, WindowFor(k, now), now, listOpts)
		if err != nil {
			return nil, fmt.Errorf("reminder: collect %s: %w", k, err)
		}
		for _, c := range cands {
			if seen[c.AppointmentID] {
				continue
			}
			seen[c.AppointmentID] = true
			items = append(items, workItem{kind: k, cand: c})
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].cand.StartsAt.Before(items[j].cand.StartsAt)
	})
	return items, nil
}

// processOne attempts one delivery with exactly one retry. Failures are
// absorbed: they mark the appointment and the tallies, never the run.
func (s *Scheduler) processOne(ctx context.Context, item *workItem, dryRun bool, counts *runlog.Counts) {
	counts.Checked++
	c := &item.cand

	body, err := RenderMessage(item.kind, c)
	if err != nil {
		// A render failure is deterministic; retrying cannot help.
		s.failCandidate(ctx, item, err, counts, dryRun)
		return
	}

	if dryRun {
		counts.Sent++
		s.logger.Info("dry run: reminder rendered",
			"appointment_id", c.AppointmentID, "kind", item.kind, "to", c.Phone, "body", body)
		return
	}

	req := messaging.SendRequest{
		To:            c.Phone,
		Body:          body,
		Channel:       c.Channel,
		Kind:          "reminder_" + string(item.kind),
		ClinicID:      c.ClinicID,
		AppointmentID: c.AppointmentID,
	}

	var sendErr error
	for attempt := 1; attempt <= 2; attempt++ {
		if attempt > 1 {
			counts.Retried++
			sleepCtx(ctx, s.retryDelay)
		}
		if _, sendErr = s.sender.Send(ctx, req); sendErr == nil {
			break
		}
		s.logger.Warn("reminder send attempt failed",
			"appointment_id", c.AppointmentID, "kind", item.kind, "attempt", attempt, "error", sendErr)
	}
	if sendErr != nil {
		s.failCandidate(ctx, item, sendErr, counts, false)
		return
	}

	if err := s.store.MarkSent(ctx, c.AppointmentID, item.kind, s.now().UTC()); err != nil {
		// The reminder went out; a flag write failure must not count the
		// candidate as unsent or the next run would double-send.
		s.logger.Error("reminder sent but flag write failed",
			"appointment_id", c.AppointmentID, "kind", item.kind, "error", err)
	}
	counts.Sent++
	s.metrics.ObserveReminderSend(string(item.kind), "sent")
	s.logger.Info("reminder sent",
		"appointment_id", c.AppointmentID, "kind", item.kind, "starts_at", c.StartsAt)
}

func (s *Scheduler) failCandidate(ctx context.Context, item *workItem, cause error, counts *runlog.Counts, dryRun bool) {
	counts.Failed++
	s.metrics.ObserveReminderSend(string(item.kind), "failed")
	s.logger.Error("reminder delivery failed",
		"appointment_id", item.cand.AppointmentID, "kind", item.kind, "error", cause)
	if dryRun {
		return
	}
	if err := s.store.MarkFailed(ctx, item.cand.AppointmentID, item.kind, cause.Error(), s.now().UTC()); err != nil {
		s.logger.Error("reminder failure flag write failed",
			"appointment_id", item.cand.AppointmentID, "kind", item.kind, "error", err)
	}
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
