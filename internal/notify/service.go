// Package notify delivers the human-facing side effects of scheduling:
// patient notifications over SMS/WhatsApp and operator alerts over email.
// Everything here is best-effort; callers treat failures as log-worthy, not
// fatal.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caredesk/clinic-scheduling/internal/clinic"
	"github.com/caredesk/clinic-scheduling/internal/messaging"
	"github.com/caredesk/clinic-scheduling/internal/patient"
	"github.com/caredesk/clinic-scheduling/internal/runlog"
	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

// PatientDirectory resolves patient contact details.
type PatientDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// ClinicDirectory resolves clinic display details.
type ClinicDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*clinic.Clinic, error)
}

// OpsConfig controls operator alerting.
type OpsConfig struct {
	Recipients []string
	Enabled    bool
}

// Service sends scheduling notifications.
type Service struct {
	sms      messaging.Sender
	email    EmailSender
	patients PatientDirectory
	clinics  ClinicDirectory
	ops      OpsConfig
	logger   *logging.Logger
}

// NewService creates a notification service. sms and email may be nil; the
// corresponding notifications become no-ops.
func NewService(sms messaging.Sender, email EmailSender, patients PatientDirectory, clinics ClinicDirectory, ops OpsConfig, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		sms:      sms,
		email:    email,
		patients: patients,
		clinics:  clinics,
		ops:      ops,
		logger:   logger.Named("notify"),
	}
}

// WaitlistFilled tells a patient a slot opened up and was booked for them.
func (s *Service) WaitlistFilled(ctx context.Context, patientID, clinicID uuid.UUID, date time.Time, startTime string) error {
	if s.sms == nil {
		s.logger.Debug("sms sender not configured, skipping waitlist notification")
		return nil
	}
	p, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return fmt.Errorf("notify: waitlist filled: %w", err)
	}
	cl, err := s.clinics.Get(ctx, clinicID)
	if err != nil {
		return fmt.Errorf("notify: waitlist filled: %w", err)
	}

	body := fmt.Sprintf(
		"Good news %s! A spot opened up at %s on %s at %s and we booked it for you. Reply CANCEL if you can no longer make it.",
		p.Name, cl.Name, date.Format("Monday, January 2"), startTime)

	_, err = s.sms.Send(ctx, messaging.SendRequest{
		To:       p.Phone,
		Body:     body,
		Channel:  p.PreferredChannel,
		Kind:     "waitlist_fill",
		ClinicID: clinicID,
	})
	if err != nil {
		return fmt.Errorf("notify: waitlist filled: %w", err)
	}
	s.logger.Info("waitlist fill notification sent", "patient_id", patientID, "clinic_id", clinicID)
	return nil
}

// RunFailure alerts operators that a reminder run ended badly. Recipients
// are configured globally; one bounced address does not block the others.
func (s *Service) RunFailure(ctx context.Context, rec *runlog.Record) error {
	if !s.ops.Enabled || s.email == nil || len(s.ops.Recipients) == 0 {
		s.logger.Debug("ops alerts disabled, skipping run failure alert", "run_id", rec.ID)
		return nil
	}

	subject := fmt.Sprintf("Reminder run %s: %s", rec.JobName, rec.Status)
	finished := "still open"
	if rec.FinishedAt != nil {
		finished = rec.FinishedAt.Format(time.RFC3339)
	}
	body := fmt.Sprintf(`Reminder run %s finished with status %s.

Job:      %s
Trigger:  %s
Started:  %s
Finished: %s
Checked:  %d
Sent:     %d
Failed:   %d
Retried:  %d
Error:    %s

Inspect the run ledger for details.`,
		rec.ID, rec.Status, rec.JobName, rec.Trigger,
		rec.StartedAt.Format(time.RFC3339), finished,
		rec.Counts.Checked, rec.Counts.Sent, rec.Counts.Failed, rec.Counts.Retried,
		rec.Error)

	var errs []error
	for _, to := range s.ops.Recipients {
		if err := s.email.Send(ctx, EmailMessage{To: to, Subject: subject, Body: body}); err != nil {
			s.logger.Error("run failure alert send failed", "to", to, "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: run failure alert: %w", errors.Join(errs...))
	}
	s.logger.Info("run failure alert sent", "run_id", rec.ID, "recipients", len(s.ops.Recipients))
	return nil
}
