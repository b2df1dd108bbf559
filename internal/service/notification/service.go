package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
	"github.com/jwalitptl/queue-api/internal/sms"
	apperrors "github.com/jwalitptl/queue-api/pkg/errors"
	"github.com/jwalitptl/queue-api/pkg/logger"
	"github.com/jwalitptl/queue-api/pkg/messaging"
)

type Service interface {
	BulkNotify(ctx context.Context, doctorID uuid.UUID) (*BulkResult, error)
	SendOne(ctx context.Context, id, doctorID uuid.UUID, message string) (*model.Patient, error)
}

// SMSCounter tracks how many messages a doctor has sent.
type SMSCounter interface {
	IncrementSMSCount(ctx context.Context, id uuid.UUID, delta int) error
}

type ActionRecorder interface {
	RecordAction(ctx context.Context, doctorID uuid.UUID, action string, details interface{})
}

// Detail is the outcome for one candidate of a bulk run.
type Detail struct {
	PatientID uuid.UUID `json:"patient_id"`
	FullName  string    `json:"full_name"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

type BulkResult struct {
	TotalCandidates int      `json:"total_candidates"`
	SentCount       int      `json:"sent_count"`
	Details         []Detail `json:"details"`
}

type service struct {
	repo       repository.PatientRepository
	dispatcher sms.Dispatcher
	counter    SMSCounter
	actions    ActionRecorder
	publisher  messaging.Publisher
	logger     *logger.Logger
	now        func() time.Time
}

func NewService(
	repo repository.PatientRepository,
	dispatcher sms.Dispatcher,
	counter SMSCounter,
	actions ActionRecorder,
	publisher messaging.Publisher,
	log *logger.Logger,
) Service {
	if log == nil {
		log = logger.Nop()
	}
	if publisher == nil {
		publisher = messaging.NoopPublisher{}
	}
	return &service{
		repo:       repo,
		dispatcher: dispatcher,
		counter:    counter,
		actions:    actions,
		publisher:  publisher,
		logger:     log,
		now:        time.Now,
	}
}

// DelayMessage is the text sent to a patient whose appointment runs late.
func DelayMessage(p *model.Patient) string {
	if p.DelayMinutes > 0 {
		return fmt.Sprintf("Your appointment scheduled at %s is delayed by %d minutes.", p.ScheduledTime, p.DelayMinutes)
	}
	return fmt.Sprintf("Your appointment scheduled at %s is delayed.", p.ScheduledTime)
}

type notifiedEvent struct {
	DoctorID        uuid.UUID `json:"doctor_id"`
	TotalCandidates int       `json:"total_candidates"`
	SentCount       int       `json:"sent_count"`
}

// BulkNotify messages every pending, not yet notified patient of the doctor.
// A failed dispatch or save is recorded in the details and the scan goes on.
func (s *service) BulkNotify(ctx context.Context, doctorID uuid.UUID) (*BulkResult, error) {
	notSent := false
	candidates, err := s.repo.List(ctx, doctorID, &model.PatientFilters{
		Status:           model.PatientStatusPending,
		NotificationSent: &notSent,
	})
	if err != nil {
		return nil, err
	}

	result := &BulkResult{
		TotalCandidates: len(candidates),
		Details:         make([]Detail, 0, len(candidates)),
	}
	for _, p := range candidates {
		if err := ctx.Err(); err != nil {
			s.finish(ctx, doctorID, result)
			return result, err
		}

		detail := Detail{PatientID: p.ID, FullName: p.FullName}
		if err := s.notify(ctx, p, DelayMessage(p)); err != nil {
			s.logger.Warn("delay notification failed",
				"patient_id", p.ID.String(),
				"error", err.Error(),
			)
			detail.Error = err.Error()
		} else {
			detail.Success = true
			result.SentCount++
		}
		result.Details = append(result.Details, detail)
	}

	s.finish(ctx, doctorID, result)
	return result, nil
}

func (s *service) finish(ctx context.Context, doctorID uuid.UUID, result *BulkResult) {
	if result.SentCount > 0 {
		if err := s.counter.IncrementSMSCount(ctx, doctorID, result.SentCount); err != nil {
			s.logger.Error(err, "failed to update sms count", "doctor_id", doctorID.String())
		}
	}
	s.actions.RecordAction(ctx, doctorID, model.ActionBulkSMS, map[string]int{
		"total_candidates": result.TotalCandidates,
		"sent_count":       result.SentCount,
	})
	if err := s.publisher.Publish(ctx, messaging.TopicPatientsNotified, notifiedEvent{
		DoctorID:        doctorID,
		TotalCandidates: result.TotalCandidates,
		SentCount:       result.SentCount,
	}); err != nil {
		s.logger.Error(err, "failed to publish notification event")
	}
}

// SendOne messages a single patient with a caller supplied text.
func (s *service) SendOne(ctx context.Context, id, doctorID uuid.UUID, message string) (*model.Patient, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.Validation("message is required")
	}

	patient, err := s.repo.Get(ctx, id, doctorID)
	if err != nil {
		return nil, err
	}
	if err := s.notify(ctx, patient, message); err != nil {
		return nil, err
	}
	if err := s.counter.IncrementSMSCount(ctx, doctorID, 1); err != nil {
		s.logger.Error(err, "failed to update sms count", "doctor_id", doctorID.String())
	}
	return patient, nil
}

// notify dispatches then stamps the patient. Dispatch errors come back as DispatchError.
func (s *service) notify(ctx context.Context, p *model.Patient, message string) error {
	if err := s.dispatcher.Send(ctx, p.Phone, message); err != nil {
		return apperrors.Dispatch(err)
	}

	sentAt := s.now()
	p.NotificationSent = true
	p.NotificationSentAt = &sentAt
	p.NotificationMessage = &message
	if err := s.repo.Update(ctx, p); err != nil {
		return fmt.Errorf("message sent but not recorded: %w", err)
	}
	return nil
}
