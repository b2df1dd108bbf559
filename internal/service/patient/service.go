package patient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/queue-api/internal/email"
	"github.com/jwalitptl/queue-api/internal/exporter"
	"github.com/jwalitptl/queue-api/internal/importer"
	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
	"github.com/jwalitptl/queue-api/internal/service/doctor"
	apperrors "github.com/jwalitptl/queue-api/pkg/errors"
	"github.com/jwalitptl/queue-api/pkg/logger"
	"github.com/jwalitptl/queue-api/pkg/messaging"
	"github.com/jwalitptl/queue-api/pkg/metrics"
)

type PatientService interface {
	Create(ctx context.Context, doctorID uuid.UUID, req *model.CreatePatientRequest) (*model.Patient, error)
	Get(ctx context.Context, id, doctorID uuid.UUID) (*model.Patient, error)
	List(ctx context.Context, doctorID uuid.UUID, filters *model.PatientFilters) ([]*model.Patient, error)
	Update(ctx context.Context, id, doctorID uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error)
	Delete(ctx context.Context, id, doctorID uuid.UUID) error
	Stats(ctx context.Context, doctorID uuid.UUID) (*model.PatientStats, error)
	Import(ctx context.Context, doctorID uuid.UUID, src ImportSource) (*model.ImportResult, error)
	ExportCSV(ctx context.Context, doctorID uuid.UUID) ([]byte, error)
	ExportXLSX(ctx context.Context, doctorID uuid.UUID) ([]byte, error)
	EmailExport(ctx context.Context, doctorID uuid.UUID) (string, error)
}

// ActionRecorder appends to a doctor's action history.
type ActionRecorder interface {
	RecordAction(ctx context.Context, doctorID uuid.UUID, action string, details interface{})
}

// ImportSource is a staged upload. Path must carry the original extension;
// the caller removes the file once Import returns.
type ImportSource struct {
	Path     string
	FileName string
}

type Service struct {
	repo      repository.PatientRepository
	directory doctor.Directory
	persister *importer.Persister
	emailSvc  email.Service
	publisher messaging.Publisher
	actions   ActionRecorder
	metrics   *metrics.Metrics
	logger    *logger.Logger
	now       func() time.Time
}

func NewService(
	repo repository.PatientRepository,
	directory doctor.Directory,
	emailSvc email.Service,
	publisher messaging.Publisher,
	actions ActionRecorder,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if publisher == nil {
		publisher = messaging.NoopPublisher{}
	}
	return &Service{
		repo:      repo,
		directory: directory,
		persister: importer.NewPersister(repo, log),
		emailSvc:  emailSvc,
		publisher: publisher,
		actions:   actions,
		metrics:   m,
		logger:    log,
		now:       time.Now,
	}
}

func (s *Service) Create(ctx context.Context, doctorID uuid.UUID, req *model.CreatePatientRequest) (*model.Patient, error) {
	owner, err := s.directory.FindByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	fullName := strings.TrimSpace(req.FullName)
	phone := strings.TrimSpace(req.Phone)
	if fullName == "" || phone == "" {
		return nil, apperrors.Validation("full_name and phone are required")
	}
	if req.DelayMinutes < 0 {
		return nil, apperrors.Validation("delay_minutes cannot be negative")
	}

	scheduled := strings.TrimSpace(req.ScheduledTime)
	if scheduled == "" {
		scheduled = s.now().UTC().Format(time.RFC3339)
	}
	estimated := strings.TrimSpace(req.EstimatedTime)
	if estimated == "" {
		estimated = scheduled
	}

	patient := &model.Patient{
		FullName:      fullName,
		Phone:         phone,
		ScheduledTime: scheduled,
		EstimatedTime: estimated,
		DoctorID:      owner.ID,
		DoctorName:    owner.FullName,
		Status:        model.PatientStatusPending,
		DelayMinutes:  req.DelayMinutes,
		Notes:         trimmedOrNil(req.Notes),
	}
	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *Service) Get(ctx context.Context, id, doctorID uuid.UUID) (*model.Patient, error) {
	return s.repo.Get(ctx, id, doctorID)
}

func (s *Service) List(ctx context.Context, doctorID uuid.UUID, filters *model.PatientFilters) ([]*model.Patient, error) {
	if filters != nil && filters.Status != "" && !filters.Status.Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("unknown status %q", filters.Status))
	}
	return s.repo.List(ctx, doctorID, filters)
}

func (s *Service) Update(ctx context.Context, id, doctorID uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id, doctorID)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		if patient.FullName = strings.TrimSpace(*req.FullName); patient.FullName == "" {
			return nil, apperrors.Validation("full_name cannot be empty")
		}
	}
	if req.Phone != nil {
		if patient.Phone = strings.TrimSpace(*req.Phone); patient.Phone == "" {
			return nil, apperrors.Validation("phone cannot be empty")
		}
	}
	if req.ScheduledTime != nil {
		patient.ScheduledTime = strings.TrimSpace(*req.ScheduledTime)
	}
	if req.EstimatedTime != nil {
		patient.EstimatedTime = strings.TrimSpace(*req.EstimatedTime)
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, apperrors.Validation(fmt.Sprintf("unknown status %q", *req.Status))
		}
		patient.Status = *req.Status
	}
	if req.DelayMinutes != nil {
		if *req.DelayMinutes < 0 {
			return nil, apperrors.Validation("delay_minutes cannot be negative")
		}
		patient.DelayMinutes = *req.DelayMinutes
	}
	if req.Notes != nil {
		patient.Notes = trimmedOrNil(req.Notes)
	}

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *Service) Delete(ctx context.Context, id, doctorID uuid.UUID) error {
	return s.repo.Delete(ctx, id, doctorID)
}

func (s *Service) Stats(ctx context.Context, doctorID uuid.UUID) (*model.PatientStats, error) {
	patients, err := s.repo.List(ctx, doctorID, nil)
	if err != nil {
		return nil, err
	}

	stats := &model.PatientStats{
		Total:    len(patients),
		ByStatus: make(map[model.PatientStatus]int, len(model.PatientStatuses)),
	}
	for _, st := range model.PatientStatuses {
		stats.ByStatus[st] = 0
	}
	for _, p := range patients {
		stats.ByStatus[p.Status]++
		if p.NotificationSent {
			stats.NotificationSent++
		}
	}
	return stats, nil
}

type importedEvent struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	FileName  string    `json:"file_name"`
	Parsed    int       `json:"parsed"`
	Persisted int       `json:"persisted"`
}

// Import parses a staged file, normalizes its rows and stores them one by one.
// File-level and directory failures abort; row failures are counted.
func (s *Service) Import(ctx context.Context, doctorID uuid.UUID, src ImportSource) (*model.ImportResult, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(src.Path)), ".")

	result, err := s.doImport(ctx, doctorID, src)
	if result != nil {
		s.metrics.ObserveImport(format, result.Dropped, result.Persisted, result.Failed, err)
	} else {
		s.metrics.ObserveImport(format, 0, 0, 0, err)
	}
	if err != nil {
		return result, err
	}

	s.logger.Info("patients imported",
		"doctor_id", doctorID.String(),
		"file", result.FileName,
		"parsed", result.Parsed,
		"persisted", result.Persisted,
	)
	s.actions.RecordAction(ctx, doctorID, model.ActionPatientsImport, map[string]interface{}{
		"file_name": result.FileName,
		"parsed":    result.Parsed,
		"persisted": result.Persisted,
	})
	if err := s.publisher.Publish(ctx, messaging.TopicPatientsImported, importedEvent{
		DoctorID:  doctorID,
		FileName:  result.FileName,
		Parsed:    result.Parsed,
		Persisted: result.Persisted,
	}); err != nil {
		s.logger.Error(err, "failed to publish import event")
	}
	return result, nil
}

func (s *Service) doImport(ctx context.Context, doctorID uuid.UUID, src ImportSource) (*model.ImportResult, error) {
	owner, err := s.directory.FindByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	fileName := src.FileName
	if fileName == "" {
		fileName = filepath.Base(src.Path)
	}

	rr, err := importer.Open(src.Path)
	if err != nil {
		return nil, err
	}
	defer rr.Close()

	rows, err := importer.ReadAll(rr)
	if err != nil {
		return nil, apperrors.Read(fileName, err)
	}

	accepted, dropped := importer.NormalizeAll(rows, importer.Owner{
		DoctorID:       owner.ID,
		DoctorName:     owner.FullName,
		SourceFileName: fileName,
	}, s.now())

	result := &model.ImportResult{
		FileName: fileName,
		Parsed:   len(accepted),
		Dropped:  len(dropped),
		Patients: []*model.Patient{},
	}

	batch, err := s.persister.Persist(ctx, accepted)
	if batch != nil {
		result.Persisted = len(batch.Persisted)
		result.Failed = len(batch.Failures)
		if batch.Persisted != nil {
			result.Patients = batch.Persisted
		}
	}
	return result, err
}

// ExportCSV returns the doctor's queue as CSV ordered by scheduled time.
func (s *Service) ExportCSV(ctx context.Context, doctorID uuid.UUID) ([]byte, error) {
	return s.export(ctx, doctorID, "csv", exporter.WriteCSV)
}

func (s *Service) ExportXLSX(ctx context.Context, doctorID uuid.UUID) ([]byte, error) {
	return s.export(ctx, doctorID, "xlsx", exporter.WriteXLSX)
}

func (s *Service) export(ctx context.Context, doctorID uuid.UUID, format string, write func(io.Writer, []*model.Patient) error) ([]byte, error) {
	data, err := func() ([]byte, error) {
		patients, err := s.repo.List(ctx, doctorID, nil)
		if err != nil {
			return nil, err
		}
		if len(patients) == 0 {
			return nil, apperrors.NoRecords()
		}
		var buf bytes.Buffer
		if err := write(&buf, patients); err != nil {
			return nil, fmt.Errorf("failed to export patients: %w", err)
		}
		return buf.Bytes(), nil
	}()
	s.metrics.ObserveExport(format, err)
	return data, err
}

// EmailExport mails the spreadsheet export to the doctor and returns the recipient.
func (s *Service) EmailExport(ctx context.Context, doctorID uuid.UUID) (string, error) {
	owner, err := s.directory.FindByID(ctx, doctorID)
	if err != nil {
		return "", err
	}
	data, err := s.ExportXLSX(ctx, doctorID)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("patients-%s.xlsx", s.now().Format("2006-01-02"))
	body := fmt.Sprintf("Hello %s,\n\nPlease find attached the export of your patient list.\n", owner.FullName)
	if err := s.emailSvc.SendWithAttachment(ctx, owner.Email, "Patient list export", body, email.Attachment{
		Name:        name,
		ContentType: exporter.ContentTypeXLSX,
		Data:        data,
	}); err != nil {
		return "", err
	}
	return owner.Email, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
