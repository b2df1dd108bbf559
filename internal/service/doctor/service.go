package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/queue-api/internal/config"
	"github.com/jwalitptl/queue-api/internal/email"
	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
	apperrors "github.com/jwalitptl/queue-api/pkg/errors"
	"github.com/jwalitptl/queue-api/pkg/logger"
	"github.com/jwalitptl/queue-api/pkg/security"
)

type DoctorService interface {
	Register(ctx context.Context, req *model.RegisterDoctorRequest) (*model.Doctor, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, req *model.UpdateDoctorRequest) (*model.Doctor, error)
	ListDoctors(ctx context.Context) ([]*model.Doctor, error)
	Activate(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
	SetArchived(ctx context.Context, id uuid.UUID, archived bool) (*model.Doctor, error)
	Stats(ctx context.Context) (*model.DoctorStats, error)
	History(ctx context.Context, id uuid.UUID) ([]*model.DoctorAction, error)
	RecordAction(ctx context.Context, doctorID uuid.UUID, action string, details interface{})
}

type Service struct {
	repo      repository.DoctorRepository
	hasher    security.PasswordHasher
	tokens    *security.TokenManager
	emailSvc  email.Service
	directory *CachedDirectory
	logger    *logger.Logger
	now       func() time.Time
}

func NewService(
	repo repository.DoctorRepository,
	hasher security.PasswordHasher,
	tokens *security.TokenManager,
	emailSvc email.Service,
	directory *CachedDirectory,
	log *logger.Logger,
) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:      repo,
		hasher:    hasher,
		tokens:    tokens,
		emailSvc:  emailSvc,
		directory: directory,
		logger:    log,
		now:       time.Now,
	}
}

func (s *Service) Register(ctx context.Context, req *model.RegisterDoctorRequest) (*model.Doctor, error) {
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, apperrors.Validation(fmt.Sprintf("password must be at least %d characters", security.MinPasswordLen))
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	doctor := &model.Doctor{
		FullName:     strings.TrimSpace(req.FullName),
		Email:        req.Email,
		PasswordHash: hash,
		Address:      strings.TrimSpace(req.Address),
		PostalCode:   strings.TrimSpace(req.PostalCode),
		City:         strings.TrimSpace(req.City),
		Specialties:  req.Specialties,
	}
	if err := s.repo.Create(ctx, doctor); err != nil {
		return nil, err
	}

	s.logger.Info("doctor registered", "doctor_id", doctor.ID.String())
	return doctor, nil
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	doctor, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized(errors.New("invalid credentials"))
		}
		return nil, err
	}

	if err := s.hasher.Compare(doctor.PasswordHash, req.Password); err != nil {
		return nil, apperrors.Unauthorized(errors.New("invalid credentials"))
	}
	if doctor.IsArchived {
		return nil, apperrors.Forbidden("account is archived")
	}
	if !doctor.IsActive {
		return nil, apperrors.Forbidden("account is awaiting activation")
	}

	now := s.now()
	doctor.LastLoginAt = &now
	if err := s.repo.Update(ctx, doctor); err != nil {
		return nil, fmt.Errorf("failed to update login timestamp: %w", err)
	}

	token, err := s.tokens.Generate(doctor)
	if err != nil {
		return nil, err
	}

	return &model.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.tokens.Expiry().Seconds()),
		Doctor:      doctor,
	}, nil
}

func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, req *model.UpdateDoctorRequest) (*model.Doctor, error) {
	doctor, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := []string{}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return nil, apperrors.Validation("full_name cannot be empty")
		}
		doctor.FullName = name
		changed = append(changed, "full_name")
	}
	if req.Address != nil {
		doctor.Address = strings.TrimSpace(*req.Address)
		changed = append(changed, "address")
	}
	if req.PostalCode != nil {
		doctor.PostalCode = strings.TrimSpace(*req.PostalCode)
		changed = append(changed, "postal_code")
	}
	if req.City != nil {
		doctor.City = strings.TrimSpace(*req.City)
		changed = append(changed, "city")
	}
	if req.Specialties != nil {
		doctor.Specialties = req.Specialties
		changed = append(changed, "specialties")
	}

	if err := s.repo.Update(ctx, doctor); err != nil {
		return nil, err
	}
	s.directory.Invalidate(id)
	s.RecordAction(ctx, id, model.ActionProfileUpdated, map[string]interface{}{"fields": changed})
	return doctor, nil
}

func (s *Service) ListDoctors(ctx context.Context) ([]*model.Doctor, error) {
	return s.repo.List(ctx)
}

// Activate enables a registered account and notifies the doctor by email.
func (s *Service) Activate(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	doctor, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doctor.IsActive {
		return doctor, nil
	}

	doctor.IsActive = true
	if err := s.repo.Update(ctx, doctor); err != nil {
		return nil, err
	}
	s.directory.Invalidate(id)
	s.RecordAction(ctx, id, model.ActionAccountActivate, nil)

	if err := s.emailSvc.SendAccountActivated(ctx, doctor.Email, doctor.FullName); err != nil {
		s.logger.Error(err, "failed to send activation email", "doctor_id", id.String())
	}
	return doctor, nil
}

func (s *Service) SetArchived(ctx context.Context, id uuid.UUID, archived bool) (*model.Doctor, error) {
	doctor, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doctor.IsAdmin && archived {
		return nil, apperrors.Forbidden("administrator accounts cannot be archived")
	}

	doctor.IsArchived = archived
	if err := s.repo.Update(ctx, doctor); err != nil {
		return nil, err
	}
	s.directory.Invalidate(id)
	s.RecordAction(ctx, id, model.ActionAccountArchive, map[string]bool{"archived": archived})
	return doctor, nil
}

func (s *Service) Stats(ctx context.Context) (*model.DoctorStats, error) {
	return s.repo.Stats(ctx)
}

func (s *Service) History(ctx context.Context, id uuid.UUID) ([]*model.DoctorAction, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListActions(ctx, id)
}

// RecordAction appends to the doctor's history. Failures are logged only.
func (s *Service) RecordAction(ctx context.Context, doctorID uuid.UUID, action string, details interface{}) {
	var raw []byte
	if details != nil {
		var err error
		if raw, err = json.Marshal(details); err != nil {
			s.logger.Error(err, "failed to encode action details", "action", action)
			raw = nil
		}
	}
	if err := s.repo.AddAction(ctx, &model.DoctorAction{
		DoctorID: doctorID,
		Action:   action,
		Details:  raw,
	}); err != nil {
		s.logger.Error(err, "failed to record doctor action", "doctor_id", doctorID.String(), "action", action)
	}
}

// EnsureDefaultAdmin creates the configured administrator when no account uses its email.
func (s *Service) EnsureDefaultAdmin(ctx context.Context, cfg config.AdminConfig) error {
	if cfg.Email == "" || cfg.Password == "" {
		s.logger.Warn("default admin not configured, skipping")
		return nil
	}

	_, err := s.repo.GetByEmail(ctx, cfg.Email)
	if err == nil {
		return nil
	}
	if !apperrors.HasCode(err, apperrors.ErrNotFound) {
		return fmt.Errorf("failed to look up default admin: %w", err)
	}

	hash, err := s.hasher.Hash(cfg.Password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	admin := &model.Doctor{
		FullName:     cfg.FullName,
		Email:        cfg.Email,
		PasswordHash: hash,
		IsAdmin:      true,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create default admin: %w", err)
	}
	s.logger.Info("default admin created", "email", admin.Email)
	return nil
}
