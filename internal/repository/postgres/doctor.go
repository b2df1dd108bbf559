package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
)

const doctorColumns = `id, full_name, email, password_hash, address, postal_code, city, specialties,
	is_admin, is_active, is_archived, last_login_at, sms_sent_count, created_at, updated_at`

type doctorRepository struct {
	db *sqlx.DB
}

func NewDoctorRepository(db *sqlx.DB) repository.DoctorRepository {
	return &doctorRepository{db: db}
}

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (` + doctorColumns + `)
		VALUES (:id, :full_name, :email, :password_hash, :address, :postal_code, :city, :specialties,
			:is_admin, :is_active, :is_archived, :last_login_at, :sms_sent_count, :created_at, :updated_at)
	`
	if doctor.ID == uuid.Nil {
		doctor.ID = uuid.New()
	}
	doctor.Email = strings.ToLower(strings.TrimSpace(doctor.Email))
	doctor.CreatedAt = time.Now()
	doctor.UpdatedAt = doctor.CreatedAt

	if _, err := r.db.NamedExecContext(ctx, query, doctor); err != nil {
		return fmt.Errorf("failed to create doctor: %w", mapError("doctor", err))
	}
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	var doctor model.Doctor
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE id = $1`
	if err := r.db.GetContext(ctx, &doctor, query, id); err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", mapError("doctor", err))
	}
	return &doctor, nil
}

func (r *doctorRepository) GetByEmail(ctx context.Context, email string) (*model.Doctor, error) {
	var doctor model.Doctor
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE email = $1`
	if err := r.db.GetContext(ctx, &doctor, query, strings.ToLower(strings.TrimSpace(email))); err != nil {
		return nil, fmt.Errorf("failed to get doctor by email: %w", mapError("doctor", err))
	}
	return &doctor, nil
}

func (r *doctorRepository) Update(ctx context.Context, doctor *model.Doctor) error {
	query := `
		UPDATE doctors SET
			full_name = :full_name, password_hash = :password_hash, address = :address,
			postal_code = :postal_code, city = :city, specialties = :specialties,
			is_active = :is_active, is_archived = :is_archived, last_login_at = :last_login_at,
			updated_at = :updated_at
		WHERE id = :id
	`
	doctor.UpdatedAt = time.Now()

	res, err := r.db.NamedExecContext(ctx, query, doctor)
	if err != nil {
		return fmt.Errorf("failed to update doctor: %w", mapError("doctor", err))
	}
	return mustAffect("doctor", res)
}

func (r *doctorRepository) List(ctx context.Context) ([]*model.Doctor, error) {
	doctors := []*model.Doctor{}
	query := `SELECT ` + doctorColumns + ` FROM doctors ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &doctors, query); err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}

func (r *doctorRepository) IncrementSMSCount(ctx context.Context, id uuid.UUID, delta int) error {
	query := `UPDATE doctors SET sms_sent_count = sms_sent_count + $1, updated_at = NOW() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, delta, id)
	if err != nil {
		return fmt.Errorf("failed to increment sms count: %w", err)
	}
	return mustAffect("doctor", res)
}

func (r *doctorRepository) Stats(ctx context.Context) (*model.DoctorStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM doctors) AS total_doctors,
			(SELECT COUNT(*) FROM doctors WHERE is_active) AS active_doctors,
			(SELECT COUNT(*) FROM doctors WHERE is_archived) AS archived_doctors,
			(SELECT COUNT(*) FROM patients) AS total_patients,
			(SELECT COALESCE(SUM(sms_sent_count), 0) FROM doctors) AS total_sms
	`
	var stats model.DoctorStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to get doctor stats: %w", err)
	}
	return &stats, nil
}

func (r *doctorRepository) AddAction(ctx context.Context, action *model.DoctorAction) error {
	query := `
		INSERT INTO doctor_actions (id, doctor_id, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}
	action.CreatedAt = time.Now()
	details := "{}"
	if len(action.Details) > 0 {
		details = string(action.Details)
	}

	_, err := r.db.ExecContext(ctx, query, action.ID, action.DoctorID, action.Action, details, action.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add doctor action: %w", mapError("doctor action", err))
	}
	return nil
}

func (r *doctorRepository) ListActions(ctx context.Context, doctorID uuid.UUID) ([]*model.DoctorAction, error) {
	actions := []*model.DoctorAction{}
	query := `
		SELECT id, doctor_id, action, details, created_at
		FROM doctor_actions
		WHERE doctor_id = $1
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &actions, query, doctorID); err != nil {
		return nil, fmt.Errorf("failed to list doctor actions: %w", err)
	}
	return actions, nil
}
