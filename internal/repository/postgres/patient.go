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

const patientColumns = `id, full_name, phone, scheduled_time, estimated_time, doctor_id, doctor_name,
	source_file_name, imported_at, status, notification_sent, notification_sent_at,
	notification_message, delay_minutes, notes, created_at, updated_at`

type patientRepository struct {
	db *sqlx.DB
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{db: db}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (` + patientColumns + `)
		VALUES (:id, :full_name, :phone, :scheduled_time, :estimated_time, :doctor_id, :doctor_name,
			:source_file_name, :imported_at, :status, :notification_sent, :notification_sent_at,
			:notification_message, :delay_minutes, :notes, :created_at, :updated_at)
	`
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = patient.CreatedAt

	if _, err := r.db.NamedExecContext(ctx, query, patient); err != nil {
		return fmt.Errorf("failed to create patient: %w", mapError("patient", err))
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id, doctorID uuid.UUID) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1 AND doctor_id = $2`
	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, id, doctorID); err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", mapError("patient", err))
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients SET
			full_name = :full_name, phone = :phone, scheduled_time = :scheduled_time,
			estimated_time = :estimated_time, status = :status,
			notification_sent = :notification_sent, notification_sent_at = :notification_sent_at,
			notification_message = :notification_message, delay_minutes = :delay_minutes,
			notes = :notes, updated_at = :updated_at
		WHERE id = :id AND doctor_id = :doctor_id
	`
	patient.UpdatedAt = time.Now()

	res, err := r.db.NamedExecContext(ctx, query, patient)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", mapError("patient", err))
	}
	return mustAffect("patient", res)
}

func (r *patientRepository) Delete(ctx context.Context, id, doctorID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM patients WHERE id = $1 AND doctor_id = $2`, id, doctorID)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	return mustAffect("patient", res)
}

func (r *patientRepository) List(ctx context.Context, doctorID uuid.UUID, filters *model.PatientFilters) ([]*model.Patient, error) {
	conditions := []string{"doctor_id = $1"}
	args := []interface{}{doctorID}

	if filters != nil {
		if filters.Status != "" {
			args = append(args, filters.Status)
			conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
		}
		if filters.NotificationSent != nil {
			args = append(args, *filters.NotificationSent)
			conditions = append(conditions, fmt.Sprintf("notification_sent = $%d", len(args)))
		}
	}

	query := `SELECT ` + patientColumns + ` FROM patients WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY scheduled_time ASC, created_at ASC`

	patients := []*model.Patient{}
	if err := r.db.SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (r *patientRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM patients`); err != nil {
		return 0, fmt.Errorf("failed to count patients: %w", err)
	}
	return n, nil
}
