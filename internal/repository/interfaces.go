package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/queue-api/internal/model"
)

// All repository interfaces in one file
type (
	// PatientRepository is the record store. Every read and write is scoped by doctor.
	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id, doctorID uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		Delete(ctx context.Context, id, doctorID uuid.UUID) error
		List(ctx context.Context, doctorID uuid.UUID, filters *model.PatientFilters) ([]*model.Patient, error)
		Count(ctx context.Context) (int, error)
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		GetByEmail(ctx context.Context, email string) (*model.Doctor, error)
		Update(ctx context.Context, doctor *model.Doctor) error
		List(ctx context.Context) ([]*model.Doctor, error)
		IncrementSMSCount(ctx context.Context, id uuid.UUID, delta int) error
		Stats(ctx context.Context) (*model.DoctorStats, error)
		AddAction(ctx context.Context, action *model.DoctorAction) error
		ListActions(ctx context.Context, doctorID uuid.UUID) ([]*model.DoctorAction, error)
	}
)
