package doctor

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jwalitptl/queue-api/internal/email"
	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
)

var _ repository.DoctorRepository = (*mockDoctorRepository)(nil)

type mockDoctorRepository struct {
	CreateFunc            func(ctx context.Context, doctor *model.Doctor) error
	GetFunc               func(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
	GetByEmailFunc        func(ctx context.Context, email string) (*model.Doctor, error)
	UpdateFunc            func(ctx context.Context, doctor *model.Doctor) error
	ListFunc              func(ctx context.Context) ([]*model.Doctor, error)
	IncrementSMSCountFunc func(ctx context.Context, id uuid.UUID, delta int) error
	StatsFunc             func(ctx context.Context) (*model.DoctorStats, error)
	ListActionsFunc       func(ctx context.Context, doctorID uuid.UUID) ([]*model.DoctorAction, error)

	actions   []*model.DoctorAction
	getCalls  int
	updateLog []model.Doctor
}

func (m *mockDoctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, doctor)
	}
	doctor.ID = uuid.New()
	return nil
}

func (m *mockDoctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	m.getCalls++
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, errors.New("GetFunc not implemented in mock")
}

func (m *mockDoctorRepository) GetByEmail(ctx context.Context, email string) (*model.Doctor, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, errors.New("GetByEmailFunc not implemented in mock")
}

func (m *mockDoctorRepository) Update(ctx context.Context, doctor *model.Doctor) error {
	m.updateLog = append(m.updateLog, *doctor)
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, doctor)
	}
	return nil
}

func (m *mockDoctorRepository) List(ctx context.Context) ([]*model.Doctor, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

func (m *mockDoctorRepository) IncrementSMSCount(ctx context.Context, id uuid.UUID, delta int) error {
	if m.IncrementSMSCountFunc != nil {
		return m.IncrementSMSCountFunc(ctx, id, delta)
	}
	return nil
}

func (m *mockDoctorRepository) Stats(ctx context.Context) (*model.DoctorStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	return &model.DoctorStats{}, nil
}

func (m *mockDoctorRepository) AddAction(_ context.Context, action *model.DoctorAction) error {
	m.actions = append(m.actions, action)
	return nil
}

func (m *mockDoctorRepository) ListActions(ctx context.Context, doctorID uuid.UUID) ([]*model.DoctorAction, error) {
	if m.ListActionsFunc != nil {
		return m.ListActionsFunc(ctx, doctorID)
	}
	return m.actions, nil
}

type mockEmailService struct {
	activated []string
	err       error
}

func (m *mockEmailService) SendAccountActivated(_ context.Context, to, _ string) error {
	m.activated = append(m.activated, to)
	return m.err
}

func (m *mockEmailService) SendWithAttachment(context.Context, string, string, string, email.Attachment) error {
	return m.err
}
