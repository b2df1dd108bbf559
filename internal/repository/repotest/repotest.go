// Package repotest provides in-memory repositories for tests.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
	apperrors "github.com/jwalitptl/queue-api/pkg/errors"
)

var (
	_ repository.PatientRepository = (*PatientStore)(nil)
	_ repository.DoctorRepository  = (*DoctorStore)(nil)
)

// PatientStore keeps patients in memory. CreateHook and UpdateHook, when set,
// run first and can fail the call.
type PatientStore struct {
	mu       sync.Mutex
	patients map[uuid.UUID]*model.Patient
	seq      int

	CreateHook func(p *model.Patient) error
	UpdateHook func(p *model.Patient) error
}

func NewPatientStore() *PatientStore {
	return &PatientStore{patients: map[uuid.UUID]*model.Patient{}}
}

func (s *PatientStore) Create(_ context.Context, p *model.Patient) error {
	if s.CreateHook != nil {
		if err := s.CreateHook(p); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.seq++
	// creation order breaks scheduled time ties
	p.CreatedAt = time.Unix(int64(s.seq), 0)
	p.UpdatedAt = p.CreatedAt
	cp := *p
	s.patients[p.ID] = &cp
	return nil
}

func (s *PatientStore) Get(_ context.Context, id, doctorID uuid.UUID) (*model.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[id]
	if !ok || p.DoctorID != doctorID {
		return nil, apperrors.NotFound("patient", nil)
	}
	cp := *p
	return &cp, nil
}

func (s *PatientStore) Update(_ context.Context, p *model.Patient) error {
	if s.UpdateHook != nil {
		if err := s.UpdateHook(p); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.patients[p.ID]
	if !ok || cur.DoctorID != p.DoctorID {
		return apperrors.NotFound("patient", nil)
	}
	cp := *p
	s.patients[p.ID] = &cp
	return nil
}

func (s *PatientStore) Delete(_ context.Context, id, doctorID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[id]
	if !ok || p.DoctorID != doctorID {
		return apperrors.NotFound("patient", nil)
	}
	delete(s.patients, id)
	return nil
}

func (s *PatientStore) List(_ context.Context, doctorID uuid.UUID, filters *model.PatientFilters) ([]*model.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.Patient{}
	for _, p := range s.patients {
		if p.DoctorID != doctorID {
			continue
		}
		if filters != nil {
			if filters.Status != "" && p.Status != filters.Status {
				continue
			}
			if filters.NotificationSent != nil && p.NotificationSent != *filters.NotificationSent {
				continue
			}
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledTime != out[j].ScheduledTime {
			return out[i].ScheduledTime < out[j].ScheduledTime
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *PatientStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.patients), nil
}

// DoctorStore keeps doctors and their action history in memory.
type DoctorStore struct {
	mu      sync.Mutex
	doctors map[uuid.UUID]*model.Doctor
	actions []*model.DoctorAction
}

func NewDoctorStore(doctors ...*model.Doctor) *DoctorStore {
	s := &DoctorStore{doctors: map[uuid.UUID]*model.Doctor{}}
	for _, d := range doctors {
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
		cp := *d
		s.doctors[d.ID] = &cp
	}
	return s
}

func (s *DoctorStore) Create(_ context.Context, d *model.Doctor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.doctors {
		if existing.Email == d.Email {
			return apperrors.Conflict("doctor already exists", nil)
		}
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	cp := *d
	s.doctors[d.ID] = &cp
	return nil
}

func (s *DoctorStore) Get(_ context.Context, id uuid.UUID) (*model.Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.doctors[id]
	if !ok {
		return nil, apperrors.NotFound("doctor", nil)
	}
	cp := *d
	return &cp, nil
}

func (s *DoctorStore) GetByEmail(_ context.Context, email string) (*model.Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.doctors {
		if d.Email == email {
			cp := *d
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("doctor", nil)
}

func (s *DoctorStore) Update(_ context.Context, d *model.Doctor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doctors[d.ID]; !ok {
		return apperrors.NotFound("doctor", nil)
	}
	cp := *d
	s.doctors[d.ID] = &cp
	return nil
}

func (s *DoctorStore) List(context.Context) ([]*model.Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Doctor, 0, len(s.doctors))
	for _, d := range s.doctors {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *DoctorStore) IncrementSMSCount(_ context.Context, id uuid.UUID, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.doctors[id]
	if !ok {
		return apperrors.NotFound("doctor", nil)
	}
	d.SMSSentCount += delta
	return nil
}

func (s *DoctorStore) Stats(context.Context) (*model.DoctorStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &model.DoctorStats{TotalDoctors: len(s.doctors)}
	for _, d := range s.doctors {
		if d.IsActive {
			stats.ActiveDoctors++
		}
		if d.IsArchived {
			stats.ArchivedDoctors++
		}
		stats.TotalSMS += d.SMSSentCount
	}
	return stats, nil
}

func (s *DoctorStore) AddAction(_ context.Context, a *model.DoctorAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	s.actions = append(s.actions, a)
	return nil
}

func (s *DoctorStore) ListActions(_ context.Context, doctorID uuid.UUID) ([]*model.DoctorAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.DoctorAction{}
	for i := len(s.actions) - 1; i >= 0; i-- {
		if s.actions[i].DoctorID == doctorID {
			out = append(out, s.actions[i])
		}
	}
	return out, nil
}
