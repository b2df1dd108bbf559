package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/queue-api/internal/model"
	apperrors "github.com/jwalitptl/queue-api/pkg/errors"
)

type mockCreator struct {
	CreateFunc func(ctx context.Context, patient *model.Patient) error
	calls      []string
}

func (m *mockCreator) Create(ctx context.Context, patient *model.Patient) error {
	m.calls = append(m.calls, patient.FullName)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, patient)
	}
	patient.ID = uuid.New()
	return nil
}

func candidates(names ...string) []*model.Patient {
	out := make([]*model.Patient, len(names))
	for i, n := range names {
		out[i] = &model.Patient{FullName: n, Phone: "06000000"}
	}
	return out
}

func TestPersist_FailureIsolation(t *testing.T) {
	conflict := apperrors.Constraint(errors.New("duplicate phone"))
	store := &mockCreator{CreateFunc: func(_ context.Context, p *model.Patient) error {
		if p.FullName == "Bruno" {
			return conflict
		}
		return nil
	}}

	res, err := NewPersister(store, nil).Persist(context.Background(), candidates("Alice", "Bruno", "Chloé", "Denis"))

	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bruno", "Chloé", "Denis"}, store.calls, "input order is kept")
	assert.Equal(t, 4, res.Parsed)
	require.Len(t, res.Persisted, 3)
	assert.Equal(t, "Chloé", res.Persisted[1].FullName)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "Bruno", res.Failures[0].Patient.FullName)
	assert.ErrorIs(t, res.Failures[0].Err, conflict)
}

func TestPersist_EmptyBatch(t *testing.T) {
	store := &mockCreator{}
	res, err := NewPersister(store, nil).Persist(context.Background(), nil)

	assert.True(t, apperrors.HasCode(err, apperrors.ErrEmptyBatch))
	assert.Zero(t, res.Parsed)
	assert.Empty(t, store.calls)
}

func TestPersist_NoRecordsPersisted(t *testing.T) {
	store := &mockCreator{CreateFunc: func(context.Context, *model.Patient) error {
		return errors.New("db down")
	}}

	res, err := NewPersister(store, nil).Persist(context.Background(), candidates("Alice", "Bruno"))

	assert.True(t, apperrors.HasCode(err, apperrors.ErrNoRecordsPersisted))
	assert.Equal(t, 2, res.Parsed)
	assert.Len(t, res.Failures, 2)
	assert.Empty(t, res.Persisted)
}

func TestPersist_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := &mockCreator{}
	store.CreateFunc = func(context.Context, *model.Patient) error {
		cancel()
		return nil
	}

	res, err := NewPersister(store, nil).Persist(ctx, candidates("Alice", "Bruno", "Chloé"))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, res.Persisted, 1)
	assert.Equal(t, []string{"Alice"}, store.calls)
}
