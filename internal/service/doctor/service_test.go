package doctor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/queue-api/internal/config"
	"github.com/jwalitptl/queue-api/internal/model"
	apperrors "github.com/jwalitptl/queue-api/pkg/errors"
	"github.com/jwalitptl/queue-api/pkg/security"
)

type fixture struct {
	repo   *mockDoctorRepository
	email  *mockEmailService
	hasher security.PasswordHasher
	tokens *security.TokenManager
	svc    *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:   &mockDoctorRepository{},
		email:  &mockEmailService{},
		hasher: security.NewBcryptHasher(bcrypt.MinCost),
		tokens: security.NewTokenManager("test-secret", time.Hour),
	}
	f.svc = NewService(f.repo, f.hasher, f.tokens, f.email, NewCachedDirectory(f.repo, time.Minute), nil)
	return f
}

func (f *fixture) doctor(t *testing.T, password string, active bool) *model.Doctor {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	return &model.Doctor{
		Base:         model.Base{ID: uuid.New()},
		FullName:     "Dr. Martin",
		Email:        "martin@clinic.fr",
		PasswordHash: hash,
		IsActive:     active,
	}
}

func TestRegister(t *testing.T) {
	f := newFixture()
	var created *model.Doctor
	f.repo.CreateFunc = func(_ context.Context, d *model.Doctor) error {
		created = d
		return nil
	}

	doc, err := f.svc.Register(context.Background(), &model.RegisterDoctorRequest{
		FullName: "  Dr. Martin ",
		Email:    "martin@clinic.fr",
		Password: "longenough",
	})

	require.NoError(t, err)
	assert.Same(t, created, doc)
	assert.Equal(t, "Dr. Martin", doc.FullName)
	assert.False(t, doc.IsActive, "new accounts wait for activation")
	assert.NoError(t, f.hasher.Compare(doc.PasswordHash, "longenough"))
}

func TestRegister_ShortPassword(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Register(context.Background(), &model.RegisterDoctorRequest{Email: "a@b.c", Password: "short"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))
}

func TestLogin(t *testing.T) {
	f := newFixture()
	doc := f.doctor(t, "longenough", true)
	f.repo.GetByEmailFunc = func(context.Context, string) (*model.Doctor, error) { return doc, nil }

	resp, err := f.svc.Login(context.Background(), &model.LoginRequest{Email: doc.Email, Password: "longenough"})

	require.NoError(t, err)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	claims, err := f.tokens.Validate(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, claims.DoctorID)
	require.Len(t, f.repo.updateLog, 1)
	assert.NotNil(t, f.repo.updateLog[0].LastLoginAt)
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name     string
		active   bool
		archived bool
		password string
		lookup   error
		wantCode apperrors.ErrorCode
	}{
		{name: "unknown email", lookup: apperrors.NotFound("doctor", nil), wantCode: apperrors.ErrUnauthorized},
		{name: "wrong password", active: true, password: "wrongpassword", wantCode: apperrors.ErrUnauthorized},
		{name: "inactive", active: false, password: "longenough", wantCode: apperrors.ErrForbidden},
		{name: "archived", active: true, archived: true, password: "longenough", wantCode: apperrors.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			doc := f.doctor(t, "longenough", tt.active)
			doc.IsArchived = tt.archived
			f.repo.GetByEmailFunc = func(context.Context, string) (*model.Doctor, error) {
				if tt.lookup != nil {
					return nil, tt.lookup
				}
				return doc, nil
			}

			_, err := f.svc.Login(context.Background(), &model.LoginRequest{Email: doc.Email, Password: tt.password})
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
			assert.Empty(t, f.repo.updateLog)
		})
	}
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture()
	doc := f.doctor(t, "longenough", true)
	f.repo.GetFunc = func(context.Context, uuid.UUID) (*model.Doctor, error) { return doc, nil }

	city := " Lyon "
	updated, err := f.svc.UpdateProfile(context.Background(), doc.ID, &model.UpdateDoctorRequest{City: &city})

	require.NoError(t, err)
	assert.Equal(t, "Lyon", updated.City)
	require.Len(t, f.repo.actions, 1)
	assert.Equal(t, model.ActionProfileUpdated, f.repo.actions[0].Action)
	assert.JSONEq(t, `{"fields":["city"]}`, string(f.repo.actions[0].Details))

	empty := " "
	_, err = f.svc.UpdateProfile(context.Background(), doc.ID, &model.UpdateDoctorRequest{FullName: &empty})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))
}

func TestActivate(t *testing.T) {
	f := newFixture()
	doc := f.doctor(t, "longenough", false)
	f.repo.GetFunc = func(context.Context, uuid.UUID) (*model.Doctor, error) { return doc, nil }
	f.email.err = errors.New("smtp down")

	got, err := f.svc.Activate(context.Background(), doc.ID)

	require.NoError(t, err, "email failures do not fail activation")
	assert.True(t, got.IsActive)
	assert.Equal(t, []string{doc.Email}, f.email.activated)
	require.Len(t, f.repo.actions, 1)
	assert.Equal(t, model.ActionAccountActivate, f.repo.actions[0].Action)
}

func TestSetArchived(t *testing.T) {
	f := newFixture()
	doc := f.doctor(t, "longenough", true)
	f.repo.GetFunc = func(context.Context, uuid.UUID) (*model.Doctor, error) { return doc, nil }

	got, err := f.svc.SetArchived(context.Background(), doc.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsArchived)

	doc.IsAdmin = true
	_, err = f.svc.SetArchived(context.Background(), doc.ID, true)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))
}

func TestEnsureDefaultAdmin(t *testing.T) {
	f := newFixture()
	f.repo.GetByEmailFunc = func(context.Context, string) (*model.Doctor, error) {
		return nil, apperrors.NotFound("doctor", nil)
	}
	var created *model.Doctor
	f.repo.CreateFunc = func(_ context.Context, d *model.Doctor) error {
		created = d
		return nil
	}

	err := f.svc.EnsureDefaultAdmin(context.Background(), config.AdminConfig{Email: "admin@clinic.local", Password: "adminpass", FullName: "Admin"})

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.True(t, created.IsAdmin)
	assert.True(t, created.IsActive)

	created = nil
	f.repo.GetByEmailFunc = func(context.Context, string) (*model.Doctor, error) { return &model.Doctor{}, nil }
	require.NoError(t, f.svc.EnsureDefaultAdmin(context.Background(), config.AdminConfig{Email: "admin@clinic.local", Password: "adminpass"}))
	assert.Nil(t, created, "existing admin is left alone")
}

func TestCachedDirectory(t *testing.T) {
	repo := &mockDoctorRepository{}
	doc := &model.Doctor{Base: model.Base{ID: uuid.New()}, FullName: "Dr. Martin", IsActive: true}
	repo.GetFunc = func(context.Context, uuid.UUID) (*model.Doctor, error) { return doc, nil }
	dir := NewCachedDirectory(repo, time.Minute)

	ref, err := dir.FindByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Martin", ref.FullName)

	_, err = dir.FindByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.getCalls)

	dir.Invalidate(doc.ID)
	_, err = dir.FindByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.getCalls)
}

func TestCachedDirectory_NotFound(t *testing.T) {
	repo := &mockDoctorRepository{}
	repo.GetFunc = func(context.Context, uuid.UUID) (*model.Doctor, error) {
		return nil, apperrors.NotFound("doctor", nil)
	}

	_, err := NewCachedDirectory(repo, time.Minute).FindByID(context.Background(), uuid.New())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}
