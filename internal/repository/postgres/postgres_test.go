package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/queue-api/internal/model"
	apperrors "github.com/jwalitptl/queue-api/pkg/errors"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return sqlx.NewDb(db, "postgres"), mock
}

func TestPatientRepository_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPatientRepository(db)

	mock.ExpectExec(`INSERT INTO patients`).WillReturnResult(sqlmock.NewResult(0, 1))

	p := &model.Patient{FullName: "Alice", Phone: "0600000001", DoctorID: uuid.New(), Status: model.PatientStatusPending}
	require.NoError(t, repo.Create(context.Background(), p))
	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.False(t, p.CreatedAt.IsZero())
}

func TestPatientRepository_CreateConstraint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.ErrorCode
	}{
		{name: "unique", err: &pq.Error{Code: "23505"}, want: apperrors.ErrConflict},
		{name: "not null", err: &pq.Error{Code: "23502"}, want: apperrors.ErrConstraint},
		{name: "other", err: errors.New("connection refused"), want: apperrors.ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectExec(`INSERT INTO patients`).WillReturnError(tt.err)

			err := NewPatientRepository(db).Create(context.Background(), &model.Patient{})
			assert.Equal(t, tt.want, apperrors.CodeOf(err))
		})
	}
}

func TestPatientRepository_GetScopedByDoctor(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPatientRepository(db)
	id, doctorID := uuid.New(), uuid.New()

	mock.ExpectQuery(`FROM patients WHERE id = \$1 AND doctor_id = \$2`).
		WithArgs(id, doctorID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "phone", "doctor_id", "status"}).
			AddRow(id.String(), "Alice", "0600000001", doctorID.String(), "pending"))
	mock.ExpectQuery(`FROM patients WHERE id = \$1 AND doctor_id = \$2`).
		WithArgs(id, doctorID).
		WillReturnError(sql.ErrNoRows)

	p, err := repo.Get(context.Background(), id, doctorID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.FullName)
	assert.Equal(t, model.PatientStatusPending, p.Status)

	_, err = repo.Get(context.Background(), id, doctorID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestPatientRepository_UpdateMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE patients SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewPatientRepository(db).Update(context.Background(), &model.Patient{Base: model.Base{ID: uuid.New()}})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestPatientRepository_Delete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPatientRepository(db)
	id, doctorID := uuid.New(), uuid.New()

	mock.ExpectExec(`DELETE FROM patients WHERE id = \$1 AND doctor_id = \$2`).
		WithArgs(id, doctorID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM patients`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), id, doctorID))
	assert.True(t, apperrors.HasCode(repo.Delete(context.Background(), id, doctorID), apperrors.ErrNotFound))
}

func TestPatientRepository_ListFilters(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPatientRepository(db)
	doctorID := uuid.New()
	notSent := false

	mock.ExpectQuery(`WHERE doctor_id = \$1 AND status = \$2 AND notification_sent = \$3 ORDER BY scheduled_time ASC, created_at ASC`).
		WithArgs(doctorID, "pending", false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "scheduled_time"}).
			AddRow(uuid.NewString(), "Alice", "09:00").
			AddRow(uuid.NewString(), "Bruno", "09:15"))
	mock.ExpectQuery(`WHERE doctor_id = \$1 ORDER BY`).
		WithArgs(doctorID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	patients, err := repo.List(context.Background(), doctorID, &model.PatientFilters{
		Status:           model.PatientStatusPending,
		NotificationSent: &notSent,
	})
	require.NoError(t, err)
	require.Len(t, patients, 2)
	assert.Equal(t, "Bruno", patients[1].FullName)

	patients, err = repo.List(context.Background(), doctorID, nil)
	require.NoError(t, err)
	assert.NotNil(t, patients)
	assert.Empty(t, patients)
}

func TestDoctorRepository_CreateNormalizesEmail(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO doctors`).WillReturnResult(sqlmock.NewResult(0, 1))

	d := &model.Doctor{Email: "  Martin@Clinic.FR "}
	require.NoError(t, NewDoctorRepository(db).Create(context.Background(), d))
	assert.Equal(t, "martin@clinic.fr", d.Email)
}

func TestDoctorRepository_IncrementSMSCount(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDoctorRepository(db)
	id := uuid.New()

	mock.ExpectExec(`UPDATE doctors SET sms_sent_count = sms_sent_count \+ \$1`).
		WithArgs(3, id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE doctors SET sms_sent_count`).
		WithArgs(1, id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.IncrementSMSCount(context.Background(), id, 3))
	assert.True(t, apperrors.HasCode(repo.IncrementSMSCount(context.Background(), id, 1), apperrors.ErrNotFound))
}

func TestDoctorRepository_Stats(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`AS total_doctors`).
		WillReturnRows(sqlmock.NewRows([]string{"total_doctors", "active_doctors", "archived_doctors", "total_patients", "total_sms"}).
			AddRow(4, 3, 1, 120, 57))

	stats, err := NewDoctorRepository(db).Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, model.DoctorStats{TotalDoctors: 4, ActiveDoctors: 3, ArchivedDoctors: 1, TotalPatients: 120, TotalSMS: 57}, *stats)
}

func TestDoctorRepository_AddAction(t *testing.T) {
	db, mock := newMock(t)
	doctorID := uuid.New()

	mock.ExpectExec(`INSERT INTO doctor_actions`).
		WithArgs(sqlmock.AnyArg(), doctorID, model.ActionBulkSMS, "{}", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	a := &model.DoctorAction{DoctorID: doctorID, Action: model.ActionBulkSMS}
	require.NoError(t, NewDoctorRepository(db).AddAction(context.Background(), a))
	assert.NotEqual(t, uuid.Nil, a.ID)
}
