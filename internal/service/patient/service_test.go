package patient

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/queue-api/internal/email"
	"github.com/jwalitptl/queue-api/internal/importer"
	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository/repotest"
	"github.com/jwalitptl/queue-api/internal/service/doctor"
	apperrors "github.com/jwalitptl/queue-api/pkg/errors"
)

type recordedAction struct {
	doctorID uuid.UUID
	action   string
}

type mockRecorder struct {
	actions []recordedAction
}

func (m *mockRecorder) RecordAction(_ context.Context, doctorID uuid.UUID, action string, _ interface{}) {
	m.actions = append(m.actions, recordedAction{doctorID, action})
}

type mockPublisher struct {
	events []string
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, eventType string, _ interface{}) error {
	m.events = append(m.events, eventType)
	return m.err
}

type mockEmail struct {
	to  string
	att email.Attachment
}

func (m *mockEmail) SendAccountActivated(context.Context, string, string) error { return nil }

func (m *mockEmail) SendWithAttachment(_ context.Context, to, _, _ string, att email.Attachment) error {
	m.to = to
	m.att = att
	return nil
}

type fixture struct {
	doc       *model.Doctor
	patients  *repotest.PatientStore
	recorder  *mockRecorder
	publisher *mockPublisher
	email     *mockEmail
	svc       *Service
}

func newFixture() *fixture {
	doc := &model.Doctor{Base: model.Base{ID: uuid.New()}, FullName: "Dr. Martin", Email: "martin@clinic.fr", IsActive: true}
	f := &fixture{
		doc:       doc,
		patients:  repotest.NewPatientStore(),
		recorder:  &mockRecorder{},
		publisher: &mockPublisher{},
		email:     &mockEmail{},
	}
	dir := doctor.NewCachedDirectory(repotest.NewDoctorStore(doc), time.Minute)
	f.svc = NewService(f.patients, dir, f.email, f.publisher, f.recorder, nil, nil)
	f.svc.now = func() time.Time { return time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC) }
	return f
}

func stage(t *testing.T, name, content string) ImportSource {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload"+filepath.Ext(name))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return ImportSource{Path: path, FileName: name}
}

func TestCreate(t *testing.T) {
	f := newFixture()

	p, err := f.svc.Create(context.Background(), f.doc.ID, &model.CreatePatientRequest{FullName: " Alice ", Phone: "0600000001"})

	require.NoError(t, err)
	assert.Equal(t, "Alice", p.FullName)
	assert.Equal(t, "Dr. Martin", p.DoctorName)
	assert.Equal(t, "2024-03-01T08:00:00Z", p.ScheduledTime)
	assert.Equal(t, p.ScheduledTime, p.EstimatedTime)
	assert.Equal(t, model.PatientStatusPending, p.Status)

	_, err = f.svc.Create(context.Background(), f.doc.ID, &model.CreatePatientRequest{FullName: "Bob", Phone: "  "})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))

	_, err = f.svc.Create(context.Background(), uuid.New(), &model.CreatePatientRequest{FullName: "Bob", Phone: "1"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound), "unknown doctor")
}

func TestUpdate(t *testing.T) {
	f := newFixture()
	p, err := f.svc.Create(context.Background(), f.doc.ID, &model.CreatePatientRequest{FullName: "Alice", Phone: "1"})
	require.NoError(t, err)

	done := model.PatientStatusDone
	delay := 15
	got, err := f.svc.Update(context.Background(), p.ID, f.doc.ID, &model.UpdatePatientRequest{Status: &done, DelayMinutes: &delay})
	require.NoError(t, err)
	assert.Equal(t, model.PatientStatusDone, got.Status)
	assert.Equal(t, 15, got.DelayMinutes)

	bogus := model.PatientStatus("annulé")
	_, err = f.svc.Update(context.Background(), p.ID, f.doc.ID, &model.UpdatePatientRequest{Status: &bogus})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))

	_, err = f.svc.Update(context.Background(), p.ID, uuid.New(), &model.UpdatePatientRequest{Status: &done})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound), "other doctors cannot see the record")
}

func TestStats(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for _, name := range []string{"A", "B", "C"} {
		_, err := f.svc.Create(ctx, f.doc.ID, &model.CreatePatientRequest{FullName: name, Phone: "1"})
		require.NoError(t, err)
	}
	all, err := f.svc.List(ctx, f.doc.ID, nil)
	require.NoError(t, err)
	done := model.PatientStatusDone
	_, err = f.svc.Update(ctx, all[0].ID, f.doc.ID, &model.UpdatePatientRequest{Status: &done})
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx, f.doc.ID)

	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[model.PatientStatusPending])
	assert.Equal(t, 1, stats.ByStatus[model.PatientStatusDone])
	assert.Equal(t, 0, stats.ByStatus[model.PatientStatusDelayed])
}

func TestImport(t *testing.T) {
	f := newFixture()
	src := stage(t, "lundi.csv", "nom-complet,num-telephone,heure-de-rendez-vous,notes\n"+
		"Alice,0600000001,09:00,\"late, please call\"\n"+
		",0600000002,09:15,\n"+
		"Chloé,0600000003,09:30,\n")

	res, err := f.svc.Import(context.Background(), f.doc.ID, src)

	require.NoError(t, err)
	assert.Equal(t, "lundi.csv", res.FileName)
	assert.Equal(t, 2, res.Parsed)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, 2, res.Persisted)
	assert.Zero(t, res.Failed)
	require.Len(t, res.Patients, 2)
	assert.Equal(t, "lundi.csv", res.Patients[0].SourceFileName)
	assert.Equal(t, "late, please call", res.Patients[0].NotesOrEmpty())
	assert.Equal(t, "Dr. Martin", res.Patients[1].DoctorName)

	assert.Equal(t, []recordedAction{{f.doc.ID, model.ActionPatientsImport}}, f.recorder.actions)
	assert.Equal(t, []string{"patients.imported"}, f.publisher.events)
}

func TestImport_FailureIsolation(t *testing.T) {
	f := newFixture()
	f.patients.CreateHook = func(p *model.Patient) error {
		if p.Phone == "0600000002" {
			return apperrors.Constraint(errors.New("duplicate key"))
		}
		return nil
	}
	src := stage(t, "batch.csv", "fullName,phone\nAlice,0600000001\nBruno,0600000002\nChloé,0600000003\n")

	res, err := f.svc.Import(context.Background(), f.doc.ID, src)

	require.NoError(t, err)
	assert.Equal(t, 3, res.Parsed)
	assert.Equal(t, 2, res.Persisted)
	assert.Equal(t, 1, res.Failed)
	n, _ := f.patients.Count(context.Background())
	assert.Equal(t, 2, n)
}

func TestImport_Errors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		hook     func(*model.Patient) error
		wantCode apperrors.ErrorCode
	}{
		{name: "unsupported", file: "notes.txt", content: "x", wantCode: apperrors.ErrUnsupportedFormat},
		{name: "no valid rows", file: "empty.csv", content: "fullName,phone\n,\n", wantCode: apperrors.ErrEmptyBatch},
		{name: "header only", file: "header.csv", content: "fullName,phone\n", wantCode: apperrors.ErrEmptyBatch},
		{
			name:     "nothing persisted",
			file:     "all-fail.csv",
			content:  "fullName,phone\nA,1\nB,2\n",
			hook:     func(*model.Patient) error { return errors.New("db down") },
			wantCode: apperrors.ErrNoRecordsPersisted,
		},
		{name: "malformed csv", file: "bad.csv", content: "fullName,phone\n\"unterminated,1\n", wantCode: apperrors.ErrRead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.patients.CreateHook = tt.hook

			_, err := f.svc.Import(context.Background(), f.doc.ID, stage(t, tt.file, tt.content))

			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err), "got %v", err)
			assert.Empty(t, f.publisher.events)
		})
	}
}

func TestExportCSV(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.ExportCSV(ctx, f.doc.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNoRecords))

	for _, req := range []model.CreatePatientRequest{
		{FullName: "Late", Phone: "3", ScheduledTime: "11:00"},
		{FullName: "Early", Phone: "1", ScheduledTime: "09:00"},
		{FullName: "Mid", Phone: "2", ScheduledTime: "10:00"},
	} {
		req := req
		_, err := f.svc.Create(ctx, f.doc.ID, &req)
		require.NoError(t, err)
	}

	data, err := f.svc.ExportCSV(ctx, f.doc.ID)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[1], "Early,"))
	assert.True(t, strings.HasPrefix(lines[3], "Late,"))
}

func TestExportImportRoundTrip(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	notes := "late, please call"
	_, err := f.svc.Create(ctx, f.doc.ID, &model.CreatePatientRequest{FullName: "Alice", Phone: "0600000001", ScheduledTime: "09:00", Notes: &notes})
	require.NoError(t, err)

	data, err := f.svc.ExportXLSX(ctx, f.doc.ID)
	require.NoError(t, err)

	rr, err := importer.OpenReader(bytes.NewReader(data), importer.ExtXLSX)
	require.NoError(t, err)
	defer rr.Close()
	rows, err := importer.ReadAll(rr)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	p, ok := importer.Normalize(rows[0], importer.Owner{DoctorID: f.doc.ID}, time.Now())
	require.True(t, ok)
	assert.Equal(t, "Alice", p.FullName)
	assert.Equal(t, "09:00", p.ScheduledTime)
	assert.Equal(t, notes, p.NotesOrEmpty())
}

func TestEmailExport(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Create(ctx, f.doc.ID, &model.CreatePatientRequest{FullName: "Alice", Phone: "1"})
	require.NoError(t, err)

	to, err := f.svc.EmailExport(ctx, f.doc.ID)

	require.NoError(t, err)
	assert.Equal(t, "martin@clinic.fr", to)
	assert.Equal(t, "martin@clinic.fr", f.email.to)
	assert.Equal(t, "patients-2024-03-01.xlsx", f.email.att.Name)
	assert.NotEmpty(t, f.email.att.Data)
}
