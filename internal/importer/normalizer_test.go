package importer

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/queue-api/internal/model"
)

var (
	testNow   = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	testOwner = Owner{DoctorID: uuid.MustParse("5c1f6a4e-1d2b-4c8e-9d7a-0b3c2e1f4a5d"), DoctorName: "Dr. Martin", SourceFileName: "monday.csv"}
)

func TestNormalize_Aliases(t *testing.T) {
	tests := []struct {
		name      string
		row       Row
		wantName  string
		wantPhone string
		wantSched string
	}{
		{
			name:      "canonical headers",
			row:       Row{"fullName": "Alice Durand", "phone": "0600000001", "scheduledTime": "09:00"},
			wantName:  "Alice Durand",
			wantPhone: "0600000001",
			wantSched: "09:00",
		},
		{
			name:      "french headers",
			row:       Row{"nom-complet": "Bruno Petit", "num-telephone": "0600000002", "heure-de-rendez-vous": "10:15"},
			wantName:  "Bruno Petit",
			wantPhone: "0600000002",
			wantSched: "10:15",
		},
		{
			name:      "spreadsheet headers",
			row:       Row{"Nom": "Chloé Roux", "Téléphone": "0600000003", "Heure RDV": "11:45"},
			wantName:  "Chloé Roux",
			wantPhone: "0600000003",
			wantSched: "11:45",
		},
		{
			name:      "first non-empty alias wins",
			row:       Row{"fullName": "  ", "nom": "Denis Blanc", "name": "ignored", "tel": " 0600000004 ", "heure": "12:00"},
			wantName:  "Denis Blanc",
			wantPhone: "0600000004",
			wantSched: "12:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := Normalize(tt.row, testOwner, testNow)
			require.True(t, ok)
			assert.Equal(t, tt.wantName, p.FullName)
			assert.Equal(t, tt.wantPhone, p.Phone)
			assert.Equal(t, tt.wantSched, p.ScheduledTime)
			assert.Equal(t, tt.wantSched, p.EstimatedTime)
		})
	}
}

func TestNormalize_Defaults(t *testing.T) {
	p, ok := Normalize(Row{"name": " Eva Morel ", "phone": "0600000005"}, testOwner, testNow)
	require.True(t, ok)

	assert.Equal(t, "Eva Morel", p.FullName)
	assert.Equal(t, "2024-03-01T09:30:00Z", p.ScheduledTime)
	assert.Equal(t, p.ScheduledTime, p.EstimatedTime)
	assert.Equal(t, model.PatientStatusPending, p.Status)
	assert.False(t, p.NotificationSent)
	assert.Zero(t, p.DelayMinutes)
	assert.Nil(t, p.Notes)
	assert.Equal(t, testOwner.DoctorID, p.DoctorID)
	assert.Equal(t, "Dr. Martin", p.DoctorName)
	assert.Equal(t, "monday.csv", p.SourceFileName)
	require.NotNil(t, p.ImportedAt)
	assert.True(t, p.ImportedAt.Equal(testNow))
}

func TestNormalize_Status(t *testing.T) {
	p, ok := Normalize(Row{"name": "A", "phone": "1", "status": "done"}, testOwner, testNow)
	require.True(t, ok)
	assert.Equal(t, model.PatientStatusDone, p.Status)

	p, ok = Normalize(Row{"name": "A", "phone": "1", "statut": "en_attente"}, testOwner, testNow)
	require.True(t, ok)
	assert.Equal(t, model.PatientStatusPending, p.Status, "unknown statuses fall back to pending")
}

func TestNormalizeAll_DropsExactlyInvalidRows(t *testing.T) {
	rows := []Row{
		{"fullName": "Alice", "phone": "0600000001"},
		{"fullName": "", "phone": "0600000002"},
		{"fullName": "Carl", "phone": "   "},
		{"nom": "Dina", "tel": "0600000004"},
		{"notes": "no name, no phone"},
		{"Nom": "Faye", "Téléphone": "0600000006"},
	}

	accepted, dropped := NormalizeAll(rows, testOwner, testNow)

	require.Len(t, accepted, 3)
	require.Len(t, dropped, 3)
	assert.Equal(t, len(rows), len(accepted)+len(dropped))
	assert.Equal(t, []string{"Alice", "Dina", "Faye"}, []string{accepted[0].FullName, accepted[1].FullName, accepted[2].FullName})
	assert.Equal(t, []Row{rows[1], rows[2], rows[4]}, dropped)
}
