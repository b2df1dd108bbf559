package importer

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/queue-api/internal/model"
)

// Row is one raw line of an import file keyed by its header names.
type Row map[string]string

// Canonical field names. These are also the export headers.
const (
	FieldFullName      = "fullName"
	FieldPhone         = "phone"
	FieldScheduledTime = "scheduledTime"
	FieldEstimatedTime = "estimatedTime"
	FieldStatus        = "status"
	FieldNotes         = "notes"
)

// FieldAliases lists, in priority order, the header names a canonical field may appear under.
type FieldAliases struct {
	Field   string
	Aliases []string
}

// Aliases is consulted in order; within a field the first non-empty alias wins.
var Aliases = []FieldAliases{
	{Field: FieldFullName, Aliases: []string{"fullName", "nomComplet", "nom-complet", "Nom", "nom", "name"}},
	{Field: FieldPhone, Aliases: []string{"phone", "telephone", "num-telephone", "Téléphone", "tel"}},
	{Field: FieldScheduledTime, Aliases: []string{"scheduledTime", "heureRendezVous", "heure-de-rendez-vous", "Heure RDV", "heure"}},
	{Field: FieldEstimatedTime, Aliases: []string{"estimatedTime", "heureEstimee", "heure-estimee", "Heure estimée"}},
	{Field: FieldStatus, Aliases: []string{"status", "statut"}},
	{Field: FieldNotes, Aliases: []string{"notes", "Notes"}},
}

// Owner carries the caller-supplied fields stamped onto every imported record.
type Owner struct {
	DoctorID       uuid.UUID
	DoctorName     string
	SourceFileName string
}

// Resolve returns the first non-empty trimmed value among the field's aliases.
func (r Row) Resolve(field string) string {
	for _, fa := range Aliases {
		if fa.Field != field {
			continue
		}
		for _, alias := range fa.Aliases {
			if v := strings.TrimSpace(r[alias]); v != "" {
				return v
			}
		}
		return ""
	}
	return ""
}

// Normalize maps a raw row onto a patient. It reports false when the row has
// no name or no phone; nothing else is validated.
func Normalize(row Row, owner Owner, now time.Time) (*model.Patient, bool) {
	fullName := row.Resolve(FieldFullName)
	phone := row.Resolve(FieldPhone)
	if fullName == "" || phone == "" {
		return nil, false
	}

	scheduled := row.Resolve(FieldScheduledTime)
	if scheduled == "" {
		scheduled = now.UTC().Format(time.RFC3339)
	}
	estimated := row.Resolve(FieldEstimatedTime)
	if estimated == "" {
		estimated = scheduled
	}

	status := model.PatientStatus(row.Resolve(FieldStatus))
	if !status.Valid() {
		status = model.PatientStatusPending
	}

	importedAt := now
	p := &model.Patient{
		FullName:       fullName,
		Phone:          phone,
		ScheduledTime:  scheduled,
		EstimatedTime:  estimated,
		DoctorID:       owner.DoctorID,
		DoctorName:     strings.TrimSpace(owner.DoctorName),
		SourceFileName: strings.TrimSpace(owner.SourceFileName),
		ImportedAt:     &importedAt,
		Status:         status,
	}
	if notes := row.Resolve(FieldNotes); notes != "" {
		p.Notes = &notes
	}
	return p, true
}

// NormalizeAll splits rows into accepted patients and dropped rows, preserving order.
func NormalizeAll(rows []Row, owner Owner, now time.Time) ([]*model.Patient, []Row) {
	accepted := make([]*model.Patient, 0, len(rows))
	var dropped []Row
	for _, row := range rows {
		if p, ok := Normalize(row, owner, now); ok {
			accepted = append(accepted, p)
			continue
		}
		dropped = append(dropped, row)
	}
	return accepted, dropped
}
