package model

import (
	"time"

	"github.com/google/uuid"
)

type PatientStatus string

const (
	PatientStatusPending    PatientStatus = "pending"
	PatientStatusInProgress PatientStatus = "in_progress"
	PatientStatusDelayed    PatientStatus = "delayed"
	PatientStatusDone       PatientStatus = "done"
)

// PatientStatuses lists every valid status in queue order.
var PatientStatuses = []PatientStatus{
	PatientStatusPending,
	PatientStatusInProgress,
	PatientStatusDelayed,
	PatientStatusDone,
}

func (s PatientStatus) Valid() bool {
	for _, v := range PatientStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Patient is an appointment record in a doctor's queue.
type Patient struct {
	Base
	FullName            string        `db:"full_name" json:"full_name"`
	Phone               string        `db:"phone" json:"phone"`
	ScheduledTime       string        `db:"scheduled_time" json:"scheduled_time"`
	EstimatedTime       string        `db:"estimated_time" json:"estimated_time"`
	DoctorID            uuid.UUID     `db:"doctor_id" json:"doctor_id"`
	DoctorName          string        `db:"doctor_name" json:"doctor_name"`
	SourceFileName      string        `db:"source_file_name" json:"source_file_name,omitempty"`
	ImportedAt          *time.Time    `db:"imported_at" json:"imported_at,omitempty"`
	Status              PatientStatus `db:"status" json:"status"`
	NotificationSent    bool          `db:"notification_sent" json:"notification_sent"`
	NotificationSentAt  *time.Time    `db:"notification_sent_at" json:"notification_sent_at,omitempty"`
	NotificationMessage *string       `db:"notification_message" json:"notification_message,omitempty"`
	DelayMinutes        int           `db:"delay_minutes" json:"delay_minutes"`
	Notes               *string       `db:"notes" json:"notes,omitempty"`
}

// NotesOrEmpty returns the notes text, or "" when unset.
func (p *Patient) NotesOrEmpty() string {
	if p.Notes == nil {
		return ""
	}
	return *p.Notes
}

type PatientFilters struct {
	Status           PatientStatus `form:"status"`
	NotificationSent *bool         `form:"notification_sent"`
}

type CreatePatientRequest struct {
	FullName      string  `json:"full_name" binding:"required"`
	Phone         string  `json:"phone" binding:"required"`
	ScheduledTime string  `json:"scheduled_time"`
	EstimatedTime string  `json:"estimated_time"`
	DelayMinutes  int     `json:"delay_minutes" binding:"gte=0"`
	Notes         *string `json:"notes"`
}

type UpdatePatientRequest struct {
	FullName      *string        `json:"full_name"`
	Phone         *string        `json:"phone"`
	ScheduledTime *string        `json:"scheduled_time"`
	EstimatedTime *string        `json:"estimated_time"`
	Status        *PatientStatus `json:"status" binding:"omitempty,patient_status"`
	DelayMinutes  *int           `json:"delay_minutes" binding:"omitempty,gte=0"`
	Notes         *string        `json:"notes"`
}

type SendSMSRequest struct {
	Message string `json:"message" binding:"required"`
}

// PatientStats summarises a doctor's queue.
type PatientStats struct {
	Total            int                   `json:"total"`
	ByStatus         map[PatientStatus]int `json:"by_status"`
	NotificationSent int                   `json:"notification_sent"`
}

// ImportResult is returned by the import endpoint.
type ImportResult struct {
	FileName  string     `json:"file_name"`
	Parsed    int        `json:"parsed"`
	Dropped   int        `json:"dropped"`
	Persisted int        `json:"persisted"`
	Failed    int        `json:"failed"`
	Patients  []*Patient `json:"patients"`
}
