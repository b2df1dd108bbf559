package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Doctor struct {
	Base
	FullName     string         `db:"full_name" json:"full_name"`
	Email        string         `db:"email" json:"email"`
	PasswordHash string         `db:"password_hash" json:"-"`
	Address      string         `db:"address" json:"address"`
	PostalCode   string         `db:"postal_code" json:"postal_code"`
	City         string         `db:"city" json:"city"`
	Specialties  pq.StringArray `db:"specialties" json:"specialties"`
	IsAdmin      bool           `db:"is_admin" json:"is_admin"`
	IsActive     bool           `db:"is_active" json:"is_active"`
	IsArchived   bool           `db:"is_archived" json:"is_archived"`
	LastLoginAt  *time.Time     `db:"last_login_at" json:"last_login_at,omitempty"`
	SMSSentCount int            `db:"sms_sent_count" json:"sms_sent_count"`
}

// DoctorRef is the directory view of a doctor used to stamp patient records.
type DoctorRef struct {
	ID         uuid.UUID `json:"id"`
	FullName   string    `json:"full_name"`
	Email      string    `json:"email"`
	IsAdmin    bool      `json:"is_admin"`
	IsActive   bool      `json:"is_active"`
	IsArchived bool      `json:"is_archived"`
}

func (d *Doctor) Ref() *DoctorRef {
	return &DoctorRef{
		ID:         d.ID,
		FullName:   d.FullName,
		Email:      d.Email,
		IsAdmin:    d.IsAdmin,
		IsActive:   d.IsActive,
		IsArchived: d.IsArchived,
	}
}

// DoctorAction is one entry of a doctor's action history.
type DoctorAction struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	DoctorID  uuid.UUID       `db:"doctor_id" json:"doctor_id"`
	Action    string          `db:"action" json:"action"`
	Details   json.RawMessage `db:"details" json:"details,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

const (
	ActionProfileUpdated  = "PROFILE_UPDATED"
	ActionPatientsImport  = "PATIENTS_IMPORTED"
	ActionBulkSMS         = "BULK_SMS_SENT"
	ActionAccountActivate = "ACCOUNT_ACTIVATED"
	ActionAccountArchive  = "ACCOUNT_ARCHIVED"
)

type RegisterDoctorRequest struct {
	FullName    string   `json:"full_name" binding:"required"`
	Email       string   `json:"email" binding:"required,email"`
	Password    string   `json:"password" binding:"required,min=8"`
	Address     string   `json:"address"`
	PostalCode  string   `json:"postal_code"`
	City        string   `json:"city"`
	Specialties []string `json:"specialties"`
}

type UpdateDoctorRequest struct {
	FullName    *string  `json:"full_name" binding:"omitempty,min=1"`
	Address     *string  `json:"address"`
	PostalCode  *string  `json:"postal_code"`
	City        *string  `json:"city"`
	Specialties []string `json:"specialties"`
}

type ArchiveDoctorRequest struct {
	Archived bool `json:"archived"`
}

// DoctorStats are the admin dashboard counters.
type DoctorStats struct {
	TotalDoctors    int `db:"total_doctors" json:"total_doctors"`
	ActiveDoctors   int `db:"active_doctors" json:"active_doctors"`
	ArchivedDoctors int `db:"archived_doctors" json:"archived_doctors"`
	TotalPatients   int `db:"total_patients" json:"total_patients"`
	TotalSMS        int `db:"total_sms" json:"total_sms"`
}
