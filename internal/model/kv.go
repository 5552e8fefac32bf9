package model

import (
	"time"

	"gorm.io/datatypes"
)

// Fixed keys of the durable key-value storage.
const (
	KeySessionToken     = "session.token"
	KeySessionUser      = "session.user"
	KeyLastAppointments = "appointments.last"
)

// kv_entries
type KVEntry struct {
	Key       string         `gorm:"column:entry_key;type:varchar(128);primaryKey"`
	Value     datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (KVEntry) TableName() string { return "kv_entries" }

// AppointmentSnapshot is the best-effort copy of the last fetched list, kept for
// emergency display when the API is unreachable.
type AppointmentSnapshot struct {
	Date         string        `json:"date"`
	SavedAt      time.Time     `json:"savedAt"`
	Appointments []Appointment `json:"appointments"`
}
