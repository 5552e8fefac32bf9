package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Type of a local audit event.
type EventType string

const (
	EventTypeLogin            EventType = "login"
	EventTypeLogout           EventType = "logout"
	EventTypeSaleCreated      EventType = "sale_created"
	EventTypeWalletDebited    EventType = "wallet_debited"
	EventTypeNoShowMarked     EventType = "no_show_marked"
	EventTypeSettlementFailed EventType = "settlement_failed"
)

// events: local audit trail of actions sent to the booking API
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`

	CreatedAt time.Time `gorm:"not null;index"`

	UserID         string `gorm:"type:varchar(64);index"`
	AppointmentID  string `gorm:"type:varchar(64);index"`
	IdempotencyKey string `gorm:"type:varchar(64);index"`

	Details string `gorm:"type:text"`
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
