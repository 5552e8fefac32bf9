package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lifecycle state of an appointment as reported by the booking API.
type AppointmentState string

const (
	AppointmentStateActive   AppointmentState = "activa"
	AppointmentStateNoShow   AppointmentState = "no_presentado"
	AppointmentStateCanceled AppointmentState = "cancelada"
)

// GraceWindow is how long a paid appointment stays visible after its scheduled time.
const GraceWindow = 15 * time.Minute

// citas
type Appointment struct {
	ID           string           `json:"_id"`
	Date         time.Time        `json:"fecha"`
	Amount       decimal.Decimal  `json:"importe"`
	Paid         bool             `json:"pagada"`
	State        AppointmentState `json:"estado"`
	Services     []Service        `json:"servicios"`
	Variants     []Variant        `json:"variantes"`
	PromotionIDs []string         `json:"promocion"`
	Customer     Customer         `json:"usuario"`
	Branch       Branch           `json:"sucursal"`
	Professional Professional     `json:"profesional"`
	Company      string           `json:"empresa"`
	Comments     Comments         `json:"comentarios,omitempty"`
}

// HiddenAt reports whether the appointment drops out of the active list at now.
// Only paid appointments past their grace window are hidden.
func (a Appointment) HiddenAt(now time.Time) bool {
	return a.Paid && now.After(a.Date.Add(GraceWindow))
}

// PrimaryService returns the first booked service, if any.
func (a Appointment) PrimaryService() *Service {
	if len(a.Services) == 0 {
		return nil
	}
	s := a.Services[0]
	return &s
}

// Customer is the booking's client together with the prepaid wallet balance.
type Customer struct {
	ID            string          `json:"_id"`
	Name          string          `json:"nombre"`
	Email         string          `json:"email,omitempty"`
	Phone         string          `json:"telefono,omitempty"`
	WalletBalance decimal.Decimal `json:"saldoMonedero"`
}

type Branch struct {
	ID   string `json:"_id"`
	Name string `json:"nombre"`
}

type Professional struct {
	ID   string `json:"_id"`
	Name string `json:"nombre"`
}
