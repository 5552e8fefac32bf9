package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment method identifiers understood by the booking API.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "efectivo"
	PaymentMethodCard   PaymentMethod = "tarjeta"
	PaymentMethodWallet PaymentMethod = "monedero"
)

// PaymentMethods lists the methods in settlement order.
var PaymentMethods = []PaymentMethod{PaymentMethodCash, PaymentMethodCard, PaymentMethodWallet}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodWallet:
		return true
	}
	return false
}

// ventas
type Sale struct {
	ID            string          `json:"_id"`
	AppointmentID string          `json:"cita"`
	Method        PaymentMethod   `json:"metodoPago"`
	Amount        decimal.Decimal `json:"importe"`
	Company       string          `json:"empresa,omitempty"`
	CreatedAt     *time.Time      `json:"createdAt,omitempty"`
}

// movimientos de monedero
type WalletMovement struct {
	ID            string          `json:"_id"`
	CustomerID    string          `json:"usuario"`
	AppointmentID string          `json:"cita"`
	Amount        decimal.Decimal `json:"importe"`
	Balance       decimal.Decimal `json:"saldoResultante"`
}
