package model

import "github.com/shopspring/decimal"

const (
	PromotionTypeDiscount  = "descuento"
	PromotionTargetService = "servicio"
)

// promociones
type Promotion struct {
	ID         string           `json:"_id"`
	Name       string           `json:"nombre"`
	Type       string           `json:"tipo"`
	Target     string           `json:"destino"`
	Active     bool             `json:"activo"`
	Percentage *decimal.Decimal `json:"porcentaje,omitempty"`
	Amount     int64            `json:"cifra,omitempty"` // minor units
}

// DiscountsService reports whether the promotion reduces an appointment's service total.
func (p Promotion) DiscountsService() bool {
	return p.Active && p.Type == PromotionTypeDiscount && p.Target == PromotionTargetService
}

// HasPercentage mirrors the booking API: a zero percentage counts as absent.
func (p Promotion) HasPercentage() bool {
	return p.Percentage != nil && !p.Percentage.IsZero()
}
