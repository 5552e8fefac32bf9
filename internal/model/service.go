package model

// servicios; Price is in minor currency units.
type Service struct {
	ID       string `json:"_id"`
	Name     string `json:"nombre"`
	Price    int64  `json:"precio"`
	Duration int64  `json:"duracion,omitempty"` // minutes
	Active   *bool  `json:"activo,omitempty"`
}

// variantes; AdditionalPrice is in minor currency units and optional.
type Variant struct {
	ID              string `json:"_id"`
	Name            string `json:"nombre"`
	AdditionalPrice *int64 `json:"precioAdicional,omitempty"`
}

// Extra returns the additional price in minor units, zero when absent.
func (v Variant) Extra() int64 {
	if v.AdditionalPrice == nil {
		return 0
	}
	return *v.AdditionalPrice
}
