package model

// Staff member authenticated against the booking API.
type User struct {
	ID      string `json:"_id"`
	Name    string `json:"nombre"`
	Email   string `json:"email"`
	Role    string `json:"rol"`
	Company string `json:"empresa"`
	Active  *bool  `json:"activo,omitempty"`
}

// Session is the authenticated token plus the identity it belongs to.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
