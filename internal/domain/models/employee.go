package models

// Employee is an identified actor from the Users reference tab.
type Employee struct {
	TelegramID string `json:"telegram_id"`
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       string `json:"role,omitempty"`
	Active     bool   `json:"active"`
}

// ActorGates are the two independent access booleans consulted before any
// report entry is allowed. Either being false is terminal for the session.
type ActorGates struct {
	Registered bool `json:"is_registered"`
	Active     bool `json:"is_active"`
}
