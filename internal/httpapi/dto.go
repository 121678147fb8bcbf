package httpapi

import "time"

type CreateUserRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CreateEventRequest struct {
	Name    string     `json:"name"`
	Options []string   `json:"options"`
	EndsAt  *time.Time `json:"endsAt,omitempty"`
}

type PlaceBetRequest struct {
	UserID string `json:"userId"`
	Choice string `json:"choice"`
	Amount int64  `json:"amount"` // créditos inteiros
}

type ResolveRequest struct {
	Result string `json:"result"`
}

type OddsResponse struct {
	EventID  string             `json:"eventId"`
	Status   string             `json:"status"`
	Odds     map[string]float64 `json:"odds"`
	Totals   map[string]int64   `json:"totals"`
	Pool     int64              `json:"pool"`
	Resolved bool               `json:"resolved"`
	Result   string             `json:"result,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
