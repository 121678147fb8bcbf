package events

import "time"

// Evento emitido uma única vez, quando o resultado de um evento é declarado.
type EventResolved struct {
	EventID    string             `json:"event_id"`
	Result     string             `json:"result"`
	Odds       map[string]float64 `json:"odds"`
	Pool       int64              `json:"pool"`
	TotalPaid  int64              `json:"total_paid"`
	Payouts    []Payout           `json:"payouts"`
	ResolvedAt time.Time          `json:"resolved_at"`
}

type Payout struct {
	BetID  string `json:"bet_id"`
	UserID string `json:"user_id"`
	Stake  int64  `json:"stake"`
	Amount int64  `json:"amount"`
}
