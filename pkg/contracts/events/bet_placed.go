package events

import "time"

type BetPlaced struct {
	BetID      string    `json:"bet_id"`
	UserID     string    `json:"user_id"`
	EventID    string    `json:"event_id"`
	Choice     string    `json:"choice"`
	Amount     int64     `json:"amount"`
	NewBalance int64     `json:"new_balance"`
	PlacedAt   time.Time `json:"placed_at"`
}
