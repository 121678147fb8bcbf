package events

import "time"

// Evento publicado no tópico "pool_odds_updates" após cada aposta e na resolução.
// Odds e Totals são indexados pelo rótulo da opção.
type OddsUpdate struct {
	EventID   string             `json:"event_id"`
	Odds      map[string]float64 `json:"odds"`
	Totals    map[string]int64   `json:"totals"`
	Pool      int64              `json:"pool"`
	Resolved  bool               `json:"resolved"`
	Result    string             `json:"result,omitempty"`
	Version   int                `json:"version"` // número de apostas no pool
	UpdatedAt time.Time          `json:"updated_at"`
}
