package pool

import (
	"slices"
	"time"
)

// User é o dono de um saldo em créditos inteiros.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"createdAt"`
}

// Event é um evento com opções nomeadas. Resolved é terminal:
// Result só é preenchido quando Resolved é true.
type Event struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Options    []string   `json:"options"`
	CreatedAt  time.Time  `json:"createdAt"`
	EndsAt     *time.Time `json:"endsAt,omitempty"`
	Resolved   bool       `json:"resolved"`
	Result     string     `json:"result,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

func (e Event) HasOption(o string) bool { return slices.Contains(e.Options, o) }

// Status é informativo: o prazo (EndsAt) não bloqueia apostas,
// somente a resolução fecha o evento.
func (e Event) Status(now time.Time) string {
	switch {
	case e.Resolved:
		return StatusResolved
	case e.EndsAt != nil && now.After(*e.EndsAt):
		return StatusClosed
	default:
		return StatusOpen
	}
}

const (
	StatusOpen     = "open"
	StatusClosed   = "closed"
	StatusResolved = "resolved"
)

// Bet é imutável depois de gravada.
type Bet struct {
	ID        string    `json:"id"`
	EventID   string    `json:"eventId"`
	Choice    string    `json:"choice"`
	Amount    int64     `json:"amount"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Odds mapeia cada opção ao multiplicador de pagamento.
type Odds map[string]float64

// EventView é o evento com o estado atual do pool, calculado na leitura.
type EventView struct {
	Event
	Status   string           `json:"status"`
	Odds     Odds             `json:"odds"`
	Totals   map[string]int64 `json:"totals"`
	Pool     int64            `json:"pool"`
	BetCount int              `json:"betCount"`
}

type Payout struct {
	BetID  string `json:"betId"`
	UserID string `json:"userId"`
	Stake  int64  `json:"stake"`
	Amount int64  `json:"amount"`
}

// PayoutSummary é o resultado de uma resolução.
type PayoutSummary struct {
	EventID   string   `json:"eventId"`
	Result    string   `json:"result"`
	Odds      Odds     `json:"odds"`
	Pool      int64    `json:"pool"`
	Payouts   []Payout `json:"payouts"`
	TotalPaid int64    `json:"totalPaid"`
}
