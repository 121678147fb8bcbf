package pool

import "math"

const (
	// EvenOdds é o multiplicador de todas as opções enquanto o pool está vazio.
	EvenOdds = 2.0
	// UncoveredOdds vale para uma opção sem apostas quando o pool já tem dinheiro.
	UncoveredOdds = 5.0
	// MinOdds é o piso do multiplicador de uma opção com apostas.
	MinOdds = 1.2
	// HouseFactor aplica a margem da casa (10%) sobre o pagamento justo 1/share.
	HouseFactor = 0.9
)

// PoolTotals soma o valor apostado em cada opção do evento. Apostas de
// outros eventos ou em opções desconhecidas são ignoradas.
func PoolTotals(ev Event, bets []Bet) (map[string]int64, int64) {
	totals := make(map[string]int64, len(ev.Options))
	for _, o := range ev.Options {
		totals[o] = 0
	}

	var pool int64
	for _, b := range bets {
		if b.EventID != ev.ID {
			continue
		}
		if _, ok := totals[b.Choice]; !ok {
			continue
		}
		totals[b.Choice] += b.Amount
		pool += b.Amount
	}
	return totals, pool
}

// ComputeOdds calcula o multiplicador atual de cada opção a partir do pool.
// Não guarda estado: toda nova aposta muda o resultado.
func ComputeOdds(ev Event, bets []Bet) Odds {
	totals, pool := PoolTotals(ev, bets)

	odds := make(Odds, len(ev.Options))
	for _, o := range ev.Options {
		var m float64
		switch {
		case pool == 0:
			m = EvenOdds
		case totals[o] == 0:
			m = UncoveredOdds
		default:
			share := float64(totals[o]) / float64(pool)
			m = math.Max(MinOdds, (1/share)*HouseFactor)
		}
		odds[o] = round2(m)
	}
	return odds
}

// PayoutFor é o crédito de uma aposta vencedora: stake * multiplicador,
// arredondado para o crédito inteiro mais próximo.
func PayoutFor(stake int64, multiplier float64) int64 {
	return int64(math.Round(float64(stake) * multiplier))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
