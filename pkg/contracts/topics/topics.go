package topics

const (
	// Odds do pool
	OddsUpdates = "pool_odds_updates"

	// Apostas e resolução
	BetPlaced     = "pool_bet_placed"
	EventResolved = "pool_event_resolved"
)
