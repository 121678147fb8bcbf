package pool

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/betpool/pkg/contracts/events"
	"github.com/radieske/betpool/pkg/contracts/topics"
)

// PlaceBet valida e grava uma aposta, debitando o saldo do usuário no mesmo
// lote. Validações, na ordem: evento existe, não está resolvido, choice é uma
// opção, amount > 0, amount <= saldo. Nenhuma falha deixa estado parcial.
func (e *Engine) PlaceBet(ctx context.Context, userID, eventID, choice string, amount int64) (Bet, error) {
	bet, ev, bets, balance, err := e.placeBet(ctx, userID, eventID, choice, amount)
	if err != nil {
		e.fail("place_bet", err)
		return Bet{}, err
	}

	e.log.Info("bet placed",
		zap.String("bet_id", bet.ID),
		zap.String("event_id", bet.EventID),
		zap.String("user_id", bet.UserID),
		zap.String("choice", bet.Choice),
		zap.Int64("amount", bet.Amount),
	)
	if e.OnBetPlaced != nil {
		e.OnBetPlaced(bet.Amount)
	}

	pctx, cancel := publishCtx(ctx)
	defer cancel()
	if err := e.publ.PublishBetPlaced(pctx, events.BetPlaced{
		BetID:      bet.ID,
		UserID:     bet.UserID,
		EventID:    bet.EventID,
		Choice:     bet.Choice,
		Amount:     bet.Amount,
		NewBalance: balance,
		PlacedAt:   bet.CreatedAt,
	}); err != nil {
		e.publishFailed(topics.BetPlaced, bet.EventID, err)
	}
	if bets != nil {
		e.publishOdds(ctx, ev, bets)
	}

	return bet, nil
}

// placeBet roda sob o lock do evento e depois o do usuário. Devolve também o
// pool já com a nova aposta, lido ainda sob o lock, para a atualização de odds.
func (e *Engine) placeBet(ctx context.Context, userID, eventID, choice string, amount int64) (Bet, Event, []Bet, int64, error) {
	releaseEvent, err := e.locks.Acquire(ctx, eventKey(eventID))
	if err != nil {
		return Bet{}, Event{}, nil, 0, fmt.Errorf("place bet on %s: %w", eventID, err)
	}
	defer releaseEvent()

	ev, found, err := e.loadEvent(ctx, eventID)
	if err != nil {
		return Bet{}, Event{}, nil, 0, err
	}
	if !found {
		return Bet{}, Event{}, nil, 0, &ValidationError{Field: "eventId", Reason: fmt.Sprintf("unknown event %q", eventID)}
	}
	if ev.Resolved {
		return Bet{}, Event{}, nil, 0, &EventResolvedError{EventID: ev.ID, Result: ev.Result}
	}
	if !ev.HasOption(choice) {
		return Bet{}, Event{}, nil, 0, &ValidationError{Field: "choice", Reason: fmt.Sprintf("%q is not an option of event %s", choice, ev.ID)}
	}
	if amount <= 0 {
		return Bet{}, Event{}, nil, 0, &ValidationError{Field: "amount", Reason: "must be positive"}
	}

	releaseUser, err := e.locks.Acquire(ctx, userKey(userID))
	if err != nil {
		return Bet{}, Event{}, nil, 0, fmt.Errorf("place bet for %s: %w", userID, err)
	}
	defer releaseUser()

	u, found, err := e.loadUser(ctx, userID)
	if err != nil {
		return Bet{}, Event{}, nil, 0, err
	}
	if !found {
		return Bet{}, Event{}, nil, 0, &ValidationError{Field: "userId", Reason: fmt.Sprintf("unknown user %q", userID)}
	}
	if amount > u.Balance {
		return Bet{}, Event{}, nil, 0, &ValidationError{Field: "amount", Reason: fmt.Sprintf("insufficient balance: have %d, need %d", u.Balance, amount)}
	}

	ids, err := e.loadIndex(ctx, eventBetsKey(eventID))
	if err != nil {
		return Bet{}, Event{}, nil, 0, err
	}

	bet := Bet{
		ID:        e.NewID(),
		EventID:   ev.ID,
		Choice:    choice,
		Amount:    amount,
		UserID:    u.ID,
		CreatedAt: e.Now(),
	}
	u.Balance -= amount

	b := batch{}
	if err := b.add(betKey(bet.ID), bet); err != nil {
		return Bet{}, Event{}, nil, 0, err
	}
	if err := b.add(eventBetsKey(ev.ID), append(ids, bet.ID)); err != nil {
		return Bet{}, Event{}, nil, 0, err
	}
	if err := b.add(userKey(u.ID), u); err != nil {
		return Bet{}, Event{}, nil, 0, err
	}
	if err := b.commit(ctx, e.store); err != nil {
		return Bet{}, Event{}, nil, 0, err
	}

	// a aposta já está gravada; falha aqui só impede a atualização de odds
	bets, _, err := e.loadBets(ctx, ev.ID)
	if err != nil {
		e.log.Warn("reload pool after bet failed", zap.String("event_id", ev.ID), zap.Error(err))
		bets = nil
	}
	return bet, ev, bets, u.Balance, nil
}
