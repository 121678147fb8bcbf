package pool

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/radieske/betpool/internal/ledger"
	"github.com/radieske/betpool/internal/lock"
	"github.com/radieske/betpool/pkg/contracts/events"
	"github.com/radieske/betpool/pkg/contracts/topics"
)

// ResolveEvent declara o resultado do evento e paga as apostas vencedoras.
// O evento resolvido e todos os créditos são gravados num único lote: ou
// tudo é aplicado, ou nada. Uma segunda chamada falha com AlreadyResolvedError.
func (e *Engine) ResolveEvent(ctx context.Context, eventID, winning string) (PayoutSummary, error) {
	sum, ev, bets, err := e.resolve(ctx, eventID, winning)
	if err != nil {
		e.fail("resolve_event", err)
		return PayoutSummary{}, err
	}

	e.log.Info("event resolved",
		zap.String("event_id", sum.EventID),
		zap.String("result", sum.Result),
		zap.Int64("pool", sum.Pool),
		zap.Int("winners", len(sum.Payouts)),
		zap.Int64("total_paid", sum.TotalPaid),
	)
	if e.OnResolved != nil {
		e.OnResolved(sum.TotalPaid)
	}

	payouts := make([]events.Payout, 0, len(sum.Payouts))
	for _, p := range sum.Payouts {
		payouts = append(payouts, events.Payout{BetID: p.BetID, UserID: p.UserID, Stake: p.Stake, Amount: p.Amount})
	}

	pctx, cancel := publishCtx(ctx)
	defer cancel()
	if err := e.publ.PublishEventResolved(pctx, events.EventResolved{
		EventID:    sum.EventID,
		Result:     sum.Result,
		Odds:       sum.Odds,
		Pool:       sum.Pool,
		TotalPaid:  sum.TotalPaid,
		Payouts:    payouts,
		ResolvedAt: *ev.ResolvedAt,
	}); err != nil {
		e.publishFailed(topics.EventResolved, sum.EventID, err)
	}
	e.publishOdds(ctx, ev, bets)

	return sum, nil
}

// resolve segura o lock do evento do começo ao fim. Como PlaceBet precisa do
// mesmo lock, o pool pago é exatamente o conjunto de apostas visível aqui, e
// qualquer aposta que chegue depois vê o evento resolvido.
func (e *Engine) resolve(ctx context.Context, eventID, winning string) (PayoutSummary, Event, []Bet, error) {
	releaseEvent, err := e.locks.Acquire(ctx, eventKey(eventID))
	if err != nil {
		return PayoutSummary{}, Event{}, nil, fmt.Errorf("resolve %s: %w", eventID, err)
	}
	defer releaseEvent()

	ev, found, err := e.loadEvent(ctx, eventID)
	if err != nil {
		return PayoutSummary{}, Event{}, nil, err
	}
	if !found {
		return PayoutSummary{}, Event{}, nil, &ValidationError{Field: "eventId", Reason: fmt.Sprintf("unknown event %q", eventID)}
	}
	if ev.Resolved {
		return PayoutSummary{}, Event{}, nil, &AlreadyResolvedError{EventID: ev.ID, Result: ev.Result}
	}
	if !ev.HasOption(winning) {
		return PayoutSummary{}, Event{}, nil, &ValidationError{Field: "result", Reason: fmt.Sprintf("%q is not an option of event %s", winning, ev.ID)}
	}

	bets, _, err := e.loadBets(ctx, ev.ID)
	if err != nil {
		return PayoutSummary{}, Event{}, nil, err
	}

	odds := ComputeOdds(ev, bets)
	_, pool := PoolTotals(ev, bets)
	sum := PayoutSummary{
		EventID: ev.ID,
		Result:  winning,
		Odds:    odds,
		Pool:    pool,
		Payouts: []Payout{},
	}

	credits := make(map[string]int64)
	for _, b := range bets {
		if b.Choice != winning {
			continue
		}
		amt := PayoutFor(b.Amount, odds[winning])
		sum.Payouts = append(sum.Payouts, Payout{BetID: b.ID, UserID: b.UserID, Stake: b.Amount, Amount: amt})
		sum.TotalPaid += amt
		credits[b.UserID] += amt
	}

	userIDs := make([]string, 0, len(credits))
	lockKeys := make([]string, 0, len(credits))
	for id := range credits {
		userIDs = append(userIDs, id)
		lockKeys = append(lockKeys, userKey(id))
	}
	sort.Strings(userIDs)

	releaseUsers, err := lock.AcquireAll(ctx, e.locks, lockKeys)
	if err != nil {
		return PayoutSummary{}, Event{}, nil, fmt.Errorf("resolve %s: %w", eventID, err)
	}
	defer releaseUsers()

	now := e.Now()
	ev.Resolved = true
	ev.Result = winning
	ev.ResolvedAt = &now

	b := batch{}
	if err := b.add(eventKey(ev.ID), ev); err != nil {
		return PayoutSummary{}, Event{}, nil, err
	}
	for _, id := range userIDs {
		u, found, err := e.loadUser(ctx, id)
		if err != nil {
			return PayoutSummary{}, Event{}, nil, err
		}
		if !found {
			return PayoutSummary{}, Event{}, nil, &StoreError{Op: "get", Key: userKey(id), Err: ledger.ErrNotFound}
		}
		u.Balance += credits[id]
		if err := b.add(userKey(id), u); err != nil {
			return PayoutSummary{}, Event{}, nil, err
		}
	}
	if err := b.commit(ctx, e.store); err != nil {
		return PayoutSummary{}, Event{}, nil, err
	}

	return sum, ev, bets, nil
}
