package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlaceBetDebitsBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice", 1000)
	ev := f.event(t, "Match", "A", "B")

	bet, err := f.engine.PlaceBet(ctx, u.ID, ev.ID, "A", 250)
	require.NoError(t, err)
	require.NotEmpty(t, bet.ID)
	require.Equal(t, ev.ID, bet.EventID)
	require.Equal(t, "A", bet.Choice)
	require.EqualValues(t, 250, bet.Amount)
	require.Equal(t, u.ID, bet.UserID)

	require.EqualValues(t, 750, f.balance(t, u.ID))
	require.Equal(t, []Bet{bet}, f.bets(t, ev.ID))

	// o saldo inteiro também pode ser apostado
	_, err = f.engine.PlaceBet(ctx, u.ID, ev.ID, "B", 750)
	require.NoError(t, err)
	require.EqualValues(t, 0, f.balance(t, u.ID))
	require.Len(t, f.bets(t, ev.ID), 2)
}

func TestPlaceBetPublishesOdds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice", 1000)
	ev := f.event(t, "Match", "A", "B")

	_, err := f.engine.PlaceBet(ctx, u.ID, ev.ID, "A", 100)
	require.NoError(t, err)

	require.Len(t, f.publ.placed, 1)
	require.EqualValues(t, 900, f.publ.placed[0].NewBalance)

	last := f.publ.odds[len(f.publ.odds)-1]
	require.Equal(t, ev.ID, last.EventID)
	require.Equal(t, 1, last.Version)
	require.EqualValues(t, 100, last.Pool)
	require.Equal(t, map[string]float64{"A": 1.2, "B": 5.0}, last.Odds)
}

func TestPlaceBetPublishFailureKeepsBet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice", 1000)
	ev := f.event(t, "Match", "A", "B")

	var publishErrors int
	f.engine.OnPublishError = func(string) { publishErrors++ }
	f.publ.err = errors.New("kafka down")

	_, err := f.engine.PlaceBet(ctx, u.ID, ev.ID, "A", 100)
	require.NoError(t, err)
	require.EqualValues(t, 900, f.balance(t, u.ID))
	require.Equal(t, 2, publishErrors)
}

func TestPlaceBetValidation(t *testing.T) {
	tests := []struct {
		name   string
		user   string
		event  func(ev Event) string
		choice string
		amount int64
		field  string
	}{
		{name: "unknown event", user: "alice", event: func(Event) string { return "nope" }, choice: "A", amount: 10, field: "eventId"},
		{name: "unknown option", user: "alice", choice: "C", amount: 10, field: "choice"},
		{name: "zero amount", user: "alice", choice: "A", amount: 0, field: "amount"},
		{name: "negative amount", user: "alice", choice: "A", amount: -5, field: "amount"},
		{name: "unknown user", user: "bob", choice: "A", amount: 10, field: "userId"},
		{name: "insufficient balance", user: "alice", choice: "A", amount: 101, field: "amount"},
		// a ordem importa: opção inválida é reportada antes do valor
		{name: "option checked before amount", user: "alice", choice: "Z", amount: -1, field: "choice"},
		{name: "amount checked before user", user: "ghost", choice: "A", amount: 0, field: "amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.user(t, "alice", 100)
			ev := f.event(t, "Match", "A", "B")
			eventID := ev.ID
			if tt.event != nil {
				eventID = tt.event(ev)
			}

			var kinds []string
			f.engine.OnError = func(op, kind string) { kinds = append(kinds, op+"/"+kind) }

			_, err := f.engine.PlaceBet(ctx, tt.user, eventID, tt.choice, tt.amount)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			require.Equal(t, tt.field, ve.Field)
			require.Equal(t, "validation", Kind(err))
			require.Equal(t, []string{"place_bet/validation"}, kinds)

			require.EqualValues(t, 100, f.balance(t, "alice"))
			require.Empty(t, f.bets(t, ev.ID))
			require.Empty(t, f.publ.placed)
		})
	}
}

func TestPlaceBetOnResolvedEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice", 1000)
	ev := f.event(t, "Match", "A", "B")

	_, err := f.engine.ResolveEvent(ctx, ev.ID, "A")
	require.NoError(t, err)

	_, err = f.engine.PlaceBet(ctx, u.ID, ev.ID, "A", 10)
	var ere *EventResolvedError
	require.ErrorAs(t, err, &ere)
	require.Equal(t, ev.ID, ere.EventID)
	require.Equal(t, "A", ere.Result)
	require.EqualValues(t, 1000, f.balance(t, u.ID))

	// o evento resolvido é checado antes da opção
	_, err = f.engine.PlaceBet(ctx, u.ID, ev.ID, "nope", 10)
	require.ErrorAs(t, err, &ere)
}

func TestPlaceBetStoreFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice", 1000)
	ev := f.event(t, "Match", "A", "B")

	f.store.failPutAll.Store(true)
	_, err := f.engine.PlaceBet(ctx, u.ID, ev.ID, "A", 100)
	var se *StoreError
	require.ErrorAs(t, err, &se)
	require.ErrorIs(t, err, errDiskFull)
	require.Equal(t, "store", Kind(err))

	f.store.failPutAll.Store(false)
	require.EqualValues(t, 1000, f.balance(t, u.ID))
	require.Empty(t, f.bets(t, ev.ID))

	_, err = f.engine.PlaceBet(ctx, u.ID, ev.ID, "A", 100)
	require.NoError(t, err)
	require.EqualValues(t, 900, f.balance(t, u.ID))
}

func TestConcurrentBetsKeepExactPool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.event(t, "Derby", "H", "D", "A")

	const users = 8
	const betsPerUser = 25
	for i := 0; i < users; i++ {
		f.user(t, fmt.Sprintf("u%d", i), 300)
	}

	var (
		mu       sync.Mutex
		accepted = map[string]int64{}
		wg       sync.WaitGroup
	)
	for i := 0; i < users; i++ {
		for j := 0; j < betsPerUser; j++ {
			wg.Add(1)
			go func(uid string, amount int64, choice string) {
				defer wg.Done()
				_, err := f.engine.PlaceBet(ctx, uid, ev.ID, choice, amount)
				if err != nil {
					var ve *ValidationError
					if !errors.As(err, &ve) || ve.Field != "amount" {
						t.Errorf("unexpected error: %v", err)
					}
					return
				}
				mu.Lock()
				accepted[uid] += amount
				mu.Unlock()
			}(fmt.Sprintf("u%d", i), int64(j%7+10), ev.Options[j%3])
		}
	}
	wg.Wait()

	var sum int64
	for i := 0; i < users; i++ {
		uid := fmt.Sprintf("u%d", i)
		sum += accepted[uid]
		require.EqualValues(t, 300-accepted[uid], f.balance(t, uid), uid)
		require.GreaterOrEqual(t, f.balance(t, uid), int64(0))
	}

	view, err := f.engine.EventView(ctx, ev.ID)
	require.NoError(t, err)
	require.Equal(t, sum, view.Pool)

	var fromBets int64
	for _, b := range f.bets(t, ev.ID) {
		fromBets += b.Amount
	}
	require.Equal(t, sum, fromBets)
}

func TestConcurrentBetsSameUserNoLostUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice", 1000)
	evA := f.event(t, "One", "A", "B")
	evB := f.event(t, "Two", "A", "B")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ev := evA
			if i%2 == 1 {
				ev = evB
			}
			if _, err := f.engine.PlaceBet(ctx, u.ID, ev.ID, "A", 10); err != nil {
				t.Errorf("place bet: %v", err)
			}
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 500, f.balance(t, u.ID))
	require.Len(t, f.bets(t, evA.ID), 25)
	require.Len(t, f.bets(t, evB.ID), 25)
}
