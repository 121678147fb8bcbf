package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/radieske/betpool/internal/ledger"
	"github.com/radieske/betpool/internal/lock"
	"github.com/radieske/betpool/pkg/contracts/events"
)

var errDiskFull = errors.New("disk full")

// flakyStore falha PutAll sob demanda, para verificar que nada é aplicado pela metade.
type flakyStore struct {
	ledger.Store
	failPutAll atomic.Bool
}

func (f *flakyStore) PutAll(ctx context.Context, entries map[string][]byte) error {
	if f.failPutAll.Load() {
		return errDiskFull
	}
	return f.Store.PutAll(ctx, entries)
}

type recordingPublisher struct {
	mu       sync.Mutex
	placed   []events.BetPlaced
	odds     []events.OddsUpdate
	resolved []events.EventResolved
	err      error
}

func (p *recordingPublisher) PublishBetPlaced(_ context.Context, e events.BetPlaced) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, e)
	return p.err
}

func (p *recordingPublisher) PublishOddsUpdate(_ context.Context, e events.OddsUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.odds = append(p.odds, e)
	return p.err
}

func (p *recordingPublisher) PublishEventResolved(_ context.Context, e events.EventResolved) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolved = append(p.resolved, e)
	return p.err
}

type fixture struct {
	engine *Engine
	store  *flakyStore
	publ   *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := &flakyStore{Store: ledger.NewMemory()}
	publ := &recordingPublisher{}
	e := NewEngine(nil, store, lock.NewMemory(5*time.Second), publ)

	// relógio que avança um segundo a cada leitura
	var tick atomic.Int64
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	e.Now = func() time.Time { return base.Add(time.Duration(tick.Add(1)) * time.Second) }

	return &fixture{engine: e, store: store, publ: publ}
}

func (f *fixture) user(t *testing.T, id string, balance int64) User {
	t.Helper()
	f.engine.InitialBalance = balance
	u, created, err := f.engine.EnsureUser(context.Background(), id, "")
	require.NoError(t, err)
	require.True(t, created)
	return u
}

func (f *fixture) event(t *testing.T, name string, options ...string) Event {
	t.Helper()
	ev, err := f.engine.CreateEvent(context.Background(), name, options, nil)
	require.NoError(t, err)
	return ev
}

func (f *fixture) balance(t *testing.T, userID string) int64 {
	t.Helper()
	u, err := f.engine.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return u.Balance
}

func (f *fixture) bets(t *testing.T, eventID string) []Bet {
	t.Helper()
	bets, err := f.engine.EventBets(context.Background(), eventID)
	require.NoError(t, err)
	return bets
}
