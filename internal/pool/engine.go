// Package pool implementa o pool de apostas pari-mutuel: odds calculadas a
// partir do dinheiro apostado, débito na aposta e pagamento na resolução.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/betpool/internal/ledger"
	"github.com/radieske/betpool/internal/lock"
	"github.com/radieske/betpool/pkg/contracts/events"
	"github.com/radieske/betpool/pkg/contracts/topics"
)

const (
	DefaultUserName       = "Jogador"
	DefaultInitialBalance = 1000
	DefaultLeaderboard    = 10
)

// Publisher recebe os eventos de domínio depois do commit.
type Publisher interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
	PublishOddsUpdate(ctx context.Context, e events.OddsUpdate) error
	PublishEventResolved(ctx context.Context, e events.EventResolved) error
}

// Engine não guarda estado próprio: toda operação lê o ledger, calcula e
// grava de volta num único lote, sob os locks do evento e dos usuários.
type Engine struct {
	log   *zap.Logger
	store ledger.Store
	locks lock.Locker
	publ  Publisher

	InitialBalance int64
	Now            func() time.Time
	NewID          func() string

	OnBetPlaced    func(amount int64)    // métricas
	OnResolved     func(totalPaid int64) // métricas
	OnError        func(op, kind string) // métricas por operação
	OnPublishError func(topic string)    // métricas
}

func NewEngine(log *zap.Logger, store ledger.Store, locks lock.Locker, publ Publisher) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if publ == nil {
		publ = NopPublisher{}
	}
	return &Engine{
		log:            log,
		store:          store,
		locks:          locks,
		publ:           publ,
		InitialBalance: DefaultInitialBalance,
		Now:            func() time.Time { return time.Now().UTC() },
		NewID:          uuid.NewString,
	}
}

// EnsureUser devolve o usuário id, criando-o com o saldo inicial se ainda
// não existir. id vazio gera um novo identificador. created indica criação.
func (e *Engine) EnsureUser(ctx context.Context, id, name string) (u User, created bool, err error) {
	defer func() { e.fail("ensure_user", err) }()

	id = strings.TrimSpace(id)
	if id == "" {
		id = e.NewID()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultUserName
	}

	release, err := e.locks.Acquire(ctx, userKey(id))
	if err != nil {
		return User{}, false, fmt.Errorf("ensure user %s: %w", id, err)
	}
	defer release()

	existing, found, err := e.loadUser(ctx, id)
	if err != nil {
		return User{}, false, err
	}
	if found {
		return existing, false, nil
	}

	releaseIdx, err := e.locks.Acquire(ctx, usersIndexKey)
	if err != nil {
		return User{}, false, fmt.Errorf("ensure user %s: %w", id, err)
	}
	defer releaseIdx()

	ids, err := e.loadIndex(ctx, usersIndexKey)
	if err != nil {
		return User{}, false, err
	}

	u = User{ID: id, Name: name, Balance: e.InitialBalance, CreatedAt: e.Now()}
	b := batch{}
	if err := b.add(userKey(id), u); err != nil {
		return User{}, false, err
	}
	if err := b.add(usersIndexKey, append(ids, id)); err != nil {
		return User{}, false, err
	}
	if err := b.commit(ctx, e.store); err != nil {
		return User{}, false, err
	}

	e.log.Info("user created", zap.String("user_id", id), zap.Int64("balance", u.Balance))
	return u, true, nil
}

func (e *Engine) GetUser(ctx context.Context, id string) (User, error) {
	u, found, err := e.loadUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !found {
		return User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u, nil
}

// Leaderboard devolve os usuários com maior saldo, em ordem decrescente.
func (e *Engine) Leaderboard(ctx context.Context, limit int) ([]User, error) {
	if limit <= 0 {
		limit = DefaultLeaderboard
	}

	ids, err := e.loadIndex(ctx, usersIndexKey)
	if err != nil {
		return nil, err
	}

	users := make([]User, 0, len(ids))
	for _, id := range ids {
		u, found, err := e.loadUser(ctx, id)
		if err != nil {
			return nil, err
		}
		if found {
			users = append(users, u)
		}
	}

	sort.SliceStable(users, func(i, j int) bool {
		if users[i].Balance != users[j].Balance {
			return users[i].Balance > users[j].Balance
		}
		return users[i].ID < users[j].ID
	})
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// CreateEvent cria um evento aberto. Precisa de nome e de pelo menos duas
// opções distintas; espaços nas pontas são removidos.
func (e *Engine) CreateEvent(ctx context.Context, name string, options []string, endsAt *time.Time) (ev Event, err error) {
	defer func() { e.fail("create_event", err) }()

	name = strings.TrimSpace(name)
	if name == "" {
		return Event{}, &ValidationError{Field: "name", Reason: "required"}
	}

	opts := make([]string, 0, len(options))
	seen := make(map[string]struct{}, len(options))
	for _, o := range options {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if _, dup := seen[o]; dup {
			return Event{}, &ValidationError{Field: "options", Reason: fmt.Sprintf("duplicate option %q", o)}
		}
		seen[o] = struct{}{}
		opts = append(opts, o)
	}
	if len(opts) < 2 {
		return Event{}, &ValidationError{Field: "options", Reason: "at least 2 options required"}
	}

	ev = Event{
		ID:        e.NewID(),
		Name:      name,
		Options:   opts,
		CreatedAt: e.Now(),
		EndsAt:    endsAt,
	}

	release, err := e.locks.Acquire(ctx, eventsIndexKey)
	if err != nil {
		return Event{}, fmt.Errorf("create event: %w", err)
	}
	defer release()

	ids, err := e.loadIndex(ctx, eventsIndexKey)
	if err != nil {
		return Event{}, err
	}

	b := batch{}
	if err := b.add(eventKey(ev.ID), ev); err != nil {
		return Event{}, err
	}
	if err := b.add(eventsIndexKey, append(ids, ev.ID)); err != nil {
		return Event{}, err
	}
	if err := b.commit(ctx, e.store); err != nil {
		return Event{}, err
	}

	e.log.Info("event created", zap.String("event_id", ev.ID), zap.Strings("options", ev.Options))
	e.publishOdds(ctx, ev, nil)
	return ev, nil
}

func (e *Engine) GetEvent(ctx context.Context, id string) (Event, error) {
	ev, found, err := e.loadEvent(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if !found {
		return Event{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return ev, nil
}

// EventView devolve o evento com odds e totais recalculados agora.
func (e *Engine) EventView(ctx context.Context, id string) (EventView, error) {
	ev, err := e.GetEvent(ctx, id)
	if err != nil {
		return EventView{}, err
	}
	bets, _, err := e.loadBets(ctx, id)
	if err != nil {
		return EventView{}, err
	}
	return e.view(ev, bets), nil
}

// ListEvents devolve todos os eventos, mais recentes primeiro.
func (e *Engine) ListEvents(ctx context.Context) ([]EventView, error) {
	ids, err := e.loadIndex(ctx, eventsIndexKey)
	if err != nil {
		return nil, err
	}

	out := make([]EventView, 0, len(ids))
	for _, id := range ids {
		v, err := e.EventView(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// EventBets devolve as apostas do evento na ordem em que foram feitas.
func (e *Engine) EventBets(ctx context.Context, eventID string) ([]Bet, error) {
	if _, err := e.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	bets, _, err := e.loadBets(ctx, eventID)
	return bets, err
}

func (e *Engine) view(ev Event, bets []Bet) EventView {
	totals, pool := PoolTotals(ev, bets)
	return EventView{
		Event:    ev,
		Status:   ev.Status(e.Now()),
		Odds:     ComputeOdds(ev, bets),
		Totals:   totals,
		Pool:     pool,
		BetCount: len(bets),
	}
}

func (e *Engine) fail(op string, err error) {
	if err == nil {
		return
	}
	kind := Kind(err)
	if kind == "store" || kind == "internal" {
		e.log.Error("operation failed", zap.String("op", op), zap.String("kind", kind), zap.Error(err))
	} else {
		e.log.Debug("operation rejected", zap.String("op", op), zap.String("kind", kind), zap.Error(err))
	}
	if e.OnError != nil {
		e.OnError(op, kind)
	}
}

// publishCtx desacopla a publicação do cancelamento da requisição: o commit já aconteceu.
func publishCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
}

func (e *Engine) publishOdds(ctx context.Context, ev Event, bets []Bet) {
	totals, pool := PoolTotals(ev, bets)
	upd := events.OddsUpdate{
		EventID:   ev.ID,
		Odds:      ComputeOdds(ev, bets),
		Totals:    totals,
		Pool:      pool,
		Resolved:  ev.Resolved,
		Result:    ev.Result,
		Version:   len(bets),
		UpdatedAt: e.Now(),
	}

	pctx, cancel := publishCtx(ctx)
	defer cancel()
	if err := e.publ.PublishOddsUpdate(pctx, upd); err != nil {
		e.publishFailed(topics.OddsUpdates, ev.ID, err)
	}
}

func (e *Engine) publishFailed(topic, eventID string, err error) {
	e.log.Warn("publish failed", zap.String("topic", topic), zap.String("event_id", eventID), zap.Error(err))
	if e.OnPublishError != nil {
		e.OnPublishError(topic)
	}
}

// NopPublisher descarta os eventos; usado quando o Kafka não está configurado.
type NopPublisher struct{}

func (NopPublisher) PublishBetPlaced(context.Context, events.BetPlaced) error         { return nil }
func (NopPublisher) PublishOddsUpdate(context.Context, events.OddsUpdate) error       { return nil }
func (NopPublisher) PublishEventResolved(context.Context, events.EventResolved) error { return nil }
