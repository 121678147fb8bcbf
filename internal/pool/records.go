package pool

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/radieske/betpool/internal/ledger"
)

// Chaves no ledger. As mesmas strings servem de chave de lock.
const (
	usersIndexKey  = "index:users"
	eventsIndexKey = "index:events"
)

func userKey(id string) string      { return "user:" + id }
func eventKey(id string) string     { return "event:" + id }
func betKey(id string) string       { return "bet:" + id }
func eventBetsKey(id string) string { return "event:" + id + ":bets" }

// getJSON lê key em dst. found=false quando a chave não existe.
func getJSON(ctx context.Context, s ledger.Store, key string, dst any) (bool, error) {
	b, err := s.Get(ctx, key)
	if errors.Is(err, ledger.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &StoreError{Op: "get", Key: key, Err: err}
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, &StoreError{Op: "decode", Key: key, Err: err}
	}
	return true, nil
}

// batch acumula documentos para um único PutAll.
type batch map[string][]byte

func (b batch) add(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return &StoreError{Op: "encode", Key: key, Err: err}
	}
	b[key] = raw
	return nil
}

func (b batch) commit(ctx context.Context, s ledger.Store) error {
	if err := s.PutAll(ctx, b); err != nil {
		return &StoreError{Op: "put_all", Err: err}
	}
	return nil
}

func (e *Engine) loadUser(ctx context.Context, id string) (User, bool, error) {
	var u User
	found, err := getJSON(ctx, e.store, userKey(id), &u)
	return u, found, err
}

func (e *Engine) loadEvent(ctx context.Context, id string) (Event, bool, error) {
	var ev Event
	found, err := getJSON(ctx, e.store, eventKey(id), &ev)
	return ev, found, err
}

// loadIndex devolve a lista de ids gravada em key; ausente é lista vazia.
func (e *Engine) loadIndex(ctx context.Context, key string) ([]string, error) {
	var ids []string
	if _, err := getJSON(ctx, e.store, key, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// loadBets lê as apostas do evento na ordem em que foram feitas.
func (e *Engine) loadBets(ctx context.Context, eventID string) ([]Bet, []string, error) {
	ids, err := e.loadIndex(ctx, eventBetsKey(eventID))
	if err != nil {
		return nil, nil, err
	}

	bets := make([]Bet, 0, len(ids))
	for _, id := range ids {
		var b Bet
		found, err := getJSON(ctx, e.store, betKey(id), &b)
		if err != nil {
			return nil, nil, err
		}
		if !found {
			return nil, nil, &StoreError{Op: "get", Key: betKey(id), Err: ledger.ErrNotFound}
		}
		bets = append(bets, b)
	}
	return bets, ids, nil
}
