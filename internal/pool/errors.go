package pool

import (
	"errors"
	"fmt"

	"github.com/radieske/betpool/internal/lock"
)

var (
	// ErrNotFound é devolvido pelas leituras (GetUser, GetEvent, ...).
	ErrNotFound = errors.New("not found")
	// ErrLockTimeout indica que o evento ou usuário ficou ocupado além da espera máxima.
	ErrLockTimeout = lock.ErrTimeout
)

// ValidationError: entrada inválida ou referência desconhecida. Nada foi gravado.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// EventResolvedError: aposta em evento já resolvido.
type EventResolvedError struct {
	EventID string
	Result  string
}

func (e *EventResolvedError) Error() string {
	return fmt.Sprintf("event %s is resolved (result %q), betting is closed", e.EventID, e.Result)
}

// AlreadyResolvedError: segunda tentativa de resolver o mesmo evento.
type AlreadyResolvedError struct {
	EventID string
	Result  string
}

func (e *AlreadyResolvedError) Error() string {
	return fmt.Sprintf("event %s already resolved with result %q", e.EventID, e.Result)
}

// StoreError embrulha falhas do ledger. A transação em curso não foi aplicada.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Kind classifica err para métricas e para o mapeamento de status HTTP.
func Kind(err error) string {
	var (
		ve  *ValidationError
		ere *EventResolvedError
		are *AlreadyResolvedError
		se  *StoreError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &ere):
		return "event_resolved"
	case errors.As(err, &are):
		return "already_resolved"
	case errors.Is(err, ErrLockTimeout):
		return "lock_timeout"
	case errors.As(err, &se):
		return "store"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
