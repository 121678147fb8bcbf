// Package ledger guarda usuários, eventos e apostas como documentos
// num armazenamento chave-valor. O engine só depende de Store.
package ledger

import (
	"context"
	"errors"
)

// ErrNotFound indica que a chave não existe no armazenamento.
var ErrNotFound = errors.New("ledger: key not found")

// Store é o contrato mínimo do armazenamento: leitura por chave, escrita
// por chave e escrita em lote atômica (tudo ou nada).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	PutAll(ctx context.Context, entries map[string][]byte) error
}
