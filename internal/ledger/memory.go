package ledger

import (
	"context"
	"sync"
)

// Memory mantém os documentos em memória, protegidos por um RWMutex.
// Os valores são copiados na entrada e na saída.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(v), nil
}

func (m *Memory) Put(ctx context.Context, key string, value []byte) error {
	return m.PutAll(ctx, map[string][]byte{key: value})
}

func (m *Memory) PutAll(ctx context.Context, entries map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range entries {
		m.data[k] = clone(v)
	}
	return nil
}

// Len é usado em testes e no health check local.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
