package lock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory é um mutex por chave dentro do processo. Cada chave é um canal de
// capacidade 1; entradas sem interessados são removidas do mapa.
type Memory struct {
	Wait time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewMemory(wait time.Duration) *Memory {
	return &Memory{Wait: wait, slots: make(map[string]*slot)}
}

func (m *Memory) Acquire(ctx context.Context, key string) (func(), error) {
	s := m.ref(key)

	// tentativa imediata antes de armar o timer
	select {
	case s.ch <- struct{}{}:
		return m.releaser(key, s), nil
	default:
	}

	timer := time.NewTimer(m.Wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
		return m.releaser(key, s), nil
	case <-ctx.Done():
		m.unref(key, s)
		return nil, fmt.Errorf("%w: %s: %v", ErrTimeout, key, ctx.Err())
	case <-timer.C:
		m.unref(key, s)
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, key, m.Wait)
	}
}

func (m *Memory) releaser(key string, s *slot) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			m.unref(key, s)
		})
	}
}

func (m *Memory) ref(key string) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.refs++
	return s
}

func (m *Memory) unref(key string, s *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
}

// keys é usado em testes para verificar a limpeza do mapa.
func (m *Memory) keys() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}
