package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis guarda cada documento numa chave string com o prefixo configurado.
// PutAll usa MULTI/EXEC, então o lote é aplicado inteiro ou não é aplicado.
type Redis struct {
	Client *redis.Client
	Prefix string
}

func NewRedis(c *redis.Client, prefix string) *Redis {
	return &Redis{Client: c, Prefix: prefix}
}

func (r *Redis) key(k string) string { return r.Prefix + k }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.Client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	if err := r.Client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) PutAll(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range entries {
			pipe.Set(ctx, r.key(k), v, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis multi/exec (%d keys): %w", len(entries), err)
	}
	return nil
}
