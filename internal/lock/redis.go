package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// só remove a chave se o token ainda for o nosso (o TTL pode ter expirado)
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renova a expiração só enquanto o token for o nosso
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis implementa Locker com SET NX PX, para várias réplicas do pool-service.
// O lock é renovado a cada TTL/3 enquanto estiver seguro, então o TTL só
// limita quanto tempo a chave sobrevive a uma réplica que morreu segurando-a.
// Retry é o intervalo entre tentativas.
type Redis struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
	Wait   time.Duration
	Retry  time.Duration
}

func NewRedis(c *redis.Client, wait time.Duration) *Redis {
	return &Redis{
		Client: c,
		Prefix: "lock:",
		TTL:    10 * time.Second,
		Wait:   wait,
		Retry:  25 * time.Millisecond,
	}
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	k := r.Prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(r.Wait)

	for {
		ok, err := r.Client.SetNX(ctx, k, token, r.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return r.releaser(k, token), nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, key, r.Wait)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrTimeout, key, ctx.Err())
		case <-time.After(r.Retry):
		}
	}
}

func (r *Redis) releaser(key, token string) func() {
	stop := make(chan struct{})
	stopped := make(chan struct{})
	go r.renew(key, token, stop, stopped)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-stopped
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, r.Client, []string{key}, token).Err()
		})
	}
}

// renew estende a expiração até stop fechar ou o lock deixar de ser nosso.
func (r *Redis) renew(key, token string, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	if r.TTL <= 0 {
		// sem expiração, nada a renovar
		<-stop
		return
	}

	ticker := time.NewTicker(r.TTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.TTL/3)
			n, err := renewScript.Run(ctx, r.Client, []string{key}, token, r.TTL.Milliseconds()).Int()
			cancel()
			if err == nil && n == 0 {
				// chave expirou ou foi tomada; não há o que renovar
				return
			}
		}
	}
}
