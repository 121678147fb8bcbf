package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func lockers(t *testing.T, wait time.Duration) map[string]Locker {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	rl := NewRedis(rdb, wait)
	rl.Retry = 5 * time.Millisecond

	return map[string]Locker{
		"memory": NewMemory(wait),
		"redis":  rl,
	}
}

func TestLockerExclusive(t *testing.T) {
	for name, l := range lockers(t, 2*time.Second) {
		t.Run(name, func(t *testing.T) {
			var inside, maxInside int32
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					release, err := l.Acquire(context.Background(), "event:1")
					if err != nil {
						t.Error(err)
						return
					}
					n := atomic.AddInt32(&inside, 1)
					for {
						m := atomic.LoadInt32(&maxInside)
						if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
							break
						}
					}
					time.Sleep(time.Millisecond)
					atomic.AddInt32(&inside, -1)
					release()
				}()
			}
			wg.Wait()
			require.EqualValues(t, 1, maxInside)
		})
	}
}

func TestLockerTimesOut(t *testing.T) {
	for name, l := range lockers(t, 30*time.Millisecond) {
		t.Run(name, func(t *testing.T) {
			release, err := l.Acquire(context.Background(), "event:busy")
			require.NoError(t, err)
			defer release()

			start := time.Now()
			_, err = l.Acquire(context.Background(), "event:busy")
			require.ErrorIs(t, err, ErrTimeout)
			require.Less(t, time.Since(start), time.Second)

			// chaves diferentes não disputam
			other, err := l.Acquire(context.Background(), "event:other")
			require.NoError(t, err)
			other()
		})
	}
}

func TestLockerHonoursContext(t *testing.T) {
	for name, l := range lockers(t, time.Minute) {
		t.Run(name, func(t *testing.T) {
			release, err := l.Acquire(context.Background(), "user:1")
			require.NoError(t, err)
			defer release()

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			_, err = l.Acquire(ctx, "user:1")
			require.ErrorIs(t, err, ErrTimeout)
		})
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	for name, l := range lockers(t, 50*time.Millisecond) {
		t.Run(name, func(t *testing.T) {
			release, err := l.Acquire(context.Background(), "k")
			require.NoError(t, err)
			release()
			release()

			again, err := l.Acquire(context.Background(), "k")
			require.NoError(t, err)
			again()
		})
	}
}

func TestMemoryDropsIdleKeys(t *testing.T) {
	m := NewMemory(10 * time.Millisecond)
	release, err := m.Acquire(context.Background(), "a")
	require.NoError(t, err)
	_, err = m.Acquire(context.Background(), "a")
	require.ErrorIs(t, err, ErrTimeout)
	require.Equal(t, 1, m.keys())

	release()
	require.Equal(t, 0, m.keys())
}

func TestAcquireAllReleasesOnFailure(t *testing.T) {
	m := NewMemory(10 * time.Millisecond)

	held, err := m.Acquire(context.Background(), "user:b")
	require.NoError(t, err)

	_, err = AcquireAll(context.Background(), m, []string{"user:c", "user:a", "user:b", "user:a"})
	require.ErrorIs(t, err, ErrTimeout)

	// user:a foi obtido e liberado de volta
	relA, err := m.Acquire(context.Background(), "user:a")
	require.NoError(t, err)
	relA()
	held()

	all, err := AcquireAll(context.Background(), m, []string{"user:c", "user:a", "user:b"})
	require.NoError(t, err)
	all()
	require.Equal(t, 0, m.keys())
}

func TestRedisLockOutlivesTTLWhileHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	l := NewRedis(rdb, 20*time.Millisecond)
	l.TTL = 300 * time.Millisecond
	l.Retry = 5 * time.Millisecond
	ctx := context.Background()

	release, err := l.Acquire(ctx, "event:e1")
	require.NoError(t, err)

	// o relógio do redis anda bem além do TTL; a renovação mantém a chave
	for i := 0; i < 5; i++ {
		time.Sleep(150 * time.Millisecond)
		mr.FastForward(200 * time.Millisecond)
	}
	require.True(t, mr.Exists("lock:event:e1"))

	_, err = l.Acquire(ctx, "event:e1")
	require.ErrorIs(t, err, ErrTimeout)

	release()
	release()
	require.False(t, mr.Exists("lock:event:e1"))

	again, err := l.Acquire(ctx, "event:e1")
	require.NoError(t, err)
	again()
}

func TestRedisRenewalStopsWhenLockIsLost(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	l := NewRedis(rdb, 20*time.Millisecond)
	l.TTL = 300 * time.Millisecond
	ctx := context.Background()

	release, err := l.Acquire(ctx, "event:e1")
	require.NoError(t, err)

	// outra réplica tomou a chave: renovação e release não podem tocá-la
	require.NoError(t, mr.Set("lock:event:e1", "someone-else"))
	time.Sleep(250 * time.Millisecond)
	release()

	v, err := mr.Get("lock:event:e1")
	require.NoError(t, err)
	require.Equal(t, "someone-else", v)
}
