package stream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/betpool/internal/shared/kafka"
	"github.com/radieske/betpool/pkg/contracts/events"
)

const testChannel = "pool_odds_broadcast"

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

// queueReader entrega as mensagens enfileiradas e depois bloqueia até ctx terminar.
type queueReader struct {
	msgs chan kafka.Message
}

func (q *queueReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-q.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (q *queueReader) Close() error { return nil }

func oddsMsg(t *testing.T, upd events.OddsUpdate) []byte {
	t.Helper()
	b, err := json.Marshal(upd)
	require.NoError(t, err)
	return b
}

func TestRelayPublishesAndStoresSnapshot(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, testChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	var relayed int
	r := &Relay{Log: zap.NewNop(), Redis: rdb, Channel: testChannel, OnRelayed: func() { relayed++ }}
	r.Handle(ctx, oddsMsg(t, events.OddsUpdate{EventID: "e1", Odds: map[string]float64{"A": 1.8, "B": 1.8}, Pool: 200, Version: 2}))

	select {
	case msg := <-sub.Channel():
		var u Update
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &u))
		require.Equal(t, "odds", u.Type)
		require.Equal(t, "e1", u.EventID)
		require.Equal(t, 1.8, u.Payload.Odds["A"])
	case <-time.After(2 * time.Second):
		t.Fatal("no message on channel")
	}
	require.Equal(t, 1, relayed)

	snap, ok := Snapshot(rdb)(ctx, "e1")
	require.True(t, ok)
	var u Update
	require.NoError(t, json.Unmarshal(snap, &u))
	require.Equal(t, 2, u.Payload.Version)

	_, ok = Snapshot(rdb)(ctx, "other")
	require.False(t, ok)
}

func TestRelaySnapshotKeepsNewestVersion(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()
	r := &Relay{Log: zap.NewNop(), Redis: rdb, Channel: testChannel}

	version := func() (int, bool) {
		b, ok := Snapshot(rdb)(ctx, "e1")
		require.True(t, ok)
		var u Update
		require.NoError(t, json.Unmarshal(b, &u))
		return u.Payload.Version, u.Payload.Resolved
	}

	r.Handle(ctx, oddsMsg(t, events.OddsUpdate{EventID: "e1", Version: 5}))
	r.Handle(ctx, oddsMsg(t, events.OddsUpdate{EventID: "e1", Version: 3}))
	v, _ := version()
	require.Equal(t, 5, v)

	r.Handle(ctx, oddsMsg(t, events.OddsUpdate{EventID: "e1", Version: 5, Resolved: true, Result: "A"}))
	r.Handle(ctx, oddsMsg(t, events.OddsUpdate{EventID: "e1", Version: 6}))
	v, resolved := version()
	require.Equal(t, 5, v)
	require.True(t, resolved)
}

func TestRelayRejectsInvalidMessages(t *testing.T) {
	rdb := newRedis(t)
	var stages []string
	r := &Relay{Log: zap.NewNop(), Redis: rdb, Channel: testChannel, OnError: func(s string) { stages = append(stages, s) }}

	r.Handle(context.Background(), []byte("{not json"))
	r.Handle(context.Background(), []byte(`{"odds":{}}`))
	require.Equal(t, []string{"decode", "decode"}, stages)
}

func TestRelayRunStopsOnCancel(t *testing.T) {
	rdb := newRedis(t)
	q := &queueReader{msgs: make(chan kafka.Message, 2)}
	q.msgs <- kafka.Message{Value: oddsMsg(t, events.OddsUpdate{EventID: "e1", Version: 1})}
	q.msgs <- kafka.Message{Value: oddsMsg(t, events.OddsUpdate{EventID: "e2", Version: 1})}

	consumed := make(chan struct{}, 2)
	r := &Relay{
		Log:        zap.NewNop(),
		Reader:     q,
		Redis:      rdb,
		Channel:    testChannel,
		OnConsumed: func() { consumed <- struct{}{} },
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	<-consumed
	<-consumed
	require.Eventually(t, func() bool {
		_, ok := Snapshot(rdb)(context.Background(), "e2")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
