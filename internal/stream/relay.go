// Package stream entrega atualizações de odds em tempo real:
// Kafka -> Redis Pub/Sub -> clientes WebSocket.
package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/betpool/internal/shared/kafka"
	"github.com/radieske/betpool/pkg/contracts/events"
)

// Update é o envelope enviado pelo Redis e pelos clientes WebSocket
type Update struct {
	Type    string            `json:"type"` // odds
	EventID string            `json:"eventId"`
	Payload events.OddsUpdate `json:"payload"`
}

// Relay consome odds do Kafka, guarda a última versão por evento no Redis
// e publica no canal Pub/Sub lido pelos servidores WebSocket.
type Relay struct {
	Log     *zap.Logger
	Reader  kafka.MessageReader
	Redis   *redis.Client
	Channel string
	TTL     time.Duration // validade do snapshot por evento; 0 = sem expiração

	OnConsumed func()       // métricas (counter++)
	OnRelayed  func()       // métricas
	OnError    func(string) // métricas por fase
}

func currentKey(eventID string) string { return "odds:current:" + eventID }

// Run inicia o loop principal de consumo; retorna quando ctx é cancelado
func (r *Relay) Run(ctx context.Context) error {
	for {
		_, value, err := kafka.ReadNext(ctx, r.Reader)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.Log.Warn("kafka read failed", zap.Error(err))
			r.fail("read")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}

		if r.OnConsumed != nil {
			r.OnConsumed()
		}
		r.Handle(ctx, value)
	}
}

// Handle processa uma mensagem do tópico de odds
func (r *Relay) Handle(ctx context.Context, value []byte) {
	var upd events.OddsUpdate
	if err := json.Unmarshal(value, &upd); err != nil || upd.EventID == "" {
		r.Log.Warn("invalid message", zap.Error(err))
		r.fail("decode")
		return
	}

	b, err := json.Marshal(Update{Type: "odds", EventID: upd.EventID, Payload: upd})
	if err != nil {
		r.fail("encode")
		return
	}

	// snapshot para quem se inscrever depois; não bloqueia o broadcast
	if err := r.storeIfNewer(ctx, upd.EventID, upd.Version, upd.Resolved, b); err != nil {
		r.Log.Warn("redis set failed", zap.String("event_id", upd.EventID), zap.Error(err))
		r.fail("cache")
	}

	if err := r.Redis.Publish(ctx, r.Channel, b).Err(); err != nil {
		r.Log.Warn("redis publish failed", zap.String("event_id", upd.EventID), zap.Error(err))
		r.fail("publish")
		return
	}
	if r.OnRelayed != nil {
		r.OnRelayed()
	}
}

// storeIfNewer grava o snapshot a menos que o atual tenha versão maior.
// A atualização de resolução sempre vence.
func (r *Relay) storeIfNewer(ctx context.Context, eventID string, version int, resolved bool, b []byte) error {
	key := currentKey(eventID)
	if !resolved {
		cur, err := r.Redis.Get(ctx, key).Bytes()
		switch {
		case err == redis.Nil:
		case err != nil:
			return err
		default:
			var prev Update
			if json.Unmarshal(cur, &prev) == nil &&
				(prev.Payload.Resolved || prev.Payload.Version > version) {
				return nil
			}
		}
	}
	return r.Redis.Set(ctx, key, b, r.TTL).Err()
}

func (r *Relay) fail(stage string) {
	if r.OnError != nil {
		r.OnError(stage)
	}
}

// Snapshot devolve a última atualização conhecida do evento, se houver
func Snapshot(rdb *redis.Client) func(ctx context.Context, eventID string) ([]byte, bool) {
	return func(ctx context.Context, eventID string) ([]byte, bool) {
		b, err := rdb.Get(ctx, currentKey(eventID)).Bytes()
		if err != nil {
			return nil, false
		}
		return b, true
	}
}
