package stream

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StartRedisSubscriber escuta o canal Pub/Sub e repassa cada atualização
// aos clientes WebSocket inscritos no evento. Retorna quando ctx termina.
func StartRedisSubscriber(ctx context.Context, rdb *redis.Client, channel string, hub *Hub, log *zap.Logger) error {
	sub := rdb.Subscribe(ctx, channel)
	// confirma a inscrição antes de devolver o controle
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer sub.Close() // encerra a inscrição ao finalizar o contexto
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var upd Update
				if err := json.Unmarshal([]byte(msg.Payload), &upd); err != nil || upd.EventID == "" {
					log.Warn("ws subscriber unmarshal error", zap.Error(err))
					continue
				}
				// repassa os bytes originais
				hub.Broadcast(upd.EventID, upd.Payload.Version, []byte(msg.Payload))
			}
		}
	}()
	return nil
}
