// Package publisher envia os eventos do pool para o Kafka.
package publisher

import (
	"context"

	"go.uber.org/zap"

	"github.com/radieske/betpool/internal/shared/kafka"
	"github.com/radieske/betpool/pkg/contracts/events"
)

// Topics define o tópico de cada tipo de evento.
type Topics struct {
	OddsUpdates   string
	BetPlaced     string
	EventResolved string
}

// KafkaPublisher encapsula o writer Kafka e o logger.
// Todas as mensagens usam o EventID como chave, mantendo a ordem por evento.
type KafkaPublisher struct {
	writer kafka.MessageWriter
	topics Topics
	log    *zap.Logger
}

func NewKafkaPublisher(w kafka.MessageWriter, topics Topics, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaPublisher{writer: w, topics: topics, log: log}
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	return p.publish(ctx, p.topics.BetPlaced, e.EventID, e)
}

func (p *KafkaPublisher) PublishOddsUpdate(ctx context.Context, e events.OddsUpdate) error {
	return p.publish(ctx, p.topics.OddsUpdates, e.EventID, e)
}

func (p *KafkaPublisher) PublishEventResolved(ctx context.Context, e events.EventResolved) error {
	return p.publish(ctx, p.topics.EventResolved, e.EventID, e)
}

func (p *KafkaPublisher) publish(ctx context.Context, topic, key string, v any) error {
	if err := kafka.WriteJSON(ctx, p.writer, topic, key, v); err != nil {
		p.log.Error("failed to publish", zap.String("topic", topic), zap.String("event_id", key), zap.Error(err))
		return err
	}
	p.log.Debug("published", zap.String("topic", topic), zap.String("event_id", key))
	return nil
}

// Close finaliza o writer e libera recursos associados.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
