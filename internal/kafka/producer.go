// Package kafka публикует события о смене статуса заказов.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/models"
)

// Producer отправляет события синхронно и ждёт подтверждения брокера.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	log      *slog.Logger
}

// Dial подключается к брокерам.
func Dial(brokers []string, topic string, log *slog.Logger) (*Producer, error) {
	const op = "kafka.Dial"
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Timeout = 5 * time.Second
	cfg.Producer.Retry.Max = 3

	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return NewProducer(prod, topic, log), nil
}

// NewProducer оборачивает готовый SyncProducer.
func NewProducer(prod sarama.SyncProducer, topic string, log *slog.Logger) *Producer {
	return &Producer{producer: prod, topic: topic, log: log}
}

// PublishOrderStatusChanged отправляет событие; ключом сообщения служит ID заказа,
// чтобы события одного заказа шли в одну партицию по порядку.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, event models.OrderStatusChanged) error {
	const op = "kafka.PublishOrderStatusChanged"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(event.OrderID),
		Value:     sarama.ByteEncoder(body),
		Timestamp: event.OccurredAt,
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_id"), Value: []byte(event.EventID)},
		},
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	p.log.Debug("order event stored",
		slog.String("topic", p.topic),
		slog.Int("partition", int(partition)),
		slog.Int64("offset", offset),
		slog.String("event_id", event.EventID),
	)
	return nil
}

// Close закрывает продюсер.
func (p *Producer) Close() error {
	return p.producer.Close()
}
