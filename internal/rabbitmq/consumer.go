package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/sl"
)

// DefaultConcurrency ограничивает число одновременно обрабатываемых сообщений, если не задано иное.
const DefaultConcurrency = 10

// Message содержит полученное из очереди сообщение.
type Message struct {
	ID          string
	Body        []byte
	Redelivered bool
}

// Handler обрабатывает сообщение. Ошибка возвращает сообщение в очередь.
type Handler func(ctx context.Context, msg Message) error

// Consumer читает очередь и обрабатывает сообщения параллельно.
type Consumer struct {
	ch          *amqp.Channel
	queue       string
	concurrency int
	log         *slog.Logger
	wg          sync.WaitGroup
}

// NewConsumer создаёт потребителя очереди queue.
func NewConsumer(ch *amqp.Channel, queue string, concurrency int, log *slog.Logger) *Consumer {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Consumer{
		ch:          ch,
		queue:       queue,
		concurrency: concurrency,
		log:         log.With(slog.String("queue", queue)),
	}
}

// Start подписывается на очередь и раздаёт сообщения обработчику до отмены ctx
// или закрытия канала. Уже начатые обработчики не прерываются отменой ctx.
func (c *Consumer) Start(ctx context.Context, handler Handler) error {
	const op = "rabbitmq.Consumer.Start"

	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	c.wg.Add(1)
	go c.dispatch(ctx, deliveries, handler)
	return nil
}

// Wait блокируется, пока не завершатся цикл раздачи и все начатые обработчики.
func (c *Consumer) Wait() {
	c.wg.Wait()
}

func (c *Consumer) dispatch(ctx context.Context, deliveries <-chan amqp.Delivery, handler Handler) {
	defer c.wg.Done()

	sem := make(chan struct{}, c.concurrency)
	handlerCtx := context.WithoutCancel(ctx)
	for {
		var d amqp.Delivery
		select {
		case <-ctx.Done():
			return
		case next, ok := <-deliveries:
			if !ok {
				c.log.Warn("delivery channel closed")
				return
			}
			d = next
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			// брокер доставит сообщение заново другому потребителю
			c.settle(d, false)
			return
		}

		c.wg.Add(1)
		go func(d amqp.Delivery) {
			defer c.wg.Done()
			defer func() { <-sem }()

			msg := Message{ID: d.MessageId, Body: d.Body, Redelivered: d.Redelivered}
			if err := handler(handlerCtx, msg); err != nil {
				c.log.Warn("message handling failed, requeue",
					slog.String("message_id", msg.ID),
					slog.Bool("redelivered", msg.Redelivered),
					sl.Err(err))
				c.settle(d, false)
				return
			}
			c.settle(d, true)
		}(d)
	}
}

func (c *Consumer) settle(d amqp.Delivery, ack bool) {
	if ack {
		if err := d.Ack(false); err != nil {
			c.log.Error("failed to ack message", slog.String("message_id", d.MessageId), sl.Err(err))
		}
		return
	}
	if err := d.Nack(false, true); err != nil {
		c.log.Error("failed to nack message", slog.String("message_id", d.MessageId), sl.Err(err))
	}
}
