package refund

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/models"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/rabbitmq"
)

// MessageType — тип сообщения о начислении в свойстве type.
const MessageType = "wallet.refund.credit"

// QueueNotifier публикует начисления в обменник wallet.
type QueueNotifier struct {
	ch rabbitmq.Channel
}

// NewQueueNotifier создаёт QueueNotifier поверх открытого канала.
func NewQueueNotifier(ch rabbitmq.Channel) *QueueNotifier {
	return &QueueNotifier{ch: ch}
}

// Credit публикует начисление; ID начисления становится message_id.
func (n *QueueNotifier) Credit(ctx context.Context, req models.RefundRequest) error {
	const op = "refund.QueueNotifier.Credit"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	env := rabbitmq.Envelope{
		Exchange:   rabbitmq.WalletExchange,
		RoutingKey: rabbitmq.RefundRoutingKey,
		MessageID:  req.ID,
		Type:       MessageType,
	}
	if err := rabbitmq.Publish(n.ch, env, req); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
