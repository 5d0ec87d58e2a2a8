package rabbitmq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// AppID проставляется в свойство app_id всех публикуемых сообщений.
const AppID = "mealkit-lifecycle"

// Channel — часть *amqp.Channel, нужная для публикации.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Envelope задаёт адрес и метаданные сообщения.
// MessageID позволяет потребителю распознать повторную публикацию.
type Envelope struct {
	Exchange   string
	RoutingKey string
	MessageID  string
	Type       string
}

// Publish сериализует payload в JSON и публикует его как persistent-сообщение.
func Publish(ch Channel, env Envelope, payload any) error {
	const op = "rabbitmq.Publish"

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.MessageID,
		Type:         env.Type,
		AppId:        AppID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.Publish(env.Exchange, env.RoutingKey, false, false, msg); err != nil {
		return fmt.Errorf("%s: publish to %s/%s: %w", op, env.Exchange, env.RoutingKey, err)
	}
	return nil
}
