// Package refund содержит реализации уведомления кошелька о начислении баллов:
// HTTP-клиент с предохранителем, публикацию в RabbitMQ и журналирование без доставки.
package refund

import (
	"context"
	"log/slog"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/models"
)

// Transports.
const (
	TransportHTTP = "http"
	TransportAMQP = "amqp"
	TransportLog  = "log"
)

// LogNotifier только записывает начисление в лог. Используется, когда транспорт не настроен.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier создаёт LogNotifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Credit логирует начисление.
func (n *LogNotifier) Credit(_ context.Context, req models.RefundRequest) error {
	n.log.Info("refund credit not delivered, no transport configured",
		slog.String("refund_id", req.ID),
		slog.String("user_id", req.UserID),
		slog.Int("points", req.Points),
	)
	return nil
}
