package order

import (
	"time"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/models"
)

// DefaultStageDuration — длительность каждого этапа доставки.
const DefaultStageDuration = 30 * time.Second

// Timeline вычисляет статус заказа по времени, прошедшему с момента оформления.
// Пороги отсчитываются от OrderTime, а не от предыдущего статуса.
type Timeline struct {
	Stage time.Duration
}

// DefaultTimeline использует этапы по 30 секунд.
var DefaultTimeline = Timeline{Stage: DefaultStageDuration}

// Status возвращает статус заказа, оформленного в orderTime, на момент now.
func (t Timeline) Status(orderTime, now time.Time) models.OrderStatus {
	stage := t.Stage
	if stage <= 0 {
		stage = DefaultStageDuration
	}
	elapsed := now.Sub(orderTime)
	switch {
	case elapsed < stage:
		return models.OrderPreparing
	case elapsed < 2*stage:
		return models.OrderOutForDelivery
	case elapsed < 3*stage:
		return models.OrderDelivered
	default:
		return models.OrderCompleted
	}
}

// Advance возвращает следующий статус для сохранённого current и флаг изменения.
// Статус никогда не откатывается назад; неизвестный статус не трогается.
func (t Timeline) Advance(current models.OrderStatus, orderTime, now time.Time) (models.OrderStatus, bool) {
	rank := current.Rank()
	if rank < 0 || current == models.OrderCompleted {
		return current, false
	}
	next := t.Status(orderTime, now)
	if next.Rank() <= rank {
		return current, false
	}
	return next, true
}

// ComputeStatus считает статус заказа по стандартной шкале.
func ComputeStatus(orderTime, now time.Time) models.OrderStatus {
	return DefaultTimeline.Status(orderTime, now)
}
