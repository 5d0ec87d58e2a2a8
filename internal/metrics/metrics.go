// Package metrics содержит prometheus-коллекторы движка жизненного цикла.
// Все методы безопасны для nil-получателя, поэтому метрики можно не подключать в тестах.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics объединяет счётчики тиков, переходов и возвратов.
type Metrics struct {
	ticks                   *prometheus.CounterVec
	tickDuration            prometheus.Histogram
	orderTransitions        *prometheus.CounterVec
	subscriptionTransitions *prometheus.CounterVec
	refunds                 *prometheus.CounterVec
}

// New создаёт коллекторы и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifecycle_scheduler_ticks_total",
			Help: "Scheduler job runs by result.",
		}, []string{"job", "result"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lifecycle_scheduler_tick_duration_seconds",
			Help:    "Duration of a full scheduler tick.",
			Buckets: prometheus.DefBuckets,
		}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifecycle_order_transitions_total",
			Help: "Persisted order status transitions.",
		}, []string{"from", "to"}),
		subscriptionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifecycle_subscription_transitions_total",
			Help: "Subscription lifecycle transitions by kind.",
		}, []string{"kind"}),
		refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifecycle_refund_submissions_total",
			Help: "Refund submissions to the wallet by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.ticks, m.tickDuration, m.orderTransitions, m.subscriptionTransitions, m.refunds)
	return m
}

// JobRun учитывает один запуск задачи планировщика.
func (m *Metrics) JobRun(job string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ticks.WithLabelValues(job, result).Inc()
}

// JobSkipped учитывает тик, пропущенный из-за чужой блокировки.
func (m *Metrics) JobSkipped(job string) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(job, "skipped").Inc()
}

// TickDuration записывает длительность тика.
func (m *Metrics) TickDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}

// OrderTransition учитывает смену статуса заказа.
func (m *Metrics) OrderTransition(from, to string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(from, to).Inc()
}

// SubscriptionTransition учитывает переход подписки: freeze, unfreeze, expire, renew, cancel.
func (m *Metrics) SubscriptionTransition(kind string) {
	if m == nil {
		return
	}
	m.subscriptionTransitions.WithLabelValues(kind).Inc()
}

// Refund учитывает попытку начисления возврата.
func (m *Metrics) Refund(err error) {
	if m == nil {
		return
	}
	result := "delivered"
	if err != nil {
		result = "failed"
	}
	m.refunds.WithLabelValues(result).Inc()
}
