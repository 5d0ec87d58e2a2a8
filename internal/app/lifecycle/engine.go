package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/cache"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/config"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/kafka"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/clock"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/metrics"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/rabbitmq"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/refund"
	orderservice "github.com/magabrotheeeer/mealkit-lifecycle/internal/services/order"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/services/scheduler"
	subservice "github.com/magabrotheeeer/mealkit-lifecycle/internal/services/subscription"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/storage/repository"
)

// TickLockKey — ключ аренды тика в Redis.
const TickLockKey = "lifecycle:tick"

// Engine собирает сервисы жизненного цикла поверх хранилища и внешних транспортов.
// Используется и HTTP-приложением, и утилитой lifecyclectl.
type Engine struct {
	Orders        *orderservice.Service
	Subscriptions *subservice.Service
	Metrics       *metrics.Metrics
	Cache         *cache.Cache
	Clock         clock.Clock

	closers []func() error
	log     *slog.Logger
}

// NewEngine подключает необязательные Redis, Kafka и транспорт возвратов согласно cfg.
// Недоступность Redis или Kafka не мешает запуску: сервис работает без кэша и событий.
func NewEngine(ctx context.Context, cfg *config.Config, db *repository.Storage, reg prometheus.Registerer, log *slog.Logger) (*Engine, error) {
	const op = "app.lifecycle.NewEngine"

	e := &Engine{
		Metrics: metrics.New(reg),
		Clock:   clock.Real{},
		log:     log,
	}

	var orderCache orderservice.Cache
	if cfg.RedisConnection.AddressRedis != "" {
		c, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			log.Warn("redis unavailable, running without order cache", sl.Err(err))
		} else {
			e.Cache = c
			orderCache = c
			e.closers = append(e.closers, c.Close)
		}
	}

	var events orderservice.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		p, err := kafka.Dial(cfg.Kafka.Brokers, cfg.Kafka.OrderEventsTopic, log)
		if err != nil {
			log.Warn("kafka unavailable, order events disabled", sl.Err(err))
		} else {
			events = p
			e.closers = append(e.closers, p.Close)
		}
	}

	refunds, closeRefunds, err := NewRefundNotifier(cfg, log)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if closeRefunds != nil {
		e.closers = append(e.closers, closeRefunds)
	}

	e.Orders = orderservice.NewService(db, orderCache, events, e.Clock, orderservice.Config{
		Timeline: orderservice.Timeline{Stage: cfg.OrderLifecycle.StageDuration},
		CacheTTL: cfg.OrderLifecycle.CacheTTL,
	}, e.Metrics, log)
	e.Subscriptions = subservice.NewService(db, refunds, e.Clock, e.Metrics, log)
	return e, nil
}

// NewRefundNotifier выбирает транспорт возвратов по refund.transport.
// Возвращаемая функция закрывает открытые соединения и может быть nil.
func NewRefundNotifier(cfg *config.Config, log *slog.Logger) (subservice.RefundNotifier, func() error, error) {
	const op = "app.lifecycle.NewRefundNotifier"

	switch cfg.Refund.Transport {
	case refund.TransportHTTP:
		if cfg.Wallet.WalletURL == "" {
			return nil, nil, fmt.Errorf("%s: wallet url is required for http transport", op)
		}
		return refund.NewHTTPNotifier(refund.HTTPConfig{
			BaseURL:          cfg.Wallet.WalletURL,
			Timeout:          cfg.Wallet.WalletTimeout,
			FailureThreshold: cfg.Wallet.BreakerFailures,
			OpenTimeout:      cfg.Wallet.BreakerOpenDelay,
		}, log), nil, nil
	case refund.TransportAMQP:
		conn, err := rabbitmq.Connect(cfg.RabbitMQ.RabbitMQURL, cfg.RabbitMQ.RabbitMQMaxRetries, cfg.RabbitMQ.RabbitMQRetryDelay)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.WalletExchange, rabbitmq.WalletQueues())
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		closeFn := func() error {
			return errors.Join(ch.Close(), conn.Close())
		}
		return refund.NewQueueNotifier(ch), closeFn, nil
	case refund.TransportLog, "":
		return refund.NewLogNotifier(log), nil, nil
	default:
		return nil, nil, fmt.Errorf("%s: unknown refund transport %q", op, cfg.Refund.Transport)
	}
}

// Jobs возвращает задачи тика: сначала заказы, затем подписки.
func (e *Engine) Jobs() []scheduler.Job {
	return []scheduler.Job{
		{
			Name: "orders",
			Run: func(ctx context.Context, now time.Time) error {
				_, err := e.Orders.ApplyToAllPending(ctx, now)
				return err
			},
		},
		{
			Name: "subscriptions",
			Run: func(ctx context.Context, now time.Time) error {
				_, err := e.Subscriptions.Sweep(ctx, now)
				return err
			},
		},
	}
}

// NewScheduler создаёт планировщик с задачами движка и настройками из cfg.
func (e *Engine) NewScheduler(cfg config.Scheduler) *scheduler.Scheduler {
	opts := []scheduler.Option{
		scheduler.WithClock(e.Clock),
		scheduler.WithMetrics(e.Metrics),
		scheduler.WithTickTimeout(cfg.TickTimeout),
	}
	if cfg.DistributedLock && e.Cache != nil {
		opts = append(opts, scheduler.WithLocker(e.Cache, TickLockKey, cfg.LockTTL))
	}
	return scheduler.New(e.log, cfg.Interval, e.Jobs(), opts...)
}

// Close закрывает подключения в обратном порядке.
func (e *Engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.log.Error("failed to close resource", sl.Err(err))
		}
	}
	e.closers = nil
}
