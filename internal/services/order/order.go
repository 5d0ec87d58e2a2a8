// Package order реализует жизненный цикл заказа: пересчёт статуса по прошедшему
// времени, пакетное применение в фоновом тике и согласование статуса на каждом чтении.
package order

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/clock"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/metrics"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/models"
)

// Repository определяет методы для работы с заказами в хранилище.
type Repository interface {
	// ListPendingOrders возвращает все заказы, кроме завершённых.
	ListPendingOrders(ctx context.Context) ([]*models.Order, error)
	// SaveOrderStatuses записывает изменения одной транзакцией и возвращает применённые:
	// изменение, чей статус в базе уже ушёл дальше, пропускается.
	SaveOrderStatuses(ctx context.Context, changes []models.OrderStatusChange) ([]models.OrderStatusChange, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error)
	ListOrders(ctx context.Context, limit, offset int) ([]*models.Order, error)
}

// Cache описывает методы для кэширования снимков заказов.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// EventPublisher публикует события о смене статуса заказа.
type EventPublisher interface {
	PublishOrderStatusChanged(ctx context.Context, event models.OrderStatusChanged) error
}

// Service реализует бизнес-логику статусов заказов.
type Service struct {
	repo     Repository
	cache    Cache
	events   EventPublisher
	clock    clock.Clock
	timeline Timeline
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	log      *slog.Logger
}

type Config struct {
	Timeline Timeline
	CacheTTL time.Duration
}

// NewService создает новый экземпляр Service. cache и events могут быть nil.
func NewService(repo Repository, cache Cache, events EventPublisher, clk clock.Clock, cfg Config, m *metrics.Metrics, log *slog.Logger) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		events:   events,
		clock:    clk,
		timeline: cfg.Timeline,
		cacheTTL: cfg.CacheTTL,
		metrics:  m,
		log:      log,
	}
}

// ApplyToAllPending пересчитывает статусы всех незавершённых заказов на момент now
// и одной транзакцией сохраняет только изменившиеся. Возвращает количество обновлённых строк.
func (s *Service) ApplyToAllPending(ctx context.Context, now time.Time) (int, error) {
	const op = "services.order.ApplyToAllPending"

	orders, err := s.repo.ListPendingOrders(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	changes := s.advance(orders, now)
	if len(changes) == 0 {
		s.log.Debug("no order status changes", slog.Int("pending", len(orders)))
		return 0, nil
	}

	applied, err := s.repo.SaveOrderStatuses(ctx, changes)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	s.committed(ctx, applied, now)

	s.log.Info("order statuses applied",
		slog.Int("pending", len(orders)),
		slog.Int("changed", len(changes)),
		slog.Int("updated", len(applied)),
	)
	return len(applied), nil
}

// Get возвращает заказ по ID с актуальным на текущий момент статусом.
func (s *Service) Get(ctx context.Context, id string) (*models.Order, error) {
	const op = "services.order.Get"

	cacheKey := "order:" + id
	var order models.Order
	found := false
	if s.cache != nil {
		var err error
		found, err = s.cache.Get(ctx, cacheKey, &order)
		if err != nil {
			s.log.Warn("failed to read order from cache", slog.String("key", cacheKey), sl.Err(err))
			found = false
		}
	}
	if !found {
		stored, err := s.repo.GetOrder(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		order = *stored
	}

	changed := s.reconcile(ctx, []*models.Order{&order})
	if s.cache != nil && (!found || changed > 0) {
		if err := s.cache.Set(ctx, cacheKey, order, s.cacheTTL); err != nil {
			s.log.Warn("failed to cache order", slog.String("key", cacheKey), sl.Err(err))
		}
	}
	return &order, nil
}

// ListByUser возвращает заказы пользователя с актуальными статусами.
func (s *Service) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error) {
	const op = "services.order.ListByUser"

	orders, err := s.repo.ListOrdersByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.reconcile(ctx, orders)
	return orders, nil
}

// ListAll возвращает все заказы с актуальными статусами.
func (s *Service) ListAll(ctx context.Context, limit, offset int) ([]*models.Order, error) {
	const op = "services.order.ListAll"

	orders, err := s.repo.ListOrders(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.reconcile(ctx, orders)
	return orders, nil
}

// reconcile пересчитывает статусы прочитанных заказов и сохраняет изменения.
// Ошибка записи только логируется: клиент всё равно получает пересчитанный статус.
func (s *Service) reconcile(ctx context.Context, orders []*models.Order) int {
	now := s.clock.Now()
	changes := s.advance(orders, now)
	if len(changes) == 0 {
		return 0
	}

	// события только для реально записанных переходов: снимок из кэша мог устареть
	applied, err := s.repo.SaveOrderStatuses(ctx, changes)
	if err != nil {
		s.log.Error("failed to persist reconciled order statuses", slog.Int("changed", len(changes)), sl.Err(err))
	} else {
		s.committed(ctx, applied, now)
	}

	byID := make(map[string]models.OrderStatus, len(changes))
	for _, c := range changes {
		byID[c.OrderID] = c.To
	}
	for _, o := range orders {
		if st, ok := byID[o.ID]; ok {
			o.Status = st
		}
	}
	return len(changes)
}

func (s *Service) advance(orders []*models.Order, now time.Time) []models.OrderStatusChange {
	var changes []models.OrderStatusChange
	for _, o := range orders {
		next, changed := s.timeline.Advance(o.Status, o.OrderTime, now)
		if !changed {
			continue
		}
		changes = append(changes, models.OrderStatusChange{
			OrderID: o.ID,
			UserID:  o.UserID,
			From:    o.Status,
			To:      next,
		})
	}
	return changes
}

func (s *Service) committed(ctx context.Context, changes []models.OrderStatusChange, now time.Time) {
	for _, c := range changes {
		s.log.Info("order status changed",
			slog.String("order_id", c.OrderID),
			slog.String("from", string(c.From)),
			slog.String("to", string(c.To)),
		)
		s.metrics.OrderTransition(string(c.From), string(c.To))

		if s.events == nil {
			continue
		}
		event := models.OrderStatusChanged{
			EventID:    ulid.Make().String(),
			OrderID:    c.OrderID,
			UserID:     c.UserID,
			From:       c.From,
			To:         c.To,
			OccurredAt: now,
		}
		if err := s.events.PublishOrderStatusChanged(ctx, event); err != nil {
			s.log.Warn("failed to publish order status event", slog.String("order_id", c.OrderID), sl.Err(err))
		}
	}
}
