// Package subscription реализует жизненный цикл подписки: активацию и снятие заморозок,
// истечение срока с автопродлением или возвратом баллов, отмену и планирование заморозок.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/clock"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/period"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/metrics"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/models"
)

// Repository определяет методы для работы с подписками и историей заморозок.
type Repository interface {
	GetSubscription(ctx context.Context, id int64) (*models.Subscription, error)
	// ActiveSubscriptionByUser возвращает ErrNotFound, если активной подписки нет.
	ActiveSubscriptionByUser(ctx context.Context, userID string) (*models.Subscription, error)
	CreateSubscription(ctx context.Context, sub models.Subscription) (int64, error)
	ListActiveSubscriptionsDue(ctx context.Context, now time.Time) ([]*models.Subscription, error)
	ListSubscriptionsToFreeze(ctx context.Context, now time.Time) ([]*models.Subscription, error)
	ListSubscriptionsToUnfreeze(ctx context.Context, now time.Time) ([]*models.Subscription, error)
	SetFrozen(ctx context.Context, id int64, frozen bool) (bool, error)
	ExpireSubscription(ctx context.Context, id int64) (bool, error)
	CancelSubscription(ctx context.Context, id int64, endDate time.Time) (bool, error)

	ListFreezes(ctx context.Context, subscriptionID int64) ([]models.FreezeRecord, error)
	GetFreeze(ctx context.Context, id int64) (*models.FreezeRecord, error)
	CreateFreeze(ctx context.Context, subscriptionID int64, start time.Time) (*models.FreezeRecord, error)
	DeleteFreeze(ctx context.Context, subscriptionID, freezeID int64) error
	CloseFreeze(ctx context.Context, subscriptionID, freezeID int64, end time.Time) error
}

// RefundNotifier начисляет баллы на кошелёк пользователя.
type RefundNotifier interface {
	Credit(ctx context.Context, req models.RefundRequest) error
}

// Outcome — результат обработки истёкшей подписки.
type Outcome string

const (
	OutcomeNone     Outcome = "none"
	OutcomeExpired  Outcome = "expired"
	OutcomeRenewed  Outcome = "renewed"
	OutcomeRefunded Outcome = "refunded"
)

// SweepReport содержит итоги одного прохода по подпискам.
type SweepReport struct {
	Frozen   int `json:"frozen"`
	Unfrozen int `json:"unfrozen"`
	Expired  int `json:"expired"`
	Renewed  int `json:"renewed"`
	Refunded int `json:"refunded"`
}

// Service реализует бизнес-логику жизненного цикла подписок.
type Service struct {
	repo    Repository
	refunds RefundNotifier
	clock   clock.Clock
	metrics *metrics.Metrics
	tracer  trace.Tracer
	log     *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, refunds RefundNotifier, clk clock.Clock, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		refunds: refunds,
		clock:   clk,
		metrics: m,
		tracer:  otel.Tracer("github.com/magabrotheeeer/mealkit-lifecycle/internal/services/subscription"),
		log:     log,
	}
}

// Get возвращает подписку по ID.
func (s *Service) Get(ctx context.Context, id int64) (*models.Subscription, error) {
	const op = "services.subscription.Get"

	sub, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// Sweep выполняет активацию заморозок, их снятие и обработку истёкших подписок.
// Шаги независимы: ошибка одного не отменяет остальные, все ошибки объединяются.
func (s *Service) Sweep(ctx context.Context, now time.Time) (SweepReport, error) {
	const op = "services.subscription.Sweep"

	ctx, span := s.tracer.Start(ctx, "subscription.Sweep")
	defer span.End()

	var report SweepReport
	var errs []error
	var err error
	if report.Frozen, err = s.ActivateFreezes(ctx, now); err != nil {
		errs = append(errs, err)
	}
	if report.Unfrozen, err = s.DeactivateFreezes(ctx, now); err != nil {
		errs = append(errs, err)
	}
	expired, err := s.ExpireDue(ctx, now)
	if err != nil {
		errs = append(errs, err)
	}
	for outcome, n := range expired {
		switch outcome {
		case OutcomeRenewed:
			report.Renewed += n
		case OutcomeRefunded:
			report.Refunded += n
		}
		if outcome != OutcomeNone {
			report.Expired += n
		}
	}
	span.SetAttributes(
		attribute.Int("frozen", report.Frozen),
		attribute.Int("unfrozen", report.Unfrozen),
		attribute.Int("expired", report.Expired),
	)
	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		return report, fmt.Errorf("%s: %w", op, err)
	}
	return report, nil
}

// ExpireDue обрабатывает все активные подписки, срок которых истёк к моменту now.
// Ошибка по отдельной подписке логируется, обход продолжается.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (map[Outcome]int, error) {
	const op = "services.subscription.ExpireDue"

	due, err := s.repo.ListActiveSubscriptionsDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make(map[Outcome]int)
	for _, sub := range due {
		outcome, err := s.extendOrExpire(ctx, sub, now)
		if err != nil {
			s.log.Error("failed to process expired subscription", slog.Int64("subscription_id", sub.ID), sl.Err(err))
			continue
		}
		result[outcome]++
	}
	return result, nil
}

// ExtendOrExpire завершает подписку id, если её срок истёк к моменту now.
// С автопродлением создаётся следующая подписка, без него начисляется возврат за дни заморозки.
// Повторный вызов для уже завершённой подписки ничего не делает.
func (s *Service) ExtendOrExpire(ctx context.Context, id int64, now time.Time) (Outcome, error) {
	const op = "services.subscription.ExtendOrExpire"

	sub, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return OutcomeNone, fmt.Errorf("%s: %w", op, err)
	}
	if sub.Status != models.SubscriptionActive || sub.EndDate.After(now) {
		return OutcomeNone, nil
	}
	outcome, err := s.extendOrExpire(ctx, sub, now)
	if err != nil {
		return outcome, fmt.Errorf("%s: %w", op, err)
	}
	return outcome, nil
}

func (s *Service) extendOrExpire(ctx context.Context, sub *models.Subscription, now time.Time) (Outcome, error) {
	expired, err := s.repo.ExpireSubscription(ctx, sub.ID)
	if err != nil {
		return OutcomeNone, err
	}
	if !expired {
		return OutcomeNone, nil
	}
	s.metrics.SubscriptionTransition("expire")
	s.log.Info("subscription expired",
		slog.Int64("subscription_id", sub.ID),
		slog.String("user_id", sub.UserID),
		slog.Time("end_date", sub.EndDate),
	)

	if sub.AutoRenewal {
		return s.renew(ctx, sub)
	}

	freezes, err := s.repo.ListFreezes(ctx, sub.ID)
	if err != nil {
		return OutcomeExpired, err
	}
	days := FreezeDays(freezes)
	points := period.RefundPoints(days, sub.Price, sub.SubscriptionType)
	if points <= 0 {
		return OutcomeExpired, nil
	}
	s.submitRefund(ctx, sub, models.RefundReasonFreeze, points)
	return OutcomeRefunded, nil
}

// renew создаёт следующую подписку, если у пользователя нет другой активной.
// Нарушение уникального индекса означает, что продление уже сделал другой процесс.
func (s *Service) renew(ctx context.Context, sub *models.Subscription) (Outcome, error) {
	active, err := s.repo.ActiveSubscriptionByUser(ctx, sub.UserID)
	switch {
	case err == nil:
		s.log.Info("renewal skipped, user already has an active subscription",
			slog.Int64("subscription_id", sub.ID),
			slog.Int64("active_subscription_id", active.ID),
		)
		return OutcomeExpired, nil
	case !errors.Is(err, models.ErrNotFound):
		return OutcomeExpired, err
	}

	start, end := period.Renewal(sub.EndDate, sub.SubscriptionType)
	next := models.Subscription{
		UserID:           sub.UserID,
		Frequency:        sub.Frequency,
		StartDate:        start,
		EndDate:          end,
		SubscriptionType: sub.SubscriptionType,
		Choice:           sub.Choice,
		Price:            sub.Price,
		AutoRenewal:      true,
		IsFrozen:         false,
		Status:           models.SubscriptionActive,
	}
	id, err := s.repo.CreateSubscription(ctx, next)
	if errors.Is(err, models.ErrConflict) {
		s.log.Info("renewal skipped, subscription already renewed", slog.Int64("subscription_id", sub.ID))
		return OutcomeExpired, nil
	}
	if err != nil {
		return OutcomeExpired, err
	}

	s.metrics.SubscriptionTransition("renew")
	s.log.Info("subscription renewed",
		slog.Int64("subscription_id", sub.ID),
		slog.Int64("renewal_id", id),
		slog.Time("start_date", start),
		slog.Time("end_date", end),
	)
	return OutcomeRenewed, nil
}

// Cancel отменяет активную подписку со следующего дня и возвращает баллы за оставшиеся дни.
func (s *Service) Cancel(ctx context.Context, id int64, now time.Time) (*models.Subscription, error) {
	const op = "services.subscription.Cancel"

	sub, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sub.Status != models.SubscriptionActive {
		return nil, fmt.Errorf("%s: subscription is %s: %w", op, sub.Status, models.ErrInvalidState)
	}

	effective := period.NextDate(now)
	remaining := max(0, period.WholeDays(effective, sub.EndDate))
	if points := period.RefundPoints(remaining, sub.Price, sub.SubscriptionType); points > 0 {
		s.submitRefund(ctx, sub, models.RefundReasonCancel, points)
	}

	ok, err := s.repo.CancelSubscription(ctx, id, effective)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: subscription is no longer active: %w", op, models.ErrInvalidState)
	}
	s.metrics.SubscriptionTransition("cancel")
	s.log.Info("subscription canceled",
		slog.Int64("subscription_id", id),
		slog.Int("remaining_days", remaining),
		slog.Time("end_date", effective),
	)

	sub.Status = models.SubscriptionCanceled
	sub.EndDate = effective
	return sub, nil
}

// submitRefund отправляет начисление. Ошибка доставки не прерывает переход подписки.
func (s *Service) submitRefund(ctx context.Context, sub *models.Subscription, reason string, points int) {
	req := models.RefundRequest{
		ID:             models.RefundID(sub.ID, reason),
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		Points:         points,
		Reason:         reason,
	}
	err := s.refunds.Credit(ctx, req)
	s.metrics.Refund(err)
	if err != nil {
		s.log.Warn("refund delivery failed",
			slog.String("refund_id", req.ID),
			slog.String("user_id", req.UserID),
			slog.Int("points", req.Points),
			sl.Err(err),
		)
		return
	}
	s.log.Info("refund submitted",
		slog.String("refund_id", req.ID),
		slog.String("user_id", req.UserID),
		slog.Int("points", req.Points),
	)
}

// FreezeDays суммирует полные дни закрытых заморозок.
func FreezeDays(freezes []models.FreezeRecord) int {
	total := 0
	for _, f := range freezes {
		if f.Open() {
			continue
		}
		total += max(0, period.WholeDays(f.FreezeStartDate, *f.FreezeEndDate))
	}
	return total
}
