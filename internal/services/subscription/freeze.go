package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/period"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/models"
)

// ActivateFreezes замораживает подписки, у которых к моменту now началась открытая заморозка.
func (s *Service) ActivateFreezes(ctx context.Context, now time.Time) (int, error) {
	const op = "services.subscription.ActivateFreezes"

	subs, err := s.repo.ListSubscriptionsToFreeze(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return s.setFrozen(ctx, op, subs, true)
}

// DeactivateFreezes размораживает подписки, заморозка которых закончилась к моменту now.
func (s *Service) DeactivateFreezes(ctx context.Context, now time.Time) (int, error) {
	const op = "services.subscription.DeactivateFreezes"

	subs, err := s.repo.ListSubscriptionsToUnfreeze(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return s.setFrozen(ctx, op, subs, false)
}

func (s *Service) setFrozen(ctx context.Context, op string, subs []*models.Subscription, frozen bool) (int, error) {
	kind := "unfreeze"
	if frozen {
		kind = "freeze"
	}
	changed := 0
	for _, sub := range subs {
		ok, err := s.repo.SetFrozen(ctx, sub.ID, frozen)
		if err != nil {
			return changed, fmt.Errorf("%s: %w", op, err)
		}
		if !ok {
			continue
		}
		changed++
		s.metrics.SubscriptionTransition(kind)
		s.log.Info("subscription freeze flag changed",
			slog.Int64("subscription_id", sub.ID),
			slog.Bool("is_frozen", frozen),
		)
	}
	return changed, nil
}

// ListFreezes возвращает историю заморозок подписки.
func (s *Service) ListFreezes(ctx context.Context, id int64) ([]models.FreezeRecord, error) {
	const op = "services.subscription.ListFreezes"

	if _, err := s.repo.GetSubscription(ctx, id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	freezes, err := s.repo.ListFreezes(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return freezes, nil
}

// ScheduleFreeze планирует заморозку активной подписки с даты startDate.
// Дата в прошлом, повтор даты и уже открытая заморозка дают ErrInvalidState.
func (s *Service) ScheduleFreeze(ctx context.Context, id int64, startDate, now time.Time) (*models.FreezeRecord, error) {
	const op = "services.subscription.ScheduleFreeze"

	sub, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sub.Status != models.SubscriptionActive {
		return nil, fmt.Errorf("%s: subscription is %s: %w", op, sub.Status, models.ErrInvalidState)
	}

	start := period.Date(startDate)
	if start.Before(period.Date(now)) {
		return nil, fmt.Errorf("%s: start date %s is in the past: %w", op, start.Format(time.DateOnly), models.ErrInvalidState)
	}

	freezes, err := s.repo.ListFreezes(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, f := range freezes {
		if period.Date(f.FreezeStartDate).Equal(start) {
			return nil, fmt.Errorf("%s: freeze on %s already exists: %w", op, start.Format(time.DateOnly), models.ErrInvalidState)
		}
		if f.Open() {
			return nil, fmt.Errorf("%s: freeze %d is still open: %w", op, f.ID, models.ErrInvalidState)
		}
	}

	rec, err := s.repo.CreateFreeze(ctx, id, start)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.SubscriptionTransition("freeze_scheduled")
	s.log.Info("freeze scheduled",
		slog.Int64("subscription_id", id),
		slog.Int64("freeze_id", rec.ID),
		slog.Time("start_date", start),
	)
	return rec, nil
}

// CancelScheduledFreeze отменяет заморозку. Не начавшаяся заморозка удаляется,
// начавшаяся закрывается следующим днём, и подписка размораживается сразу.
func (s *Service) CancelScheduledFreeze(ctx context.Context, id, freezeID int64, now time.Time) (*models.Subscription, error) {
	const op = "services.subscription.CancelScheduledFreeze"

	if _, err := s.repo.GetSubscription(ctx, id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rec, err := s.repo.GetFreeze(ctx, freezeID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if rec.SubscriptionID != id {
		return nil, fmt.Errorf("%s: freeze %d: %w", op, freezeID, models.ErrNotFound)
	}
	if !rec.Open() {
		return nil, fmt.Errorf("%s: freeze %d is closed: %w", op, freezeID, models.ErrInvalidState)
	}

	log := s.log.With(slog.Int64("subscription_id", id), slog.Int64("freeze_id", freezeID))
	if rec.FreezeStartDate.After(now) {
		if err := s.repo.DeleteFreeze(ctx, id, freezeID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.metrics.SubscriptionTransition("freeze_canceled")
		log.Info("scheduled freeze deleted")
	} else {
		end := period.NextDate(now)
		if err := s.repo.CloseFreeze(ctx, id, freezeID, end); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.metrics.SubscriptionTransition("unfreeze")
		log.Info("active freeze closed", slog.Time("end_date", end))
	}

	sub, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		log.Warn("failed to reload subscription", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}
