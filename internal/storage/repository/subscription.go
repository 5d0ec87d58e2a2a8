package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/models"
)

const subscriptionColumns = `id, user_id, frequency, start_date, end_date, subscription_type, choice,
	price, auto_renewal, is_frozen, status, scheduled_freeze_start, scheduled_freeze_end`

// CreateSubscription вставляет новую подписку и возвращает её ID.
// Вторая активная подписка пользователя нарушает уникальный индекс и даёт ErrConflict.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (int64, error) {
	const op = "storage.CreateSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	query := `INSERT INTO subscriptions (user_id, frequency, start_date, end_date, subscription_type,
				choice, price, auto_renewal, is_frozen, status)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  RETURNING id`
	var newID int64
	err := s.DB.QueryRowContext(ctx, query,
		sub.UserID, sub.Frequency, sub.StartDate, sub.EndDate, sub.SubscriptionType,
		sub.Choice, sub.Price, sub.AutoRenewal, sub.IsFrozen, sub.Status).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return newID, nil
}

// GetSubscription возвращает подписку по ID.
func (s *Storage) GetSubscription(ctx context.Context, id int64) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return sub, nil
}

// ActiveSubscriptionByUser возвращает активную подписку пользователя или ErrNotFound.
func (s *Storage) ActiveSubscriptionByUser(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "storage.ActiveSubscriptionByUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = $1 AND status = $2 LIMIT 1`, userID, models.SubscriptionActive)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return sub, nil
}

// ListActiveSubscriptionsDue возвращает активные подписки, срок которых истёк к моменту now.
func (s *Storage) ListActiveSubscriptionsDue(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	const op = "storage.ListActiveSubscriptionsDue"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	subs, err := s.querySubscriptions(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE status = $1 AND end_date <= $2 ORDER BY end_date, id`, models.SubscriptionActive, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// ListSubscriptionsToFreeze возвращает незамороженные активные подписки,
// у которых есть открытая заморозка, начавшаяся к моменту now.
func (s *Storage) ListSubscriptionsToFreeze(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	const op = "storage.ListSubscriptionsToFreeze"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	subs, err := s.querySubscriptions(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions s
		WHERE s.status = $1 AND NOT s.is_frozen AND EXISTS (
			SELECT 1 FROM subscription_freezes f
			WHERE f.subscription_id = s.id AND f.freeze_end_date IS NULL AND f.freeze_start_date <= $2
		) ORDER BY s.id`, models.SubscriptionActive, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// ListSubscriptionsToUnfreeze возвращает замороженные подписки, у которых заморозка
// закрыта к моменту now и нет другой открытой начавшейся заморозки.
func (s *Storage) ListSubscriptionsToUnfreeze(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	const op = "storage.ListSubscriptionsToUnfreeze"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	subs, err := s.querySubscriptions(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions s
		WHERE s.status = $1 AND s.is_frozen AND EXISTS (
			SELECT 1 FROM subscription_freezes f
			WHERE f.subscription_id = s.id AND f.freeze_end_date IS NOT NULL AND f.freeze_end_date <= $2
		) AND NOT EXISTS (
			SELECT 1 FROM subscription_freezes f
			WHERE f.subscription_id = s.id AND f.freeze_end_date IS NULL AND f.freeze_start_date <= $2
		) ORDER BY s.id`, models.SubscriptionActive, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// SetFrozen меняет флаг заморозки и сообщает, изменилась ли строка.
func (s *Storage) SetFrozen(ctx context.Context, id int64, frozen bool) (bool, error) {
	const op = "storage.SetFrozen"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE subscriptions SET is_frozen = $1
		WHERE id = $2 AND is_frozen <> $1`, frozen, id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return affected(res, op)
}

// ExpireSubscription переводит активную подписку в Expired.
// Возвращает false, если подписка уже не активна.
func (s *Storage) ExpireSubscription(ctx context.Context, id int64) (bool, error) {
	const op = "storage.ExpireSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE subscriptions SET status = $1
		WHERE id = $2 AND status = $3`, models.SubscriptionExpired, id, models.SubscriptionActive)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return affected(res, op)
}

// CancelSubscription переводит активную подписку в Canceled с новой датой окончания.
// Возвращает false, если подписка уже не активна.
func (s *Storage) CancelSubscription(ctx context.Context, id int64, endDate time.Time) (bool, error) {
	const op = "storage.CancelSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE subscriptions SET status = $1, end_date = $2
		WHERE id = $3 AND status = $4`, models.SubscriptionCanceled, endDate, id, models.SubscriptionActive)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return affected(res, op)
}

func affected(res sql.Result, op string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

func (s *Storage) querySubscriptions(ctx context.Context, query string, args ...any) ([]*models.Subscription, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sub)
	}
	return result, rows.Err()
}

func scanSubscription(row scanner) (*models.Subscription, error) {
	var sub models.Subscription
	var freezeStart, freezeEnd sql.NullTime
	err := row.Scan(&sub.ID, &sub.UserID, &sub.Frequency, &sub.StartDate, &sub.EndDate,
		&sub.SubscriptionType, &sub.Choice, &sub.Price, &sub.AutoRenewal, &sub.IsFrozen,
		&sub.Status, &freezeStart, &freezeEnd)
	if err != nil {
		return nil, err
	}
	sub.StartDate = sub.StartDate.UTC()
	sub.EndDate = sub.EndDate.UTC()
	sub.ScheduledFreezeStart = nullTime(freezeStart)
	sub.ScheduledFreezeEnd = nullTime(freezeEnd)
	return &sub, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
