package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/models"
)

// ListFreezes возвращает историю заморозок подписки в порядке начала.
func (s *Storage) ListFreezes(ctx context.Context, subscriptionID int64) ([]models.FreezeRecord, error) {
	const op = "storage.ListFreezes"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT id, subscription_id, freeze_start_date, freeze_end_date
		FROM subscription_freezes WHERE subscription_id = $1 ORDER BY freeze_start_date`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []models.FreezeRecord
	for rows.Next() {
		rec, err := scanFreeze(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetFreeze возвращает запись заморозки по ID.
func (s *Storage) GetFreeze(ctx context.Context, id int64) (*models.FreezeRecord, error) {
	const op = "storage.GetFreeze"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	row := s.DB.QueryRowContext(ctx, `SELECT id, subscription_id, freeze_start_date, freeze_end_date
		FROM subscription_freezes WHERE id = $1`, id)
	rec, err := scanFreeze(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return rec, nil
}

// CreateFreeze добавляет открытую заморозку и запоминает дату её начала в подписке.
// Повтор даты или вторая открытая заморозка дают ErrConflict.
func (s *Storage) CreateFreeze(ctx context.Context, subscriptionID int64, start time.Time) (*models.FreezeRecord, error) {
	const op = "storage.CreateFreeze"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rec := &models.FreezeRecord{SubscriptionID: subscriptionID, FreezeStartDate: start}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `INSERT INTO subscription_freezes (subscription_id, freeze_start_date)
			VALUES ($1, $2) RETURNING id`, subscriptionID, start).Scan(&rec.ID)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE subscriptions
			SET scheduled_freeze_start = $1, scheduled_freeze_end = NULL WHERE id = $2`, start, subscriptionID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return rec, nil
}

// DeleteFreeze удаляет ещё не начавшуюся заморозку и сбрасывает запланированную дату.
func (s *Storage) DeleteFreeze(ctx context.Context, subscriptionID, freezeID int64) error {
	const op = "storage.DeleteFreeze"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM subscription_freezes
			WHERE id = $1 AND subscription_id = $2 AND freeze_end_date IS NULL`, freezeID, subscriptionID)
		if err != nil {
			return err
		}
		ok, err := affected(res, op)
		if err != nil {
			return err
		}
		if !ok {
			return models.ErrNotFound
		}
		_, err = tx.ExecContext(ctx, `UPDATE subscriptions
			SET scheduled_freeze_start = NULL, scheduled_freeze_end = NULL WHERE id = $1`, subscriptionID)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CloseFreeze закрывает активную заморозку датой end и сразу снимает флаг заморозки с подписки.
func (s *Storage) CloseFreeze(ctx context.Context, subscriptionID, freezeID int64, end time.Time) error {
	const op = "storage.CloseFreeze"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE subscription_freezes SET freeze_end_date = $1
			WHERE id = $2 AND subscription_id = $3 AND freeze_end_date IS NULL`, end, freezeID, subscriptionID)
		if err != nil {
			return err
		}
		ok, err := affected(res, op)
		if err != nil {
			return err
		}
		if !ok {
			return models.ErrInvalidState
		}
		_, err = tx.ExecContext(ctx, `UPDATE subscriptions
			SET is_frozen = FALSE, scheduled_freeze_end = $1 WHERE id = $2`, end, subscriptionID)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func scanFreeze(row scanner) (*models.FreezeRecord, error) {
	var rec models.FreezeRecord
	var end sql.NullTime
	if err := row.Scan(&rec.ID, &rec.SubscriptionID, &rec.FreezeStartDate, &end); err != nil {
		return nil, err
	}
	rec.FreezeStartDate = rec.FreezeStartDate.UTC()
	rec.FreezeEndDate = nullTime(end)
	return &rec, nil
}
