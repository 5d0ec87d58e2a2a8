package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/models"
)

// CreditWallet записывает начисление и увеличивает баланс пользователя.
// Повторное начисление с тем же refund_id ничего не меняет; возвращает true, если начисление новое.
func (s *Storage) CreditWallet(ctx context.Context, req models.RefundRequest) (bool, error) {
	const op = "storage.CreditWallet"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	var credited bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO wallet_credits (refund_id, user_id, subscription_id, points, reason)
			VALUES ($1, $2, $3, $4, $5) ON CONFLICT (refund_id) DO NOTHING`,
			req.ID, req.UserID, req.SubscriptionID, req.Points, req.Reason)
		if err != nil {
			return err
		}
		credited, err = affected(res, op)
		if err != nil || !credited {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO wallet_balances (user_id, points) VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE SET points = wallet_balances.points + EXCLUDED.points,
				updated_at = NOW()`, req.UserID, req.Points)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return credited, nil
}

// WalletBalance возвращает баланс пользователя; отсутствие записи означает ноль.
func (s *Storage) WalletBalance(ctx context.Context, userID string) (int64, error) {
	const op = "storage.WalletBalance"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	var points int64
	err := s.DB.QueryRowContext(ctx, `SELECT points FROM wallet_balances WHERE user_id = $1`, userID).Scan(&points)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return points, nil
}
