// Package wallet зачисляет возвраты баллов, пришедшие из очереди wallet.refunds.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/models"
)

// Repository определяет методы для работы с кошельками.
type Repository interface {
	CreditWallet(ctx context.Context, req models.RefundRequest) (bool, error)
	WalletBalance(ctx context.Context, userID string) (int64, error)
}

// Service зачисляет начисления идемпотентно по refund_id.
type Service struct {
	repo     Repository
	validate *validator.Validate
	log      *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		validate: validator.New(),
		log:      log,
	}
}

// ErrInvalidRefund — начисление не прошло валидацию.
var ErrInvalidRefund = errors.New("invalid refund request")

// Credit валидирует начисление и зачисляет его. Возвращает false, если начисление
// с тем же refund_id уже было.
func (s *Service) Credit(ctx context.Context, req models.RefundRequest) (bool, error) {
	const op = "services.wallet.Credit"

	if err := s.validate.Struct(req); err != nil {
		return false, fmt.Errorf("%s: %w: %s", op, ErrInvalidRefund, err)
	}
	credited, err := s.repo.CreditWallet(ctx, req)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !credited {
		s.log.Info("refund already credited", slog.String("refund_id", req.ID))
		return false, nil
	}
	s.log.Info("refund credited",
		slog.String("refund_id", req.ID),
		slog.String("user_id", req.UserID),
		slog.Int("points", req.Points),
		slog.String("reason", req.Reason),
	)
	return true, nil
}

// HandleRefundMessage обрабатывает одно сообщение очереди.
// Повреждённое сообщение логируется и подтверждается, чтобы не зациклить очередь;
// ошибка хранилища возвращается, и сообщение уходит на повторную доставку.
func (s *Service) HandleRefundMessage(ctx context.Context, body []byte) error {
	var req models.RefundRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.log.Error("dropping malformed refund message", sl.Err(err))
		return nil
	}
	_, err := s.Credit(ctx, req)
	if errors.Is(err, ErrInvalidRefund) {
		s.log.Error("dropping invalid refund message", slog.String("refund_id", req.ID), sl.Err(err))
		return nil
	}
	return err
}

// Balance возвращает баланс кошелька пользователя.
func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	const op = "services.wallet.Balance"
	points, err := s.repo.WalletBalance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return points, nil
}
