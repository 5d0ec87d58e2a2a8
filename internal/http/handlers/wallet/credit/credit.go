// Package credit реализует приём начислений кошелька по HTTP.
package credit

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/http/response"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/models"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/services/wallet"
)

// Service описывает зачисление начислений.
type Service interface {
	Credit(ctx context.Context, req models.RefundRequest) (bool, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP зачисляет баллы. Новое начисление отвечает 201, на повтор того же refund_id отвечает 200.
// Заголовок Idempotency-Key, если передан, должен совпадать с refund_id.
//
// @Summary Начислить баллы
// @Tags Wallet
// @Accept  json
// @Produce  json
// @Param request body models.RefundRequest true "Начисление"
// @Success 201 {object} response.Response "Начислено"
// @Success 200 {object} response.Response "Уже начислено"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /wallet/credits [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.wallet.credit"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.RefundRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" && key != req.ID {
		log.Warn("idempotency key mismatch", slog.String("key", key), slog.String("refund_id", req.ID))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("idempotency key does not match refund_id"))
		return
	}

	credited, err := h.service.Credit(r.Context(), req)
	if errors.Is(err, wallet.ErrInvalidRefund) {
		log.Warn("invalid refund", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("invalid refund request"))
		return
	}
	if err != nil {
		log.Error("failed to credit wallet", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	if credited {
		render.Status(r, http.StatusCreated)
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"refund_id": req.ID,
		"credited":  credited,
	}))
}
