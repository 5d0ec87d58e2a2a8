// Package cancel реализует HTTP-обработчик отмены подписки.
package cancel

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/http/response"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/clock"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/models"
)

// Service описывает интерфейс бизнес-логики отмены подписки.
type Service interface {
	Get(ctx context.Context, id int64) (*models.Subscription, error)
	Cancel(ctx context.Context, id int64, now time.Time) (*models.Subscription, error)
}

// Handler обрабатывает запросы на отмену подписки.
type Handler struct {
	log     *slog.Logger
	service Service
	clock   clock.Clock
}

// New создает новый Handler.
func New(log *slog.Logger, service Service, clk clock.Clock) *Handler {
	return &Handler{
		log:     log,
		service: service,
		clock:   clk,
	}
}

// ServeHTTP отменяет подписку со следующего дня и возвращает обновлённую запись.
//
// @Summary Отменить подписку
// @Description Подписка завершается завтрашним днём, за оставшиеся дни начисляются баллы.
// @Tags Subscriptions
// @Produce  json
// @Param id path int true "ID подписки"
// @Success 200 {object} response.Response "Обновлённая подписка"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 409 {object} response.ErrorResponse "Подписка не активна"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /subscriptions/{id}/cancel [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.cancel"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		log.Warn("invalid id format", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid id"))
		return
	}

	sub, err := h.service.Get(r.Context(), id)
	if err == nil && !middlewarectx.CanAccess(r.Context(), sub.UserID) {
		err = models.ErrNotFound
	}
	if err == nil {
		sub, err = h.service.Cancel(r.Context(), id, h.clock.Now())
	}
	if err != nil {
		status := response.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			log.Error("failed to cancel subscription", sl.Err(err))
		} else {
			log.Info("cancel rejected", slog.Int64("subscription_id", id), sl.Err(err))
		}
		render.Status(r, status)
		render.JSON(w, r, response.Error(response.ErrorMessage(err, "subscription")))
		return
	}

	log.Info("subscription canceled", slog.Int64("subscription_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscription": sub,
	}))
}
