// Package cancel реализует HTTP-обработчик отмены заморозки подписки.
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

// Service описывает интерфейс бизнес-логики заморозок.
type Service interface {
	Get(ctx context.Context, id int64) (*models.Subscription, error)
	CancelScheduledFreeze(ctx context.Context, id, freezeID int64, now time.Time) (*models.Subscription, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
	clock   clock.Clock
}

func New(log *slog.Logger, service Service, clk clock.Clock) *Handler {
	return &Handler{
		log:     log,
		service: service,
		clock:   clk,
	}
}

// ServeHTTP отменяет заморозку: не начавшаяся удаляется, активная закрывается завтрашним днём.
//
// @Summary Отменить заморозку
// @Description Не начавшаяся заморозка удаляется; начавшаяся закрывается следующим днём, подписка размораживается сразу.
// @Tags Subscriptions
// @Produce  json
// @Param id path int true "ID подписки"
// @Param freezeID path int true "ID заморозки"
// @Success 200 {object} response.Response "Обновлённая подписка"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 404 {object} response.ErrorResponse "Заморозка не найдена"
// @Failure 409 {object} response.ErrorResponse "Заморозка уже закрыта"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /subscriptions/{id}/freezes/{freezeID} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.freeze.cancel"

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
	freezeID, err := strconv.ParseInt(chi.URLParam(r, "freezeID"), 10, 64)
	if err != nil {
		log.Warn("invalid freeze id format", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid freeze id"))
		return
	}

	sub, err := h.service.Get(r.Context(), id)
	if err == nil && !middlewarectx.CanAccess(r.Context(), sub.UserID) {
		err = models.ErrNotFound
	}
	if err == nil {
		sub, err = h.service.CancelScheduledFreeze(r.Context(), id, freezeID, h.clock.Now())
	}
	if err != nil {
		status := response.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			log.Error("failed to cancel freeze", sl.Err(err))
		}
		render.Status(r, status)
		render.JSON(w, r, response.Error(response.ErrorMessage(err, "freeze")))
		return
	}

	log.Info("freeze canceled", slog.Int64("subscription_id", id), slog.Int64("freeze_id", freezeID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscription": sub,
	}))
}
