// Package read реализует HTTP-обработчик получения заказа с актуальным статусом.
package read

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/http/response"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/models"
)

// Handler обрабатывает запросы на получение заказа по ID.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики чтения заказа.
type Service interface {
	Get(ctx context.Context, id string) (*models.Order, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP возвращает заказ, статус которого пересчитан на момент запроса.
// Чужой заказ для обычного пользователя, как и ID не в формате UUID, неотличим от несуществующего.
//
// @Summary Получить заказ
// @Description Возвращает заказ по ID; статус пересчитывается по прошедшему времени перед ответом.
// @Tags Orders
// @Produce  json
// @Param id path string true "ID заказа (uuid)"
// @Success 200 {object} response.Response "Заказ"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Заказ не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /orders/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.order.read"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		log.Warn("invalid order id", slog.String("id", id))
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("order not found"))
		return
	}

	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		status := response.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			log.Error("failed to read order", sl.Err(err))
		}
		render.Status(r, status)
		render.JSON(w, r, response.Error(response.ErrorMessage(err, "order")))
		return
	}

	if !middlewarectx.CanAccess(r.Context(), order.UserID) {
		log.Warn("order belongs to another user", slog.String("order_id", id))
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("order not found"))
		return
	}

	log.Debug("order read", slog.String("order_id", id), slog.String("status", string(order.Status)))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"order": order,
	}))
}
