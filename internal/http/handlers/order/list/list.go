// Package list реализует HTTP-обработчик списка заказов.
package list

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/http/response"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/models"
)

const defaultLimit = 20

// Query — параметры пагинации.
type Query struct {
	Limit  int `validate:"gte=1,lte=100"`
	Offset int `validate:"gte=0"`
}

// Service описывает интерфейс бизнес-логики списка заказов.
type Service interface {
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error)
	ListAll(ctx context.Context, limit, offset int) ([]*models.Order, error)
}

// Handler обрабатывает запросы на список заказов.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP возвращает заказы пользователя; сотрудник с all=true получает все заказы.
//
// @Summary Список заказов
// @Description Заказы текущего пользователя с актуальными статусами. Параметр all=true доступен только сотрудникам.
// @Tags Orders
// @Produce  json
// @Param limit query int false "Размер страницы (1-100)"
// @Param offset query int false "Смещение"
// @Param all query bool false "Все заказы (admin)"
// @Success 200 {object} response.Response "Список заказов"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /orders [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.order.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, _, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		log.Error("user not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	q := Query{Limit: defaultLimit}
	values := r.URL.Query()
	if v := values.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.Limit = n
		} else {
			q.Limit = -1
		}
	}
	if v := values.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.Offset = n
		} else {
			q.Offset = -1
		}
	}
	if err := h.validate.Struct(q); err != nil {
		log.Warn("invalid pagination", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	all := values.Get("all") == "true"
	if all && !middlewarectx.IsAdmin(r.Context()) {
		log.Warn("listing all orders requires admin role", slog.String("user_id", userID))
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, response.Error("forbidden"))
		return
	}

	var (
		orders []*models.Order
		err    error
	)
	if all {
		orders, err = h.service.ListAll(r.Context(), q.Limit, q.Offset)
	} else {
		orders, err = h.service.ListByUser(r.Context(), userID, q.Limit, q.Offset)
	}
	if err != nil {
		log.Error("failed to list orders", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list orders"))
		return
	}

	log.Debug("orders listed", slog.Int("count", len(orders)))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"count":  len(orders),
		"orders": orders,
	}))
}
