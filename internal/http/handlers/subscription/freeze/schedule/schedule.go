// Package schedule реализует HTTP-обработчик планирования заморозки подписки.
package schedule

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/http/response"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/clock"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/models"
)

// Service описывает интерфейс бизнес-логики заморозок.
type Service interface {
	Get(ctx context.Context, id int64) (*models.Subscription, error)
	ScheduleFreeze(ctx context.Context, id int64, startDate, now time.Time) (*models.FreezeRecord, error)
}

// Handler обрабатывает запросы на планирование заморозки.
type Handler struct {
	log      *slog.Logger
	service  Service
	clock    clock.Clock
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service, clk clock.Clock) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		clock:    clk,
		validate: validator.New(),
	}
}

// ServeHTTP создаёт заморозку с указанной даты.
//
// @Summary Запланировать заморозку
// @Description Создаёт заморозку активной подписки с даты start_date (YYYY-MM-DD, не раньше сегодняшней).
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param id path int true "ID подписки"
// @Param request body models.DummyFreeze true "Дата начала заморозки"
// @Success 200 {object} response.Response "Созданная заморозка"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 409 {object} response.ErrorResponse "Заморозка невозможна"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /subscriptions/{id}/freezes [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.freeze.schedule"

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

	var req models.DummyFreeze
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}
	startDate, err := time.Parse(time.DateOnly, req.StartDate)
	if err != nil {
		log.Warn("invalid start date", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("field StartDate can contain only date in format 2006-01-02"))
		return
	}

	sub, err := h.service.Get(r.Context(), id)
	if err == nil && !middlewarectx.CanAccess(r.Context(), sub.UserID) {
		err = models.ErrNotFound
	}
	var rec *models.FreezeRecord
	if err == nil {
		rec, err = h.service.ScheduleFreeze(r.Context(), id, startDate, h.clock.Now())
	}
	if err != nil {
		status := response.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			log.Error("failed to schedule freeze", sl.Err(err))
		} else {
			log.Info("freeze rejected", slog.Int64("subscription_id", id), sl.Err(err))
		}
		render.Status(r, status)
		render.JSON(w, r, response.Error(response.ErrorMessage(err, "subscription")))
		return
	}

	log.Info("freeze scheduled", slog.Int64("subscription_id", id), slog.Int64("freeze_id", rec.ID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"freeze": rec,
	}))
}
