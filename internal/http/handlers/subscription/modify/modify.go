// Package modify реализует HTTP-обработчик изменения настроек подписки на один сервис.
//
// Переданные поля перезаписываются, остальные поля записи и записи
// других сервисов остаются без изменений.
package modify

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/api-aggregator/internal/http/middlewarectx"
	"github.com/magabrotheeeer/api-aggregator/internal/http/response"
	"github.com/magabrotheeeer/api-aggregator/internal/lib/sl"
	"github.com/magabrotheeeer/api-aggregator/internal/models"
	"github.com/magabrotheeeer/api-aggregator/internal/services/subscription"
)

// Request — изменение записи сервиса. Отсутствующие поля не меняются.
// Keys — ключи через пробел; параметр меняется, только если переданы и имя, и значение.
type Request struct {
	Service    string  `json:"service" validate:"required"`
	Token      *string `json:"token,omitempty"`
	Keys       *string `json:"keys,omitempty"`
	ParamName  *string `json:"param_name,omitempty"`
	ParamValue *string `json:"param_value,omitempty"`
}

func (r Request) patch() subscription.Patch {
	return subscription.Patch{
		Token:      r.Token,
		Keys:       r.Keys,
		ParamName:  r.ParamName,
		ParamValue: r.ParamValue,
	}
}

type Service interface {
	ApplyPatch(ctx context.Context, userID int64, service string, patch subscription.Patch) (models.SubscriptionConfig, error)
}

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Изменение настроек подписки
// @Description Меняет токен, ключи или один параметр записи сервиса. Отсутствующая запись создаётся.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Изменение записи сервиса"
// @Success 200 {object} response.Response "Обновлённая запись"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 404 {object} response.ErrorResponse "Настройки пользователя не найдены"
// @Failure 422 {object} response.ErrorResponse "Неизвестный сервис или повреждённая запись"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /modify [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.modify"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		log.Error("user not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req Request
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode request"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	cfg, err := h.service.ApplyPatch(r.Context(), user.ID, req.Service, req.patch())
	if err != nil {
		status, msg := response.StatusFor(err)
		if status == http.StatusInternalServerError {
			log.Error("failed to modify subscription", sl.UserID(user.ID), sl.Err(err))
		} else {
			log.Info("subscription modification rejected", sl.UserID(user.ID), sl.Err(err))
		}
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"service": req.Service,
		"entry":   cfg[req.Service],
	}))
}
