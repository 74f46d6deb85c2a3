// Package show отдаёт текущий документ настроек подписок и список доступных сервисов.
package show

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/api-aggregator/internal/http/middlewarectx"
	"github.com/magabrotheeeer/api-aggregator/internal/http/response"
	"github.com/magabrotheeeer/api-aggregator/internal/lib/sl"
	"github.com/magabrotheeeer/api-aggregator/internal/models"
)

type Service interface {
	Config(ctx context.Context, userID int64) (models.SubscriptionConfig, error)
}

type Handler struct {
	log      *slog.Logger
	service  Service
	services []string
}

// New создаёт обработчик. services — имена сервисов из реестра.
func New(log *slog.Logger, service Service, services []string) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		services: services,
	}
}

// ServeHTTP godoc
// @Summary Настройки подписок
// @Description Возвращает документ настроек пользователя и список сервисов, на которые можно подписаться.
// @Tags Subscriptions
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 404 {object} response.ErrorResponse "Настройки не найдены"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /modify [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.show"

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

	cfg, err := h.service.Config(r.Context(), user.ID)
	if err != nil {
		status, msg := response.StatusFor(err)
		log.Error("failed to read subscription config", sl.UserID(user.ID), sl.Err(err))
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}
	if cfg == nil {
		cfg = models.SubscriptionConfig{}
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"config":   cfg,
		"services": h.services,
	}))
}
