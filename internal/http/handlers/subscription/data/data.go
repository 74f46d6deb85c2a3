// Package data отдаёт агрегированные ответы всех сервисов, на которые подписан пользователь.
package data

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
	FetchAll(ctx context.Context, userID int64) (map[string]models.Result, error)
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

// ServeHTTP godoc
// @Summary Агрегированные данные
// @Description Опрашивает все сервисы пользователя параллельно. Сбой сервиса отражается в его поле error.
// @Tags Subscriptions
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response "Имя сервиса -> {data} или {error}"
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 500 {object} response.ErrorResponse "Не удалось прочитать настройки"
// @Router /data [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.data"

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

	results, err := h.service.FetchAll(r.Context(), user.ID)
	if err != nil {
		log.Error("failed to aggregate data", sl.UserID(user.ID), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not load subscriptions"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(results))
}
