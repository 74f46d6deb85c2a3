// Package cancel удаляет аккаунт текущего пользователя вместе с его настройками.
package cancel

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/api-aggregator/internal/http/middlewarectx"
	"github.com/magabrotheeeer/api-aggregator/internal/http/response"
	"github.com/magabrotheeeer/api-aggregator/internal/lib/sl"
)

type Service interface {
	Cancel(ctx context.Context, userID int64) error
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
// @Summary Удаление аккаунта
// @Description Удаляет пользователя и все его настройки подписок.
// @Tags Account
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /cancel [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.cancel"

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

	if err := h.service.Cancel(r.Context(), user.ID); err != nil {
		status, msg := response.StatusFor(err)
		log.Error("failed to cancel account", sl.UserID(user.ID), sl.Err(err))
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}

	log.Info("account cancelled", sl.UserID(user.ID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user_id": user.ID,
	}))
}
