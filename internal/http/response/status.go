package response

import (
	"errors"
	"net/http"

	"github.com/magabrotheeeer/api-aggregator/internal/services/account"
	"github.com/magabrotheeeer/api-aggregator/internal/storage"
)

// StatusFor возвращает HTTP-статус и текст ответа для ошибки сервисного слоя.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, account.ErrAuthFailure):
		return http.StatusUnauthorized, "authentication failed"
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict, "already exists"
	case errors.Is(err, storage.ErrMalformed):
		return http.StatusUnprocessableEntity, "malformed request"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
