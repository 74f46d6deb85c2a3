// Package sl содержит вспомогательные функции для работы с логгером slog.
// Основная цель — единообразные поля структурированного лога.
package sl

import "log/slog"

// Err возвращает slog.Attr с ключом "error" и текстом ошибки.
//
// Пример:
//
//	log.Error("failed to do something", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// UserID возвращает атрибут с идентификатором пользователя.
func UserID(id int64) slog.Attr {
	return slog.Int64("user_id", id)
}

// Service возвращает атрибут с именем внешнего сервиса.
func Service(name string) slog.Attr {
	return slog.String("service", name)
}

// AggregationID возвращает атрибут, связывающий все записи одного вызова FetchAll.
func AggregationID(id string) slog.Attr {
	return slog.String("aggregation_id", id)
}
