// Package models содержит доменные структуры сервиса: пользователя,
// документ настроек подписок и результат агрегации.
package models

import "time"

// Grade — тариф пользователя. Влияет только на интервал автообновления на клиенте.
type Grade string

const (
	GradeMicro    Grade = "micro"
	GradeSmall    Grade = "small"
	GradeStandard Grade = "standard"
	GradePremium  Grade = "premium"
)

// Valid сообщает, является ли тариф известным.
func (g Grade) Valid() bool {
	switch g {
	case GradeMicro, GradeSmall, GradeStandard, GradePremium:
		return true
	}
	return false
}

// RefreshInterval возвращает интервал, с которым клиент запрашивает /data.
func (g Grade) RefreshInterval() time.Duration {
	switch g {
	case GradePremium:
		return 10 * time.Second
	case GradeStandard:
		return 20 * time.Second
	default:
		return 30 * time.Second
	}
}

// User представляет зарегистрированного пользователя системы.
type User struct {
	ID           int64  // Уникальный неизменяемый идентификатор
	Email        string // Электронная почта (уникальная)
	Salt         string // Соль, подмешиваемая к паролю перед хэшированием
	PasswordHash string // bcrypt(salt + password)
	Grade        Grade
}
