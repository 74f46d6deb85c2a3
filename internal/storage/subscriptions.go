package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/api-aggregator/internal/models"
)

// Mutator получает текущий документ настроек и возвращает новый.
// Ошибка мутатора откатывает транзакцию.
type Mutator func(cfg models.SubscriptionConfig) (models.SubscriptionConfig, error)

// GetConfig возвращает последний зафиксированный документ настроек пользователя без блокировки.
func (s *Storage) GetConfig(ctx context.Context, userID int64) (models.SubscriptionConfig, error) {
	const op = "storage.GetConfig"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var arg string
	err := s.DB.QueryRowContext(ctx, `SELECT arg FROM subscriptions WHERE user_id = $1`, userID).Scan(&arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: user %d: %w", op, userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cfg, err := models.DecodeConfig([]byte(arg))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrMalformed, err)
	}
	return cfg, nil
}

// UpdateConfig выполняет чтение-изменение-запись документа настроек в одной транзакции.
//
// Строка пользователя блокируется через SELECT ... FOR UPDATE, поэтому
// параллельные вызовы для одного пользователя выполняются последовательно,
// а для разных пользователей не мешают друг другу.
func (s *Storage) UpdateConfig(ctx context.Context, userID int64, fn Mutator) (models.SubscriptionConfig, error) {
	const op = "storage.UpdateConfig"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rollback(tx)

	var arg string
	err = tx.QueryRowContext(ctx, `SELECT arg FROM subscriptions WHERE user_id = $1 FOR UPDATE`, userID).Scan(&arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: user %d: %w", op, userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	current, err := models.DecodeConfig([]byte(arg))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrMalformed, err)
	}

	updated, err := fn(current)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	encoded, err := updated.Encode()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrMalformed, err)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE subscriptions SET arg = $1, updated_at = NOW() WHERE user_id = $2`,
		string(encoded), userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}
