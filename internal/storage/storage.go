// Package storage реализует хранилище данных на основе PostgreSQL:
// пользователей и документов настроек подписок (по одному на пользователя).
// Изменения документа выполняются в транзакции с блокировкой строки.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	// ErrNotFound — пользователь или его документ настроек отсутствуют.
	ErrNotFound = errors.New("not found")
	// ErrConflict — пользователь с таким email уже существует.
	ErrConflict = errors.New("already exists")
	// ErrMalformed — документ настроек или его часть не является корректным JSON-объектом.
	ErrMalformed = errors.New("malformed subscription config")
)

// Storage инкапсулирует пул соединений с PostgreSQL.
// Каждая операция берёт из пула собственное соединение.
type Storage struct {
	DB *sql.DB
}

// New создаёт пул соединений с PostgreSQL и проверяет доступность базы.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{DB: db}, nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// CheckDatabaseReady проверяет, что база доступна и миграции применены.
func (s *Storage) CheckDatabaseReady(ctx context.Context) error {
	const op = "storage.CheckDatabaseReady"
	var exists bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'subscriptions'
    )`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("%s: required table subscriptions missing", op)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
