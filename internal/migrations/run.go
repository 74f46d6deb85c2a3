// Package migrations приводит схему PostgreSQL к последней версии из каталога migrations/.
package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Table хранит номер применённой версии схемы.
const Table = "schema_migrations"

// Run применяет все непримененные миграции. Повторный запуск ничего не меняет.
// Схема, оставшаяся «грязной» после сбоя, считается ошибкой.
func Run(db *sql.DB, dir string) error {
	const op = "migrations.Run"

	driver, err := pgxv5.WithInstance(db, &pgxv5.Config{MigrationsTable: Table})
	if err != nil {
		return fmt.Errorf("%s: driver: %w", op, err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(dir), "pgx_v5", driver)
	if err != nil {
		return fmt.Errorf("%s: source %s: %w", op, dir, err)
	}

	if _, dirty, verr := m.Version(); verr == nil && dirty {
		return fmt.Errorf("%s: schema is dirty, fix it manually", op)
	}
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: up: %w", op, err)
	}
	return nil
}
