package postgres

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Migrate applies all pending migrations.
func (r *PostgresRepo) Migrate() error {
	const op = "storage.postgres.Migrate"

	if err := r.goose(goose.Up); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// MigrateDown rolls back the last migration.
func (r *PostgresRepo) MigrateDown() error {
	const op = "storage.postgres.MigrateDown"

	if err := r.goose(goose.Down); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) goose(run func(db *sql.DB, dir string, opts ...goose.OptionsFunc) error) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return run(db, "migrations")
}
