package session

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/lewisedginton/chat_relay/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrator applies the embedded schema migrations to a Postgres database.
type Migrator struct {
	db     *sql.DB
	logger logger.Logger
}

// NewMigrator wraps a pgx pool in a database/sql handle for golang-migrate.
func NewMigrator(pool *pgxpool.Pool, log logger.Logger) *Migrator {
	return &Migrator{
		db:     stdlib.OpenDBFromPool(pool),
		logger: log,
	}
}

// Up applies pending migrations. An up-to-date schema is not an error.
func (m *Migrator) Up() error {
	migrator, err := m.newMigrate()
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	m.logger.Info("applying session schema migrations")

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("session schema is up to date")
			return nil
		}
		m.logger.Error("session schema migration failed", logger.ErrorField(err))
		return fmt.Errorf("run migrations: %w", err)
	}

	version, _, _ := migrator.Version()
	m.logger.Info("session schema migrated", logger.Field("version", int64(version)))
	return nil
}

func (m *Migrator) newMigrate() (*migrate.Migrate, error) {
	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("create embedded migration source: %w", err)
	}

	driver, err := postgres.WithInstance(m.db, &postgres.Config{MigrationsTable: "session_schema_migrations"})
	if err != nil {
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return migrator, nil
}
