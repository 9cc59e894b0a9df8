package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// Supported ledger drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// migrationsTable is the golang-migrate bookkeeping table.
const migrationsTable = "schema_migrations"

//go:embed migrations
var migrationsFS embed.FS

// Migrator applies the embedded schema migrations for one driver.
type Migrator struct {
	migrate *migrate.Migrate
	sqlDB   *sql.DB // closed by the migrate driver (sqlite) or by Close (postgres)
	driver  string
	logger  zerolog.Logger
}

// NewPostgresMigrator creates a migrator for the PostgreSQL ledger.
func NewPostgresMigrator(db *DB, logger zerolog.Logger) (*Migrator, error) {
	if db == nil || db.pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	sqlDB := stdlib.OpenDBFromPool(db.pool)
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{
		MigrationsTable: migrationsTable,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := newMigrate(DriverPostgres, driver)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return &Migrator{migrate: m, sqlDB: sqlDB, driver: DriverPostgres, logger: logger}, nil
}

// NewSQLiteMigrator creates a migrator for the SQLite ledger file at path.
// It opens its own handle, which Close releases.
func NewSQLiteMigrator(ctx context.Context, path string, logger zerolog.Logger) (*Migrator, error) {
	sqlDB, err := OpenSQLite(ctx, path, logger)
	if err != nil {
		return nil, err
	}

	driver, err := sqlite.WithInstance(sqlDB, &sqlite.Config{
		MigrationsTable: migrationsTable,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := newMigrate(DriverSQLite, driver)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	// The sqlite driver owns sqlDB and closes it with the migrate instance.
	return &Migrator{migrate: m, driver: DriverSQLite, logger: logger}, nil
}

func newMigrate(driverName string, driver migratedb.Driver) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations/"+driverName)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s migrations: %w", driverName, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driverName, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// Up runs all pending migrations.
func (m *Migrator) Up() error {
	m.logger.Info().Str("driver", m.driver).Msg("running database migrations...")

	if err := m.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Msg("no migrations to apply")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	m.logger.Info().Msg("migrations completed successfully")
	return nil
}

// Down rolls back all migrations.
func (m *Migrator) Down() error {
	m.logger.Warn().Str("driver", m.driver).Msg("rolling back all migrations...")

	if err := m.migrate.Down(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Msg("no migrations to roll back")
			return nil
		}
		return fmt.Errorf("failed to rollback migrations: %w", err)
	}

	m.logger.Info().Msg("migrations rolled back successfully")
	return nil
}

// Steps runs n migrations (positive = up, negative = down).
func (m *Migrator) Steps(n int) error {
	m.logger.Info().Int("steps", n).Msg("running migration steps...")

	if err := m.migrate.Steps(n); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Msg("no migrations to apply")
			return nil
		}
		// Stepping past the last migration reports a missing file.
		if errors.Is(err, os.ErrNotExist) {
			m.logger.Info().Msg("no more migrations available")
			return nil
		}
		return fmt.Errorf("failed to run migration steps: %w", err)
	}

	m.logger.Info().Int("steps", n).Msg("migration steps completed successfully")
	return nil
}

// Version returns the current migration version and whether it is dirty.
func (m *Migrator) Version() (uint, bool, error) {
	return m.migrate.Version()
}

// Force sets the migration version without running migrations.
func (m *Migrator) Force(version int) error {
	m.logger.Warn().Int("version", version).Msg("forcing migration version...")
	return m.migrate.Force(version)
}

// Close releases the migrator's source and database handles.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()

	if m.sqlDB != nil {
		if err := m.sqlDB.Close(); err != nil && dbErr == nil {
			dbErr = err
		}
	}

	if sourceErr != nil && dbErr != nil {
		return fmt.Errorf("failed to close migrator: source error: %v, database error: %w", sourceErr, dbErr)
	}
	if sourceErr != nil {
		return fmt.Errorf("failed to close source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close database: %w", dbErr)
	}
	return nil
}

// Migrate opens a migrator for driver and runs Up. pg is required for
// postgres; sqlitePath for sqlite.
func Migrate(ctx context.Context, driver string, pg *DB, sqlitePath string, logger zerolog.Logger) error {
	var (
		m   *Migrator
		err error
	)
	switch driver {
	case DriverPostgres:
		m, err = NewPostgresMigrator(pg, logger)
	case DriverSQLite:
		m, err = NewSQLiteMigrator(ctx, sqlitePath, logger)
	default:
		return fmt.Errorf("unsupported ledger driver %q", driver)
	}
	if err != nil {
		return err
	}
	defer m.Close()

	return m.Up()
}
