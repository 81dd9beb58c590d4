package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/cloo-solutions/signmaker/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Dialect names a supported store backend.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// MigrationResult describes the schema state after Migrate.
type MigrationResult struct {
	Version uint
	Applied bool
}

// Migrate applies all pending up migrations for dialect to db.
func Migrate(db *sql.DB, dialect Dialect) (*MigrationResult, error) {
	var (
		driver database.Driver
		dir    string
		err    error
	)
	switch dialect {
	case DialectPostgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
		dir = migrations.PostgresDir
	case DialectSQLite:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
		dir = migrations.SQLiteDir
	default:
		return nil, fmt.Errorf("unsupported store dialect %q", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrations.FS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, string(dialect), driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	applied := true
	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		applied = false
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return nil, fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		return nil, fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	}

	return &MigrationResult{Version: version, Applied: applied}, nil
}
