package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cloo-solutions/signmaker/internal/database"
	"github.com/cloo-solutions/signmaker/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Store bundles the repositories of one backend.
type Store struct {
	Orgs        service.OrgRepositoryInterface
	Memberships service.MembershipRepositoryInterface
	Memories    service.MemoryRepositoryInterface
	Tokens      service.AccessTokenRepositoryInterface

	ping  func(ctx context.Context) error
	close func()
}

// Ping checks the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases the underlying connections.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenPostgres connects a pgx pool, optionally migrates, and returns the
// Postgres-backed store.
func OpenPostgres(ctx context.Context, databaseURL string, migrate bool, logger *zap.Logger) (*Store, error) {
	pool, err := database.NewPool(ctx, database.DefaultConfig(databaseURL))
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database", zap.String("store", string(DialectPostgres)))

	if migrate {
		if err := migratePostgres(databaseURL, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return NewPostgresStore(pool), nil
}

// NewPostgresStore wraps an existing pool. Closing the store closes the pool.
func NewPostgresStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Orgs:        NewOrgRepository(pool),
		Memberships: NewMembershipRepository(pool),
		Memories:    NewMemoryRepository(pool),
		Tokens:      NewAccessTokenRepository(pool),
		ping:        pool.Ping,
		close:       pool.Close,
	}
}

func migratePostgres(databaseURL string, logger *zap.Logger) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	result, err := Migrate(db, DialectPostgres)
	if err != nil {
		return err
	}
	logMigration(logger, result)
	return nil
}

// OpenSQLite opens (creating if needed) the database file at path and
// applies migrations.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	db, err := openSQLiteDB(ctx, path)
	if err != nil {
		return nil, err
	}
	logger.Info("opened database", zap.String("store", string(DialectSQLite)), zap.String("path", path))

	result, err := Migrate(db, DialectSQLite)
	if err != nil {
		db.Close()
		return nil, err
	}
	logMigration(logger, result)

	return NewSQLiteStore(db), nil
}

func logMigration(logger *zap.Logger, result *MigrationResult) {
	if result.Applied {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
		return
	}
	logger.Info("database is up to date", zap.Uint("version", result.Version))
}
