// Package testutil starts the disposable Postgres used by integration and
// end-to-end tests.
package testutil

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/signmaker/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	pgImage      = "postgres:17-alpine"
	pgCredential = "signmaker"
	pgPort       = "5432/tcp"
)

// memoryTables lists every table the migrations create, children first.
var memoryTables = []string{
	"access_tokens",
	"company_knowledge",
	"user_memories",
	"org_members",
	"organizations",
}

// PostgresContainer is a running Postgres reachable from the test process.
// It is terminated when the test that started it finishes.
type PostgresContainer struct {
	Container testcontainers.Container
	Host      string
	Port      string
}

// NewPostgresContainer starts Postgres and waits until it accepts connections.
func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        pgImage,
			ExposedPorts: []string{pgPort},
			Env: map[string]string{
				"POSTGRES_USER":     pgCredential,
				"POSTGRES_PASSWORD": pgCredential,
				"POSTGRES_DB":       pgCredential,
			},
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort(pgPort),
			).WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	host, err := container.Host(ctx)
	require.NoError(t, err, "container host")
	port, err := container.MappedPort(ctx, pgPort)
	require.NoError(t, err, "container port")

	return &PostgresContainer{Container: container, Host: host, Port: port.Port()}
}

// ConnectionString returns a DSN for the container's database.
func (pc *PostgresContainer) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		pgCredential, pgCredential, pc.Host, pc.Port, pgCredential)
}

// NewTestPool connects to the container, retrying while Postgres finishes
// booting, and applies the embedded up migrations. The pool is closed when
// the test finishes.
func NewTestPool(ctx context.Context, t *testing.T, pc *PostgresContainer) *pgxpool.Pool {
	t.Helper()

	var pool *pgxpool.Pool
	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		if pool, err = connect(ctx, pc.ConnectionString()); err == nil {
			break
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	require.NoError(t, err, "connect to postgres")
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool), "apply migrations")
	return pool
}

func connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// RunMigrations executes the embedded Postgres up scripts in name order.
// It reads the files directly so repository tests can use it without an
// import cycle through the migration runner.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	entries, err := fs.ReadDir(migrations.FS, migrations.PostgresDir)
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			names = append(names, entry.Name())
		}
	}
	slices.Sort(names)

	for _, name := range names {
		script, err := fs.ReadFile(migrations.FS, path.Join(migrations.PostgresDir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(script)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

// TruncateAll empties every table between tests.
func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, "TRUNCATE TABLE "+strings.Join(memoryTables, ", ")+" CASCADE")
	return err
}
