package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cloo-solutions/signmaker/internal/config"
	"github.com/cloo-solutions/signmaker/internal/logging"
	"github.com/cloo-solutions/signmaker/internal/repository"
	"github.com/cloo-solutions/signmaker/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// openStore connects the backend selected by cfg. SQLite is always
// migrated; Postgres only when migrate is set.
func openStore(ctx context.Context, cfg *config.Config, migrate bool, logger *zap.Logger) (*repository.Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		return repository.OpenSQLite(ctx, cfg.SQLitePath, logger)
	default:
		return repository.OpenPostgres(ctx, cfg.DatabaseURL, migrate, logger)
	}
}

// withStore loads config, opens the store quietly and runs fn.
func withStore(ctx context.Context, fn func(store *repository.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := zap.NewNop()
	if cfg.Debug {
		logger = logging.Must(true)
		defer func() { _ = logger.Sync() }()
	}

	store, err := openStore(ctx, cfg, false, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(store)
}

func newAdminService(store *repository.Store) *service.AdminService {
	return service.NewAdminService(store.Orgs, store.Memberships, store.Memories, &service.DefaultUUIDGenerator{})
}

func newIdentityService(store *repository.Store) *service.IdentityService {
	return service.NewIdentityService(store.Tokens, &service.DefaultUUIDGenerator{})
}

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().String("output", "text", "Output format (text or json)")
}

func jsonOutput(cmd *cobra.Command) bool {
	format, _ := cmd.Flags().GetString("output")
	return format == "json"
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
