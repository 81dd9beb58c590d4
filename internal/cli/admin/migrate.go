package admin

import (
	"fmt"

	"github.com/cloo-solutions/signmaker/internal/config"
	"github.com/cloo-solutions/signmaker/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// MigrateCmd applies pending schema migrations to the configured store.
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger, err := logging.New(cfg.Debug)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			store, err := openStore(cmd.Context(), cfg, true, logger)
			if err != nil {
				logger.Error("migration failed", zap.Error(err))
				return err
			}
			store.Close()
			return nil
		},
	}
}
