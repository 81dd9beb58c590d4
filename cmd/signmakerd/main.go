package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/signmaker/internal/cli"
	"github.com/cloo-solutions/signmaker/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "signmakerd",
		Short: "SignMaker chat server",
		Long: `SignMaker chat server and administration commands.

Configuration comes from SIGNMAKER_* environment variables (or a .env file):
  SIGNMAKER_STORE             postgres (default) or sqlite
  SIGNMAKER_DATABASE_URL      Postgres connection URL
  SIGNMAKER_SQLITE_PATH       SQLite file (default: signmaker.db)
  SIGNMAKER_PROVIDER_API_KEY  language model gateway key (required for serve)`,
		SilenceUsage: true,
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.MigrateCmd())
	rootCmd.AddCommand(admin.OrgCmd())
	rootCmd.AddCommand(admin.MemberCmd())
	rootCmd.AddCommand(admin.TokenCmd())
	rootCmd.AddCommand(admin.MemoryCmd())
	rootCmd.AddCommand(admin.KnowledgeCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
