package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/cloo-solutions/signmaker/internal/chatclient"
	"github.com/cloo-solutions/signmaker/internal/cli"
	"github.com/cloo-solutions/signmaker/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "signmaker",
		Short: "SignMaker CLI - chat with the sign industry assistant",
		Long: `SignMaker CLI streams answers from a signmaker server.

Environment variables:
  SIGNMAKER_TOKEN     access token; without one answers use no saved memories
  SIGNMAKER_API_URL   server base URL (default: http://localhost:8080)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	client.AddConnectionFlags(rootCmd)
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.ChatCmd())
	rootCmd.AddCommand(client.ConfigCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		// chat reports stream failures itself
		var chatErr *chatclient.Error
		if !errors.As(err, &chatErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
