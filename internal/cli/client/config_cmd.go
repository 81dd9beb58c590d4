package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// ConfigCmd manages the persisted CLI configuration.
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Store the server URL and access token in ~/.config/signmaker/config.json",
	}

	cmd.AddCommand(configSetCmd())
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configClearCmd())

	return cmd
}

func configSetCmd() *cobra.Command {
	var token, apiURL string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Save the server URL and/or access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" && apiURL == "" {
				return fmt.Errorf("nothing to set: pass --token and/or --url")
			}
			if token != "" && !IsValidToken(token) {
				return fmt.Errorf("invalid token format (expected 'smk_<64 hex chars>')")
			}

			config, err := LoadGlobalConfig()
			if err != nil {
				return err
			}
			if config == nil {
				config = &GlobalConfig{}
			}
			if token != "" {
				config.Token = token
			}
			if apiURL != "" {
				config.APIURL = apiURL
			}
			if err := SaveGlobalConfig(config); err != nil {
				return err
			}

			path, _ := GetConfigPath()
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Access token (smk_...)")
	cmd.Flags().StringVar(&apiURL, "url", "", "Server URL, e.g. http://localhost:8080")

	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration and where each value comes from",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ResolveSettings(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				data, _ := json.MarshalIndent(map[string]any{
					"api_url":      s.APIURL,
					"api_url_from": s.URLSource,
					"endpoint":     s.Endpoint(),
					"token":        maskToken(s.Token),
					"token_from":   s.TokenSource,
				}, "", "  ")
				fmt.Fprintln(out, string(data))
				return nil
			}

			fmt.Fprintf(out, "Endpoint: %s (%s)\n", s.Endpoint(), s.URLSource)
			if s.Anonymous() {
				fmt.Fprintln(out, "Token: none (anonymous, no saved memories are used)")
			} else {
				fmt.Fprintf(out, "Token: %s (%s)\n", maskToken(s.Token), s.TokenSource)
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}

func configClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the saved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DeleteGlobalConfig(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration cleared")
			return nil
		},
	}
}

func maskToken(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:8] + "..." + token[len(token)-4:]
}
