package admin

import (
	"fmt"
	"time"

	"github.com/cloo-solutions/signmaker/internal/domain"
	"github.com/cloo-solutions/signmaker/internal/repository"
	"github.com/spf13/cobra"
)

func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage access tokens",
		Long:  "Issue, list, and revoke the bearer tokens chat clients use to identify a user",
	}

	cmd.AddCommand(TokenCreateCmd())
	cmd.AddCommand(TokenListCmd())
	cmd.AddCommand(TokenRevokeCmd())

	return cmd
}

func TokenCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue a new access token for a user",
		RunE:  runTokenCreate,
	}

	cmd.Flags().StringP("user", "u", "", "User ID (required)")
	cmd.Flags().StringP("name", "n", "", "Token name (required)")
	cmd.Flags().Duration("ttl", 0, "Token lifetime, e.g. 720h (0 means no expiry)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("name")
	addOutputFlag(cmd)

	return cmd
}

func runTokenCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	userID, _ := cmd.Flags().GetString("user")
	name, _ := cmd.Flags().GetString("name")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	return withStore(ctx, func(store *repository.Store) error {
		plaintext, token, err := newIdentityService(store).IssueToken(ctx, userID, name, ttl)
		if err != nil {
			return fmt.Errorf("failed to create access token: %w", err)
		}

		out := cmd.OutOrStdout()
		if jsonOutput(cmd) {
			return printJSON(out, map[string]any{
				"id":         token.ID,
				"name":       token.Name,
				"user_id":    token.UserID,
				"expires_at": token.ExpiresAt,
				"token":      plaintext,
			})
		}
		fmt.Fprintf(out, "Access token created for user %s\n", token.UserID)
		fmt.Fprintf(out, "Token ID: %s\n", token.ID)
		fmt.Fprintf(out, "Token Name: %s\n", token.Name)
		if token.ExpiresAt != nil {
			fmt.Fprintf(out, "Expires: %s\n", token.ExpiresAt.Format(time.RFC3339))
		}
		fmt.Fprintf(out, "Token: %s\n", plaintext)
		fmt.Fprintln(out, "\nSave this token now. You won't be able to see it again!")
		return nil
	})
}

func TokenListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List access tokens of a user",
		RunE:  runTokenList,
	}
	cmd.Flags().StringP("user", "u", "", "User ID (required)")
	_ = cmd.MarkFlagRequired("user")
	addOutputFlag(cmd)
	return cmd
}

func tokenStatus(t *domain.AccessToken, now time.Time) string {
	switch {
	case t.IsRevoked():
		return "revoked"
	case t.IsExpired(now):
		return "expired"
	default:
		return "active"
	}
}

func runTokenList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	userID, _ := cmd.Flags().GetString("user")

	return withStore(ctx, func(store *repository.Store) error {
		tokens, err := newIdentityService(store).ListTokens(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to list access tokens: %w", err)
		}

		now := time.Now()
		out := cmd.OutOrStdout()
		if jsonOutput(cmd) {
			items := make([]map[string]any, len(tokens))
			for i, t := range tokens {
				items[i] = map[string]any{
					"id":         t.ID,
					"name":       t.Name,
					"user_id":    t.UserID,
					"created_at": t.CreatedAt,
					"expires_at": t.ExpiresAt,
					"revoked_at": t.RevokedAt,
					"status":     tokenStatus(t, now),
				}
			}
			return printJSON(out, map[string]any{"items": items})
		}

		if len(tokens) == 0 {
			fmt.Fprintf(out, "No access tokens found for user %s\n", userID)
			return nil
		}
		fmt.Fprintf(out, "Access tokens for user %s:\n", userID)
		for _, t := range tokens {
			fmt.Fprintf(out, "  %s: %s (%s, created: %s)\n", t.ID, t.Name, tokenStatus(t, now), t.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	})
}

func TokenRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an access token",
		Args:  cobra.ExactArgs(1),
		RunE:  runTokenRevoke,
	}
	addOutputFlag(cmd)
	return cmd
}

func runTokenRevoke(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tokenID := args[0]

	return withStore(ctx, func(store *repository.Store) error {
		if err := newIdentityService(store).RevokeToken(ctx, tokenID); err != nil {
			return fmt.Errorf("failed to revoke access token: %w", err)
		}

		out := cmd.OutOrStdout()
		if jsonOutput(cmd) {
			return printJSON(out, map[string]any{
				"id":      tokenID,
				"revoked": true,
			})
		}
		fmt.Fprintf(out, "Access token %s revoked successfully\n", tokenID)
		return nil
	})
}
