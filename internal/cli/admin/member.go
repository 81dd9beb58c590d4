package admin

import (
	"fmt"

	"github.com/cloo-solutions/signmaker/internal/repository"
	"github.com/spf13/cobra"
)

func MemberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage organization membership",
		Long:  "Assign users to an organization. A user belongs to at most one organization.",
	}

	cmd.AddCommand(MemberAddCmd())
	cmd.AddCommand(MemberRemoveCmd())

	return cmd
}

func MemberAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user to an organization (moves them if already a member elsewhere)",
		RunE:  runMemberAdd,
	}
	cmd.Flags().StringP("org", "o", "", "Organization ID or name (required)")
	cmd.Flags().StringP("user", "u", "", "User ID (required)")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("user")
	addOutputFlag(cmd)
	return cmd
}

func runMemberAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	orgRef, _ := cmd.Flags().GetString("org")
	userID, _ := cmd.Flags().GetString("user")

	return withStore(ctx, func(store *repository.Store) error {
		m, err := newAdminService(store).AddMember(ctx, orgRef, userID)
		if err != nil {
			return fmt.Errorf("failed to add member: %w", err)
		}

		out := cmd.OutOrStdout()
		if jsonOutput(cmd) {
			return printJSON(out, map[string]any{
				"user_id": m.UserID,
				"org_id":  m.OrgID,
			})
		}
		fmt.Fprintf(out, "User %s is now a member of organization %s\n", m.UserID, m.OrgID)
		return nil
	})
}

func MemberRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <user-id>",
		Short: "Remove a user from their organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStore(ctx, func(store *repository.Store) error {
				if err := newAdminService(store).RemoveMember(ctx, args[0]); err != nil {
					return fmt.Errorf("failed to remove member: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User %s removed from their organization\n", args[0])
				return nil
			})
		},
	}
}
