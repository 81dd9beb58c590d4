package admin

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/cloo-solutions/signmaker/internal/domain"
	"github.com/cloo-solutions/signmaker/internal/repository"
	"github.com/spf13/cobra"
)

// orgView is the JSON shape of an organization.
type orgView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func newOrgView(org *domain.Organization) orgView {
	return orgView{ID: org.ID, Name: org.Name, CreatedAt: org.CreatedAt}
}

func OrgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage organizations",
		Long:  "Create and list the organizations whose approved knowledge reaches their members.",
	}
	cmd.AddCommand(OrgCreateCmd(), OrgListCmd())
	return cmd
}

func OrgCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "create <name>",
		Short:   "Create an organization",
		Example: `  signmakerd org create "Acme Signs"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStore(ctx, func(store *repository.Store) error {
				org, err := newAdminService(store).CreateOrg(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to create organization: %w", err)
				}
				out := cmd.OutOrStdout()
				if jsonOutput(cmd) {
					return printJSON(out, newOrgView(org))
				}
				fmt.Fprintf(out, "Organization created: %s (%s)\n", org.Name, org.ID)
				return nil
			})
		},
	}
	addOutputFlag(cmd)
	return cmd
}

func OrgListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List organizations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStore(ctx, func(store *repository.Store) error {
				orgs, err := newAdminService(store).ListOrgs(ctx)
				if err != nil {
					return fmt.Errorf("failed to list organizations: %w", err)
				}
				out := cmd.OutOrStdout()
				if jsonOutput(cmd) {
					items := make([]orgView, 0, len(orgs))
					for _, org := range orgs {
						items = append(items, newOrgView(org))
					}
					return printJSON(out, map[string]any{"items": items})
				}
				if len(orgs) == 0 {
					fmt.Fprintln(out, "No organizations found")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tCREATED")
				for _, org := range orgs {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", org.ID, org.Name, org.CreatedAt.Format(time.DateTime))
				}
				return tw.Flush()
			})
		},
	}
	addOutputFlag(cmd)
	return cmd
}
