package admin

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/signmaker/internal/domain"
	"github.com/cloo-solutions/signmaker/internal/repository"
	"github.com/cloo-solutions/signmaker/internal/service"
	"github.com/spf13/cobra"
)

func KnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Manage company knowledge",
	}
	cmd.AddCommand(KnowledgeAddCmd())
	return cmd
}

func KnowledgeAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a company knowledge record to an organization",
		Long: `Add a company knowledge record to an organization.

Only approved records are shared with members of the organization.`,
		RunE: runKnowledgeAdd,
	}

	cmd.Flags().StringP("org", "o", "", "Organization ID or name (required)")
	cmd.Flags().StringP("content", "c", "", "Knowledge content (required)")
	cmd.Flags().StringP("type", "t", domain.MemoryTypeRuleOfThumb, "Memory type")
	cmd.Flags().String("status", string(domain.KnowledgeStatusApproved), "Review status: pending, approved or rejected")
	cmd.Flags().StringSlice("tags", nil, "Comma-separated tags")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("content")
	addOutputFlag(cmd)

	return cmd
}

func runKnowledgeAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	orgRef, _ := cmd.Flags().GetString("org")
	content, _ := cmd.Flags().GetString("content")
	memoryType, _ := cmd.Flags().GetString("type")
	status, _ := cmd.Flags().GetString("status")
	tags, _ := cmd.Flags().GetStringSlice("tags")

	return withStore(ctx, func(store *repository.Store) error {
		m, err := newAdminService(store).AddCompanyKnowledge(ctx, service.CompanyKnowledgeInput{
			OrgID:   orgRef,
			Content: content,
			Type:    memoryType,
			Status:  domain.KnowledgeStatus(strings.ToLower(status)),
			Tags:    tags,
		})
		if err != nil {
			return fmt.Errorf("failed to add knowledge: %w", err)
		}
		return printMemory(cmd, m)
	})
}
