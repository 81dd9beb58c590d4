package admin

import (
	"fmt"
	"io"
	"strings"

	"github.com/cloo-solutions/signmaker/internal/domain"
	"github.com/cloo-solutions/signmaker/internal/repository"
	"github.com/cloo-solutions/signmaker/internal/service"
	"github.com/spf13/cobra"
)

func MemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Manage personal memories",
	}
	cmd.AddCommand(MemoryAddCmd())
	return cmd
}

func MemoryAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Save a personal memory for a user",
		Long: `Save a personal memory for a user.

Known types: preference, constraint, rule_of_thumb, risk_tolerance, supplier_exclusion.
Confidence: strict (non-negotiable), standard (advisory), tentative (informational).`,
		RunE: runMemoryAdd,
	}

	cmd.Flags().StringP("user", "u", "", "User ID (required)")
	cmd.Flags().StringP("content", "c", "", "Memory content (required)")
	cmd.Flags().StringP("type", "t", domain.MemoryTypePreference, "Memory type")
	cmd.Flags().String("confidence", string(domain.ConfidenceStandard), "Confidence: strict, standard or tentative")
	cmd.Flags().StringSlice("tags", nil, "Comma-separated tags")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("content")
	addOutputFlag(cmd)

	return cmd
}

func runMemoryAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	userID, _ := cmd.Flags().GetString("user")
	content, _ := cmd.Flags().GetString("content")
	memoryType, _ := cmd.Flags().GetString("type")
	confidence, _ := cmd.Flags().GetString("confidence")
	tags, _ := cmd.Flags().GetStringSlice("tags")

	return withStore(ctx, func(store *repository.Store) error {
		m, err := newAdminService(store).AddPersonalMemory(ctx, service.PersonalMemoryInput{
			UserID:     userID,
			Content:    content,
			Type:       memoryType,
			Confidence: domain.Confidence(strings.ToLower(confidence)),
			Tags:       tags,
		})
		if err != nil {
			return fmt.Errorf("failed to add memory: %w", err)
		}
		return printMemory(cmd, m)
	})
}

func printMemory(cmd *cobra.Command, m *domain.Memory) error {
	out := cmd.OutOrStdout()
	if jsonOutput(cmd) {
		data := map[string]any{
			"id":          m.ID,
			"owner_id":    m.OwnerID,
			"content":     m.Content,
			"memory_type": m.Type,
			"tags":        m.Tags,
			"scope":       m.Scope,
			"created_at":  m.CreatedAt,
		}
		if m.Scope == domain.ScopeCompany {
			data["status"] = m.Status
		} else {
			data["confidence"] = m.Confidence
		}
		return printJSON(out, data)
	}
	describeMemory(out, m)
	return nil
}

func describeMemory(out io.Writer, m *domain.Memory) {
	fmt.Fprintf(out, "Saved %s memory [MEM-%s]\n", m.Scope, m.ID)
	fmt.Fprintf(out, "  Type: %s\n", m.Type)
	if m.Scope == domain.ScopeCompany {
		fmt.Fprintf(out, "  Status: %s\n", m.Status)
	} else {
		fmt.Fprintf(out, "  Confidence: %s\n", m.Confidence)
	}
	if len(m.Tags) > 0 {
		fmt.Fprintf(out, "  Tags: %s\n", strings.Join(m.Tags, ", "))
	}
	fmt.Fprintf(out, "  Content: %s\n", m.Content)
}
