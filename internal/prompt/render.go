package prompt

import (
	"strings"

	"github.com/cloo-solutions/signmaker/internal/domain"
)

// PersonalSection renders the personal memory layer, or "" when empty.
func PersonalSection(memories []*domain.Memory) string {
	if len(memories) == 0 {
		return ""
	}
	lines := make([]string, 0, len(memories))
	for _, m := range memories {
		lines = append(lines, "- [MEM-"+m.ID+"] ["+strings.ToUpper(string(m.EffectiveConfidence()))+"] ("+m.Type+") "+m.Content+tagSuffix(m.Tags))
	}
	return "\n" + PersonalHeader + "\n" + strings.Join(lines, "\n")
}

// CompanySection renders the company knowledge layer, or "" when empty.
func CompanySection(knowledge []*domain.Memory) string {
	if len(knowledge) == 0 {
		return ""
	}
	lines := make([]string, 0, len(knowledge))
	for _, k := range knowledge {
		lines = append(lines, "- [MEM-"+k.ID+"] ("+k.Type+") "+k.Content+tagSuffix(k.Tags))
	}
	return "\n" + CompanyHeader + "\n" + strings.Join(lines, "\n")
}

func tagSuffix(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return " [tags: " + strings.Join(tags, ", ") + "]"
}

// System joins the four layers. Empty layers are left out.
func (t Templates) System(personal, company string) string {
	layers := []string{t.SystemRole, "\n" + t.IndustryContext, personal, company}
	parts := layers[:0]
	for _, l := range layers {
		if l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, "\n")
}
