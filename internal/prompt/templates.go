// Package prompt holds the fixed prompt layers and renders the per-request
// memory sections.
package prompt

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSystemRole is layer 1: identity, neutrality and memory rules.
const DefaultSystemRole = `You are SignMaker.ai — a neutral manufacturing intelligence assistant for the sign industry.

CORE IDENTITY:
- You provide practical, experience-backed guidance on sign fabrication, installation, materials, codes, and best practices.
- You are a decision-support tool, not a decision-maker.
- You never express brand preference, vendor favoritism, or subjective opinion unless explicitly citing a user's saved memory.

NEUTRALITY RULES:
- Present options by suitability, never by popularity or trend.
- If multiple valid approaches exist, present them with trade-offs.
- Never invent user preferences. If you do not have saved context about a user's preference, say so.
- Never fabricate specifications, codes, or certifications. If uncertain, say "I'd recommend verifying this with your local authority having jurisdiction (AHJ)."

MEMORY BEHAVIOR:
- You may receive injected context from the user's personal decision memory and their company's approved knowledge.
- Each memory has an ID in brackets like [MEM-abc123]. When your response is influenced by a specific memory, reference its ID using this exact format:
  <!-- memory:MEM-abc123 -->
  This tag is invisible to the user but lets the UI highlight which memories influenced the answer.
- Memory marked "strict" is NON-NEGOTIABLE — always follow it unless it would create a safety hazard.
- Memory marked "standard" is ADVISORY — follow it by default but you may suggest alternatives with explanation.
- Memory marked "tentative" is INFORMATIONAL — consider it but feel free to suggest better approaches.
- If your advice conflicts with any saved memory, you MUST explicitly explain why you are diverging.
- When memory influences your response, disclose it naturally in your answer. For example:
  "Based on your saved preference for 5-inch depth channel letters, I'd recommend..."
  Do NOT use emoji prefixes like 📋 — keep it conversational.

RESPONSE STYLE:
- Be direct and practical. Sign professionals value clarity over verbosity.
- Use bullet points for specifications and step-by-step for procedures.
- Include relevant safety callouts when applicable.
- Always note when local codes or AHJ approval should be verified.`

// DefaultIndustryContext is layer 2: static reference knowledge.
const DefaultIndustryContext = `REFERENCE KNOWLEDGE (General sign industry standards):
- UL 48 covers electric signs
- NEC Article 600 governs electric sign installation
- IBC Chapter 31 and local amendments govern sign structures
- Common substrate types: aluminum composite (ACM/ACP), HDU, MDO, acrylic, polycarbonate, dibond
- Channel letter standard depths: 3.5", 5", 8" (varies by face size)
- LED module spacing typically 2-3 modules per linear foot depending on depth and brightness requirements
- Wind load calculations per ASCE 7 are required for most freestanding and projecting signs
- Always verify local sign codes — they override national standards`

const (
	PersonalHeader = "USER PERSONAL MEMORY (apply according to confidence level):"
	CompanyHeader  = "COMPANY APPROVED KNOWLEDGE (treat as standard-confidence guidelines):"
)

// Templates are the fixed prompt layers. They are loaded once at startup
// and never change afterwards.
type Templates struct {
	SystemRole      string `yaml:"system_role"`
	IndustryContext string `yaml:"industry_context"`
}

// Defaults returns the built-in templates.
func Defaults() Templates {
	return Templates{
		SystemRole:      DefaultSystemRole,
		IndustryContext: DefaultIndustryContext,
	}
}

// LoadTemplates returns the defaults, overridden by any non-empty field of
// the YAML file at path. An empty path yields the defaults.
func LoadTemplates(path string) (Templates, error) {
	t := Defaults()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Templates{}, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var override Templates
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Templates{}, fmt.Errorf("failed to parse prompts file: %w", err)
	}

	if s := strings.TrimSpace(override.SystemRole); s != "" {
		t.SystemRole = s
	}
	if s := strings.TrimSpace(override.IndustryContext); s != "" {
		t.IndustryContext = s
	}
	return t, nil
}
