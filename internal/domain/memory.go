package domain

import (
	"fmt"
	"strings"
	"time"
)

// Scope identifies who owns a memory record.
type Scope string

const (
	ScopePersonal Scope = "personal"
	ScopeCompany  Scope = "company"
)

// Confidence is the weight a memory carries when it influences an answer.
type Confidence string

const (
	ConfidenceStrict    Confidence = "strict"
	ConfidenceStandard  Confidence = "standard"
	ConfidenceTentative Confidence = "tentative"
)

// KnowledgeStatus is the review state of a company knowledge record.
type KnowledgeStatus string

const (
	KnowledgeStatusPending  KnowledgeStatus = "pending"
	KnowledgeStatusApproved KnowledgeStatus = "approved"
	KnowledgeStatusRejected KnowledgeStatus = "rejected"
)

// Well-known memory types. The type is an open tag; any non-empty value is accepted.
const (
	MemoryTypePreference        = "preference"
	MemoryTypeConstraint        = "constraint"
	MemoryTypeRuleOfThumb       = "rule_of_thumb"
	MemoryTypeRiskTolerance     = "risk_tolerance"
	MemoryTypeSupplierExclusion = "supplier_exclusion"
)

// Memory is a unit of reusable context available to the assistant.
type Memory struct {
	ID         string
	OwnerID    string // user ID for personal records, organization ID for company records
	Content    string
	Type       string
	Confidence Confidence
	Tags       []string
	Scope      Scope
	Status     KnowledgeStatus // company records only
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewPersonalMemory creates a personal memory owned by userID.
func NewPersonalMemory(id, userID, content, memoryType string, confidence Confidence, tags []string, now time.Time) *Memory {
	return &Memory{
		ID:         id,
		OwnerID:    userID,
		Content:    content,
		Type:       memoryType,
		Confidence: confidence,
		Tags:       normalizeTags(tags),
		Scope:      ScopePersonal,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NewCompanyKnowledge creates a company knowledge record owned by orgID.
func NewCompanyKnowledge(id, orgID, content, memoryType string, status KnowledgeStatus, tags []string, now time.Time) *Memory {
	return &Memory{
		ID:         id,
		OwnerID:    orgID,
		Content:    content,
		Type:       memoryType,
		Confidence: ConfidenceStandard,
		Tags:       normalizeTags(tags),
		Scope:      ScopeCompany,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// EffectiveConfidence is the confidence the assistant is told to apply.
// Company records are always presented as standard.
func (m *Memory) EffectiveConfidence() Confidence {
	if m.Scope == ScopeCompany {
		return ConfidenceStandard
	}
	return m.Confidence
}

// ValidateMemory validates a Memory instance
func ValidateMemory(m *Memory) error {
	if m == nil {
		return fmt.Errorf("memory cannot be nil")
	}

	if m.ID == "" {
		return fmt.Errorf("memory ID is required")
	}

	if m.OwnerID == "" {
		return fmt.Errorf("memory OwnerID is required")
	}

	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("memory Content is required")
	}

	if strings.TrimSpace(m.Type) == "" {
		return fmt.Errorf("memory Type is required")
	}

	switch m.Scope {
	case ScopePersonal:
		if !IsValidConfidence(m.Confidence) {
			return fmt.Errorf("memory Confidence is invalid: %q", m.Confidence)
		}
	case ScopeCompany:
		if !IsValidKnowledgeStatus(m.Status) {
			return fmt.Errorf("memory Status is invalid: %q", m.Status)
		}
	default:
		return fmt.Errorf("memory Scope is invalid: %q", m.Scope)
	}

	return nil
}

// IsValidConfidence reports whether c is one of the known confidence levels.
func IsValidConfidence(c Confidence) bool {
	switch c {
	case ConfidenceStrict, ConfidenceStandard, ConfidenceTentative:
		return true
	}
	return false
}

// IsValidKnowledgeStatus reports whether s is a known review state.
func IsValidKnowledgeStatus(s KnowledgeStatus) bool {
	switch s {
	case KnowledgeStatusPending, KnowledgeStatusApproved, KnowledgeStatusRejected:
		return true
	}
	return false
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
