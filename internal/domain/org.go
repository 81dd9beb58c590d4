package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxOrgNameLength bounds organization names, counted in characters.
const MaxOrgNameLength = 200

// Organization is a company whose approved knowledge reaches its members.
type Organization struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Membership places a user in one organization. A user has at most one.
type Membership struct {
	UserID    string
	OrgID     string
	CreatedAt time.Time
}

// NewOrganization builds an organization with a trimmed name.
func NewOrganization(id, name string, createdAt time.Time) *Organization {
	return &Organization{ID: id, Name: strings.TrimSpace(name), CreatedAt: createdAt}
}

// ValidateOrganization checks the fields the store requires.
func ValidateOrganization(o *Organization) error {
	switch {
	case o == nil:
		return fmt.Errorf("organization cannot be nil")
	case o.ID == "":
		return fmt.Errorf("organization ID is required")
	case strings.TrimSpace(o.Name) == "":
		return fmt.Errorf("organization Name is required")
	case utf8.RuneCountInString(o.Name) > MaxOrgNameLength:
		return fmt.Errorf("organization Name exceeds %d characters", MaxOrgNameLength)
	}
	return nil
}

// ValidateMembership checks both sides of the link are set.
func ValidateMembership(m *Membership) error {
	switch {
	case m == nil:
		return fmt.Errorf("membership cannot be nil")
	case m.UserID == "":
		return fmt.Errorf("membership UserID is required")
	case m.OrgID == "":
		return fmt.Errorf("membership OrgID is required")
	}
	return nil
}
