package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/signmaker/internal/domain"
	"github.com/google/uuid"
)

// OrgRepositoryInterface defines persistence for organizations
type OrgRepositoryInterface interface {
	Create(ctx context.Context, org *domain.Organization) error
	GetByID(ctx context.Context, id string) (*domain.Organization, error)
	GetByName(ctx context.Context, name string) (*domain.Organization, error)
	List(ctx context.Context) ([]*domain.Organization, error)
}

// MembershipRepositoryInterface defines persistence for user to organization links
type MembershipRepositoryInterface interface {
	Upsert(ctx context.Context, m *domain.Membership) error
	GetByUser(ctx context.Context, userID string) (*domain.Membership, error)
	Delete(ctx context.Context, userID string) error
}

// MemoryRepositoryInterface defines persistence for personal memories and company knowledge
type MemoryRepositoryInterface interface {
	CreatePersonal(ctx context.Context, m *domain.Memory) error
	CreateCompany(ctx context.Context, m *domain.Memory) error
	ListPersonal(ctx context.Context, userID string, limit int) ([]*domain.Memory, error)
	ListApprovedCompany(ctx context.Context, orgID string, limit int) ([]*domain.Memory, error)
}

// AccessTokenRepositoryInterface defines persistence for hashed access tokens
type AccessTokenRepositoryInterface interface {
	Create(ctx context.Context, token *domain.AccessToken) error
	GetByHash(ctx context.Context, hash string) (*domain.AccessToken, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.AccessToken, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	DeleteInactive(ctx context.Context, cutoff time.Time) (int64, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

var _ UUIDGenerator = (*DefaultUUIDGenerator)(nil)

func utcNow() time.Time {
	return time.Now().UTC()
}
