package service

import (
	"context"
	"strings"

	"github.com/cloo-solutions/signmaker/internal/domain"
	"github.com/google/uuid"
)

// PersonalMemoryInput is the input for AddPersonalMemory
type PersonalMemoryInput struct {
	UserID     string
	Content    string
	Type       string
	Confidence domain.Confidence
	Tags       []string
}

// CompanyKnowledgeInput is the input for AddCompanyKnowledge
type CompanyKnowledgeInput struct {
	OrgID   string
	Content string
	Type    string
	Status  domain.KnowledgeStatus
	Tags    []string
}

// AdminService seeds organizations, memberships and memory records.
type AdminService struct {
	orgs     OrgRepositoryInterface
	members  MembershipRepositoryInterface
	memories MemoryRepositoryInterface
	uuidGen  UUIDGenerator
}

func NewAdminService(orgs OrgRepositoryInterface, members MembershipRepositoryInterface, memories MemoryRepositoryInterface, uuidGen UUIDGenerator) *AdminService {
	return &AdminService{
		orgs:     orgs,
		members:  members,
		memories: memories,
		uuidGen:  uuidGen,
	}
}

func (s *AdminService) CreateOrg(ctx context.Context, name string) (*domain.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "organization name is required")
	}

	org := domain.NewOrganization(s.uuidGen.NewString(), name, utcNow())
	if err := domain.ValidateOrganization(org); err != nil {
		return nil, err
	}

	if err := s.orgs.Create(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

func (s *AdminService) ListOrgs(ctx context.Context) ([]*domain.Organization, error) {
	return s.orgs.List(ctx)
}

// ResolveOrg finds an organization by ID when ref is a UUID, by name otherwise.
func (s *AdminService) ResolveOrg(ctx context.Context, ref string) (*domain.Organization, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "organization is required")
	}
	if _, err := uuid.Parse(ref); err == nil {
		return s.orgs.GetByID(ctx, ref)
	}
	return s.orgs.GetByName(ctx, ref)
}

// AddMember assigns userID to the organization. A user belongs to at most
// one organization; adding them again moves them.
func (s *AdminService) AddMember(ctx context.Context, orgRef, userID string) (*domain.Membership, error) {
	org, err := s.ResolveOrg(ctx, orgRef)
	if err != nil {
		return nil, err
	}

	m := &domain.Membership{UserID: strings.TrimSpace(userID), OrgID: org.ID, CreatedAt: utcNow()}
	if err := domain.ValidateMembership(m); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid membership", err)
	}

	if err := s.members.Upsert(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *AdminService) RemoveMember(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "user ID is required")
	}
	return s.members.Delete(ctx, userID)
}

func (s *AdminService) AddPersonalMemory(ctx context.Context, input PersonalMemoryInput) (*domain.Memory, error) {
	if !domain.IsValidConfidence(input.Confidence) {
		return nil, domain.ErrInvalidConfidence
	}

	m := domain.NewPersonalMemory(s.uuidGen.NewString(), input.UserID, strings.TrimSpace(input.Content), strings.TrimSpace(input.Type), input.Confidence, input.Tags, utcNow())
	if err := domain.ValidateMemory(m); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid memory", err)
	}

	if err := s.memories.CreatePersonal(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *AdminService) AddCompanyKnowledge(ctx context.Context, input CompanyKnowledgeInput) (*domain.Memory, error) {
	status := input.Status
	if status == "" {
		status = domain.KnowledgeStatusApproved
	}
	if !domain.IsValidKnowledgeStatus(status) {
		return nil, domain.ErrInvalidKnowledgeStatus
	}

	org, err := s.ResolveOrg(ctx, input.OrgID)
	if err != nil {
		return nil, err
	}

	m := domain.NewCompanyKnowledge(s.uuidGen.NewString(), org.ID, strings.TrimSpace(input.Content), strings.TrimSpace(input.Type), status, input.Tags, utcNow())
	if err := domain.ValidateMemory(m); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid knowledge", err)
	}

	if err := s.memories.CreateCompany(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}
