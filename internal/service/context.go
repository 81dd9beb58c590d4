package service

import (
	"context"
	"errors"

	"github.com/cloo-solutions/signmaker/internal/domain"
	"github.com/cloo-solutions/signmaker/internal/prompt"
	"github.com/cloo-solutions/signmaker/internal/streaming"
	"github.com/cloo-solutions/signmaker/internal/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// PersonalLimit caps personal records per request.
	PersonalLimit = 20
	// CompanyLimit caps approved company records per request.
	CompanyLimit = 15
)

// IdentityResolver maps a bearer token to a user ID.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// ContextBundle is the memory context assembled for one request.
type ContextBundle struct {
	UserID   string
	OrgID    string
	Personal []*domain.Memory
	Company  []*domain.Memory
}

// Empty reports whether the bundle carries no records.
func (b *ContextBundle) Empty() bool {
	return len(b.Personal) == 0 && len(b.Company) == 0
}

// Records returns the metadata list: personal records first, then company.
func (b *ContextBundle) Records() []streaming.MemoryRecord {
	all := make([]*domain.Memory, 0, len(b.Personal)+len(b.Company))
	all = append(all, b.Personal...)
	all = append(all, b.Company...)
	return streaming.RecordsFromMemories(all)
}

// SystemPrompt renders the full four-layer system prompt.
func (b *ContextBundle) SystemPrompt(t prompt.Templates) string {
	return t.System(prompt.PersonalSection(b.Personal), prompt.CompanySection(b.Company))
}

// ContextAssembler fetches the memory context for a request.
type ContextAssembler struct {
	identity IdentityResolver
	memories MemoryRepositoryInterface
	members  MembershipRepositoryInterface
	logger   *zap.Logger
}

func NewContextAssembler(identity IdentityResolver, memories MemoryRepositoryInterface, members MembershipRepositoryInterface, logger *zap.Logger) *ContextAssembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextAssembler{
		identity: identity,
		memories: memories,
		members:  members,
		logger:   logger,
	}
}

// Assemble never fails. A missing or invalid token yields an empty bundle,
// and a failed fetch leaves its group empty.
func (a *ContextAssembler) Assemble(ctx context.Context, token string) *ContextBundle {
	bundle := &ContextBundle{
		Personal: []*domain.Memory{},
		Company:  []*domain.Memory{},
	}
	if token == "" {
		return bundle
	}

	userID, err := a.identity.Resolve(ctx, token)
	if err != nil {
		if domain.CodeOf(err) != domain.ErrCodeUnauthorized {
			a.logger.Warn("identity lookup failed", zap.Error(err))
		}
		return bundle
	}
	bundle.UserID = userID

	ctx, span := telemetry.Start(ctx, "chat.assemble_context", telemetry.Attrs{UserID: userID})
	defer span.End()

	var g errgroup.Group
	g.Go(func() error {
		personal, err := a.memories.ListPersonal(ctx, userID, PersonalLimit)
		if err != nil {
			a.logger.Warn("personal memory fetch failed", zap.String("user_id", userID), zap.Error(err))
			return nil
		}
		bundle.Personal = truncate(personal, PersonalLimit)
		return nil
	})
	g.Go(func() error {
		orgID, company, err := a.fetchCompany(ctx, userID)
		if err != nil {
			a.logger.Warn("company knowledge fetch failed", zap.String("user_id", userID), zap.Error(err))
			return nil
		}
		bundle.OrgID = orgID
		bundle.Company = truncate(company, CompanyLimit)
		return nil
	})
	_ = g.Wait()

	a.logger.Debug("context assembled",
		zap.String("user_id", userID),
		zap.Int("personal", len(bundle.Personal)),
		zap.Int("company", len(bundle.Company)),
	)
	return bundle
}

func (a *ContextAssembler) fetchCompany(ctx context.Context, userID string) (string, []*domain.Memory, error) {
	membership, err := a.members.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return "", []*domain.Memory{}, nil
		}
		return "", nil, err
	}

	company, err := a.memories.ListApprovedCompany(ctx, membership.OrgID, CompanyLimit)
	if err != nil {
		return membership.OrgID, nil, err
	}
	for _, k := range company {
		k.Scope = domain.ScopeCompany
		k.Confidence = domain.ConfidenceStandard
	}
	return membership.OrgID, company, nil
}

func truncate(records []*domain.Memory, limit int) []*domain.Memory {
	if records == nil {
		return []*domain.Memory{}
	}
	if len(records) > limit {
		return records[:limit]
	}
	return records
}
