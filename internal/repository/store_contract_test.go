package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cloo-solutions/signmaker/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// baseTime is truncated to microseconds, the coarsest precision of the
// supported backends.
var baseTime = time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)

// runStoreContract exercises behavior every backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) *Store) {
	t.Run("organizations", func(t *testing.T) { testOrganizations(t, newStore(t)) })
	t.Run("memberships", func(t *testing.T) { testMemberships(t, newStore(t)) })
	t.Run("personal memories", func(t *testing.T) { testPersonalMemories(t, newStore(t)) })
	t.Run("company knowledge", func(t *testing.T) { testCompanyKnowledge(t, newStore(t)) })
	t.Run("access tokens", func(t *testing.T) { testAccessTokens(t, newStore(t)) })
}

func createOrg(ctx context.Context, t *testing.T, store *Store, name string) *domain.Organization {
	org := domain.NewOrganization(uuid.NewString(), name, baseTime)
	require.NoError(t, store.Orgs.Create(ctx, org))
	return org
}

func testOrganizations(t *testing.T, store *Store) {
	ctx := context.Background()

	org := createOrg(ctx, t, store, "Acme Signs")

	got, err := store.Orgs.GetByID(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, org.Name, got.Name)
	assert.True(t, got.CreatedAt.Equal(org.CreatedAt))

	got, err = store.Orgs.GetByName(ctx, "Acme Signs")
	require.NoError(t, err)
	assert.Equal(t, org.ID, got.ID)

	err = store.Orgs.Create(ctx, domain.NewOrganization(uuid.NewString(), "Acme Signs", baseTime))
	assert.ErrorIs(t, err, domain.ErrOrganizationAlreadyExists)

	_, err = store.Orgs.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrOrganizationNotFound)
	_, err = store.Orgs.GetByName(ctx, "Nobody")
	assert.ErrorIs(t, err, domain.ErrOrganizationNotFound)

	createOrg(ctx, t, store, "Bright Lights")
	orgs, err := store.Orgs.List(ctx)
	require.NoError(t, err)
	assert.Len(t, orgs, 2)
}

func testMemberships(t *testing.T, store *Store) {
	ctx := context.Background()
	first := createOrg(ctx, t, store, "First")
	second := createOrg(ctx, t, store, "Second")

	_, err := store.Memberships.GetByUser(ctx, "user-1")
	assert.ErrorIs(t, err, domain.ErrMembershipNotFound)

	require.NoError(t, store.Memberships.Upsert(ctx, &domain.Membership{UserID: "user-1", OrgID: first.ID, CreatedAt: baseTime}))
	m, err := store.Memberships.GetByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, m.OrgID)

	// A user belongs to one organization; upserting moves them.
	require.NoError(t, store.Memberships.Upsert(ctx, &domain.Membership{UserID: "user-1", OrgID: second.ID, CreatedAt: baseTime}))
	m, err = store.Memberships.GetByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, m.OrgID)

	require.NoError(t, store.Memberships.Delete(ctx, "user-1"))
	assert.ErrorIs(t, store.Memberships.Delete(ctx, "user-1"), domain.ErrMembershipNotFound)
}

func testPersonalMemories(t *testing.T, store *Store) {
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		m := domain.NewPersonalMemory(uuid.NewString(), "user-1", fmt.Sprintf("memory %d", i),
			domain.MemoryTypePreference, domain.ConfidenceStrict, []string{"letters", "depth"}, baseTime.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.Memories.CreatePersonal(ctx, m))
	}
	untagged := domain.NewPersonalMemory(uuid.NewString(), "user-2", "other user", domain.MemoryTypeConstraint,
		domain.ConfidenceTentative, nil, baseTime)
	require.NoError(t, store.Memories.CreatePersonal(ctx, untagged))

	memories, err := store.Memories.ListPersonal(ctx, "user-1", 3)
	require.NoError(t, err)
	require.Len(t, memories, 3)
	assert.Equal(t, "memory 4", memories[0].Content)
	assert.Equal(t, "memory 3", memories[1].Content)
	assert.Equal(t, "memory 2", memories[2].Content)
	assert.Equal(t, domain.ScopePersonal, memories[0].Scope)
	assert.Equal(t, domain.ConfidenceStrict, memories[0].Confidence)
	assert.Equal(t, []string{"letters", "depth"}, memories[0].Tags)
	assert.Equal(t, "user-1", memories[0].OwnerID)

	other, err := store.Memories.ListPersonal(ctx, "user-2", 20)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.NotNil(t, other[0].Tags)
	assert.Empty(t, other[0].Tags)

	none, err := store.Memories.ListPersonal(ctx, "nobody", 20)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func testCompanyKnowledge(t *testing.T, store *Store) {
	ctx := context.Background()
	org := createOrg(ctx, t, store, "Acme Signs")
	otherOrg := createOrg(ctx, t, store, "Other")

	add := func(orgID, content string, status domain.KnowledgeStatus, offset time.Duration) {
		k := domain.NewCompanyKnowledge(uuid.NewString(), orgID, content, domain.MemoryTypeRuleOfThumb,
			status, []string{"install"}, baseTime.Add(offset))
		require.NoError(t, store.Memories.CreateCompany(ctx, k))
	}
	add(org.ID, "approved old", domain.KnowledgeStatusApproved, 0)
	add(org.ID, "approved new", domain.KnowledgeStatusApproved, time.Hour)
	add(org.ID, "pending", domain.KnowledgeStatusPending, 2*time.Hour)
	add(org.ID, "rejected", domain.KnowledgeStatusRejected, 3*time.Hour)
	add(otherOrg.ID, "other org", domain.KnowledgeStatusApproved, 4*time.Hour)

	knowledge, err := store.Memories.ListApprovedCompany(ctx, org.ID, 15)
	require.NoError(t, err)
	require.Len(t, knowledge, 2)
	assert.Equal(t, "approved new", knowledge[0].Content)
	assert.Equal(t, "approved old", knowledge[1].Content)
	assert.Equal(t, domain.ScopeCompany, knowledge[0].Scope)
	assert.Equal(t, domain.ConfidenceStandard, knowledge[0].Confidence)
	assert.Equal(t, domain.KnowledgeStatusApproved, knowledge[0].Status)
	assert.Equal(t, org.ID, knowledge[0].OwnerID)

	limited, err := store.Memories.ListApprovedCompany(ctx, org.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func testAccessTokens(t *testing.T, store *Store) {
	ctx := context.Background()
	expired := baseTime.Add(-time.Hour)
	future := baseTime.Add(time.Hour)

	active := domain.NewAccessToken(uuid.NewString(), "user-1", "laptop", "hash-active", baseTime, &future)
	old := domain.NewAccessToken(uuid.NewString(), "user-1", "old", "hash-expired", baseTime.Add(-2*time.Hour), &expired)
	forever := domain.NewAccessToken(uuid.NewString(), "user-1", "ci", "hash-forever", baseTime.Add(time.Minute), nil)
	for _, tok := range []*domain.AccessToken{active, old, forever} {
		require.NoError(t, store.Tokens.Create(ctx, tok))
	}

	dup := domain.NewAccessToken(uuid.NewString(), "user-2", "dup", "hash-active", baseTime, nil)
	assert.ErrorIs(t, store.Tokens.Create(ctx, dup), domain.ErrAccessTokenAlreadyExists)

	got, err := store.Tokens.GetByHash(ctx, "hash-active")
	require.NoError(t, err)
	assert.Equal(t, active.ID, got.ID)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, got.ExpiresAt.Equal(future))
	assert.Nil(t, got.RevokedAt)

	_, err = store.Tokens.GetByHash(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrAccessTokenNotFound)

	tokens, err := store.Tokens.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	assert.Equal(t, forever.ID, tokens[0].ID)
	assert.Nil(t, tokens[0].ExpiresAt)

	require.NoError(t, store.Tokens.Revoke(ctx, forever.ID, baseTime))
	assert.ErrorIs(t, store.Tokens.Revoke(ctx, forever.ID, baseTime), domain.ErrAccessTokenNotFound)
	got, err = store.Tokens.GetByHash(ctx, "hash-forever")
	require.NoError(t, err)
	require.NotNil(t, got.RevokedAt)
	assert.True(t, got.RevokedAt.Equal(baseTime))

	deleted, err := store.Tokens.DeleteInactive(ctx, baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	tokens, err = store.Tokens.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, active.ID, tokens[0].ID)
}
