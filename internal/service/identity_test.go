package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/signmaker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func newTestIdentityService(repo *MockAccessTokenRepository, uuids ...string) *IdentityService {
	svc := NewIdentityService(repo, NewMockUUIDGenerator(uuids...))
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestIdentityService_IssueToken_GeneratesSmkToken(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAccessTokenRepository)

	var captured *domain.AccessToken
	repo.On("Create", ctx, mock.MatchedBy(func(tok *domain.AccessToken) bool {
		captured = tok
		return tok.ID == "tok-1" && tok.UserID == "user-1" && len(tok.TokenHash) == 64
	})).Return(nil)

	svc := newTestIdentityService(repo, "tok-1")
	token, record, err := svc.IssueToken(ctx, "user-1", "laptop", 0)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "smk_"), "token should start with smk_")
	assert.Len(t, token, 68, "token should be smk_ + 64 hex chars")
	assert.True(t, IsValidAccessToken(token))
	require.NotNil(t, captured)
	assert.NotEqual(t, token, captured.TokenHash)
	assert.Equal(t, hashToken(token), captured.TokenHash)
	assert.Nil(t, record.ExpiresAt)
	repo.AssertExpectations(t)
}

func TestIdentityService_IssueToken_WithTTL(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAccessTokenRepository)
	repo.On("Create", ctx, mock.Anything).Return(nil)

	svc := newTestIdentityService(repo, "tok-1")
	_, record, err := svc.IssueToken(ctx, "user-1", "ci", 24*time.Hour)

	require.NoError(t, err)
	require.NotNil(t, record.ExpiresAt)
	assert.Equal(t, fixedNow.Add(24*time.Hour), *record.ExpiresAt)
}

func TestIdentityService_IssueToken_Validation(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAccessTokenRepository)
	svc := newTestIdentityService(repo)

	_, _, err := svc.IssueToken(ctx, "", "name", 0)
	assert.Equal(t, domain.ErrCodeValidation, domain.CodeOf(err))

	_, _, err = svc.IssueToken(ctx, "user-1", "", 0)
	assert.Equal(t, domain.ErrCodeValidation, domain.CodeOf(err))

	_, _, err = svc.IssueToken(ctx, "user-1", "name", -time.Second)
	assert.Equal(t, domain.ErrCodeValidation, domain.CodeOf(err))

	repo.AssertNotCalled(t, "Create")
}

func TestIdentityService_Resolve(t *testing.T) {
	ctx := context.Background()
	token := "smk_" + strings.Repeat("ab", 32)
	past := fixedNow.Add(-time.Minute)
	future := fixedNow.Add(time.Hour)

	tests := []struct {
		name    string
		stored  *domain.AccessToken
		repoErr error
		wantID  string
		wantErr error
	}{
		{
			name:   "valid token",
			stored: &domain.AccessToken{ID: "t1", UserID: "user-1", ExpiresAt: &future},
			wantID: "user-1",
		},
		{
			name:    "unknown token",
			repoErr: domain.ErrAccessTokenNotFound,
			wantErr: domain.ErrInvalidAccessToken,
		},
		{
			name:    "revoked token",
			stored:  &domain.AccessToken{ID: "t1", UserID: "user-1", RevokedAt: &past},
			wantErr: domain.ErrAccessTokenRevoked,
		},
		{
			name:    "expired token",
			stored:  &domain.AccessToken{ID: "t1", UserID: "user-1", ExpiresAt: &past},
			wantErr: domain.ErrAccessTokenExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockAccessTokenRepository)
			if tt.stored != nil {
				repo.On("GetByHash", ctx, hashToken(token)).Return(tt.stored, nil)
			} else {
				repo.On("GetByHash", ctx, hashToken(token)).Return(nil, tt.repoErr)
			}

			userID, err := newTestIdentityService(repo).Resolve(ctx, token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, userID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, userID)
		})
	}
}

func TestIdentityService_Resolve_InvalidFormat(t *testing.T) {
	repo := new(MockAccessTokenRepository)
	svc := newTestIdentityService(repo)

	for _, token := range []string{"", "ntx_" + strings.Repeat("a", 64), "smk_short", "smk_" + strings.Repeat("z", 64)} {
		_, err := svc.Resolve(context.Background(), token)
		assert.ErrorIs(t, err, domain.ErrInvalidAccessToken, token)
	}
	repo.AssertNotCalled(t, "GetByHash")
}

func TestIdentityService_Resolve_RepositoryError(t *testing.T) {
	ctx := context.Background()
	token := "smk_" + strings.Repeat("0", 64)
	repo := new(MockAccessTokenRepository)
	repo.On("GetByHash", ctx, hashToken(token)).Return(nil, errors.New("connection refused"))

	_, err := newTestIdentityService(repo).Resolve(ctx, token)
	assert.EqualError(t, err, "connection refused")
}

func TestIdentityService_RevokeToken(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAccessTokenRepository)
	repo.On("Revoke", ctx, "tok-1", fixedNow).Return(nil)

	svc := newTestIdentityService(repo)
	require.NoError(t, svc.RevokeToken(ctx, "tok-1"))
	assert.Equal(t, domain.ErrCodeValidation, domain.CodeOf(svc.RevokeToken(ctx, "")))
	repo.AssertExpectations(t)
}

func TestIdentityService_ListTokens(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAccessTokenRepository)
	repo.On("ListByUser", ctx, "user-1").Return([]*domain.AccessToken{{ID: "t1"}}, nil)

	tokens, err := newTestIdentityService(repo).ListTokens(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
}

func TestIdentityService_SweepInactive(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAccessTokenRepository)
	repo.On("DeleteInactive", ctx, fixedNow.Add(-time.Hour)).Return(int64(3), nil)

	n, err := newTestIdentityService(repo).SweepInactive(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
