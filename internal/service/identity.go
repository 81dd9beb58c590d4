package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/cloo-solutions/signmaker/internal/domain"
)

const accessTokenPrefix = "smk_"

// IdentityService issues access tokens and resolves them to user IDs.
type IdentityService struct {
	tokens  AccessTokenRepositoryInterface
	uuidGen UUIDGenerator
	now     func() time.Time
}

func NewIdentityService(tokens AccessTokenRepositoryInterface, uuidGen UUIDGenerator) *IdentityService {
	return &IdentityService{
		tokens:  tokens,
		uuidGen: uuidGen,
		now:     utcNow,
	}
}

// IssueToken creates a token for userID. A zero ttl means no expiry. The
// plaintext token is returned once and never stored.
func (s *IdentityService) IssueToken(ctx context.Context, userID, name string, ttl time.Duration) (string, *domain.AccessToken, error) {
	if userID == "" {
		return "", nil, domain.NewDomainError(domain.ErrCodeValidation, "user ID is required")
	}
	if name == "" {
		return "", nil, domain.NewDomainError(domain.ErrCodeValidation, "token name is required")
	}
	if ttl < 0 {
		return "", nil, domain.NewDomainError(domain.ErrCodeValidation, "token ttl cannot be negative")
	}

	token, err := generateAccessToken()
	if err != nil {
		return "", nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to generate access token", err)
	}

	now := s.now()
	var expiresAt *time.Time
	if ttl > 0 {
		exp := now.Add(ttl)
		expiresAt = &exp
	}

	record := domain.NewAccessToken(s.uuidGen.NewString(), userID, name, hashToken(token), now, expiresAt)
	if err := domain.ValidateAccessToken(record); err != nil {
		return "", nil, err
	}

	if err := s.tokens.Create(ctx, record); err != nil {
		return "", nil, err
	}

	return token, record, nil
}

// Resolve returns the user ID the token belongs to.
func (s *IdentityService) Resolve(ctx context.Context, token string) (string, error) {
	if !IsValidAccessToken(token) {
		return "", domain.ErrInvalidAccessToken
	}

	record, err := s.tokens.GetByHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrAccessTokenNotFound) {
			return "", domain.ErrInvalidAccessToken
		}
		return "", err
	}

	if record.IsRevoked() {
		return "", domain.ErrAccessTokenRevoked
	}
	if record.IsExpired(s.now()) {
		return "", domain.ErrAccessTokenExpired
	}

	return record.UserID, nil
}

func (s *IdentityService) ListTokens(ctx context.Context, userID string) ([]*domain.AccessToken, error) {
	if userID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "user ID is required")
	}
	return s.tokens.ListByUser(ctx, userID)
}

func (s *IdentityService) RevokeToken(ctx context.Context, tokenID string) error {
	if tokenID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "token ID is required")
	}
	return s.tokens.Revoke(ctx, tokenID, s.now())
}

// SweepInactive deletes tokens revoked or expired more than grace ago.
func (s *IdentityService) SweepInactive(ctx context.Context, grace time.Duration) (int64, error) {
	return s.tokens.DeleteInactive(ctx, s.now().Add(-grace))
}

func generateAccessToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return accessTokenPrefix + hex.EncodeToString(bytes), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// IsValidAccessToken reports whether token has the smk_<64 hex> shape.
func IsValidAccessToken(token string) bool {
	if !strings.HasPrefix(token, accessTokenPrefix) {
		return false
	}
	hexPart := token[len(accessTokenPrefix):]
	if len(hexPart) != 64 {
		return false
	}
	for _, c := range hexPart {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
