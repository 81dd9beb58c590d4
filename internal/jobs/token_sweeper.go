package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultTokenGrace keeps expired and revoked tokens around for a day so a
// rejected client still gets the specific expired/revoked error.
const DefaultTokenGrace = 24 * time.Hour

// TokenStore deletes access tokens that can no longer authenticate.
type TokenStore interface {
	SweepInactive(ctx context.Context, grace time.Duration) (int64, error)
}

// TokenSweeper removes expired and revoked access tokens.
type TokenSweeper struct {
	tokens TokenStore
	grace  time.Duration
	logger *zap.Logger
}

func NewTokenSweeper(tokens TokenStore, grace time.Duration, logger *zap.Logger) *TokenSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenSweeper{tokens: tokens, grace: grace, logger: logger}
}

// Run deletes one batch of tokens past the grace period.
func (s *TokenSweeper) Run(ctx context.Context) error {
	deleted, err := s.tokens.SweepInactive(ctx, s.grace)
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.logger.Info("swept inactive access tokens", zap.Int64("deleted", deleted))
	}
	return nil
}
