package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/signmaker/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccessTokenRepository struct {
	pool *pgxpool.Pool
}

func NewAccessTokenRepository(pool *pgxpool.Pool) *AccessTokenRepository {
	return &AccessTokenRepository{pool: pool}
}

const accessTokenColumns = `id, user_id, name, token_hash, created_at, expires_at, revoked_at`

func (r *AccessTokenRepository) Create(ctx context.Context, token *domain.AccessToken) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO access_tokens (`+accessTokenColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		token.ID, token.UserID, token.Name, token.TokenHash, token.CreatedAt, token.ExpiresAt, token.RevokedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAccessTokenAlreadyExists
	}
	return err
}

func (r *AccessTokenRepository) GetByHash(ctx context.Context, hash string) (*domain.AccessToken, error) {
	var token domain.AccessToken
	err := r.pool.QueryRow(ctx,
		`SELECT `+accessTokenColumns+` FROM access_tokens WHERE token_hash = $1`,
		hash,
	).Scan(&token.ID, &token.UserID, &token.Name, &token.TokenHash, &token.CreatedAt, &token.ExpiresAt, &token.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccessTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

func (r *AccessTokenRepository) ListByUser(ctx context.Context, userID string) ([]*domain.AccessToken, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accessTokenColumns+` FROM access_tokens WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*domain.AccessToken
	for rows.Next() {
		var token domain.AccessToken
		if err := rows.Scan(&token.ID, &token.UserID, &token.Name, &token.TokenHash, &token.CreatedAt, &token.ExpiresAt, &token.RevokedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, &token)
	}
	return tokens, rows.Err()
}

func (r *AccessTokenRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE access_tokens SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`,
		at, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrAccessTokenNotFound
	}
	return nil
}

// DeleteInactive removes tokens that were revoked or expired before cutoff.
func (r *AccessTokenRepository) DeleteInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM access_tokens
		 WHERE (revoked_at IS NOT NULL AND revoked_at <= $1)
		    OR (expires_at IS NOT NULL AND expires_at <= $1)`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}
