package repository

import (
	"context"
	"errors"

	"github.com/cloo-solutions/signmaker/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MembershipRepository stores the single organization each user belongs to.
type MembershipRepository struct {
	pool *pgxpool.Pool
}

func NewMembershipRepository(pool *pgxpool.Pool) *MembershipRepository {
	return &MembershipRepository{pool: pool}
}

// Upsert assigns the user to m.OrgID, replacing any previous membership.
func (r *MembershipRepository) Upsert(ctx context.Context, m *domain.Membership) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO org_members (user_id, org_id, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET org_id = EXCLUDED.org_id, created_at = EXCLUDED.created_at`,
		m.UserID, m.OrgID, m.CreatedAt,
	)
	return err
}

func (r *MembershipRepository) GetByUser(ctx context.Context, userID string) (*domain.Membership, error) {
	var m domain.Membership
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, org_id, created_at FROM org_members WHERE user_id = $1`,
		userID,
	).Scan(&m.UserID, &m.OrgID, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MembershipRepository) Delete(ctx context.Context, userID string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM org_members WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrMembershipNotFound
	}
	return nil
}
