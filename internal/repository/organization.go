package repository

import (
	"context"
	"errors"

	"github.com/cloo-solutions/signmaker/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation = "23505"
	orgColumns        = `id, name, created_at`
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// OrgRepository stores organizations in Postgres. Names are unique.
type OrgRepository struct {
	pool *pgxpool.Pool
}

func NewOrgRepository(pool *pgxpool.Pool) *OrgRepository {
	return &OrgRepository{pool: pool}
}

func (r *OrgRepository) Create(ctx context.Context, org *domain.Organization) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO organizations (`+orgColumns+`) VALUES ($1, $2, $3)`,
		org.ID, org.Name, org.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrOrganizationAlreadyExists
	}
	return err
}

func (r *OrgRepository) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *OrgRepository) GetByName(ctx context.Context, name string) (*domain.Organization, error) {
	return r.getOne(ctx, `WHERE name = $1`, name)
}

// List returns organizations newest first.
func (r *OrgRepository) List(ctx context.Context) ([]*domain.Organization, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orgColumns+` FROM organizations ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanOrg)
}

func (r *OrgRepository) getOne(ctx context.Context, where string, arg any) (*domain.Organization, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orgColumns+` FROM organizations `+where, arg)
	if err != nil {
		return nil, err
	}
	org, err := pgx.CollectExactlyOneRow(rows, scanOrg)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrganizationNotFound
	}
	return org, err
}

func scanOrg(row pgx.CollectableRow) (*domain.Organization, error) {
	var org domain.Organization
	if err := row.Scan(&org.ID, &org.Name, &org.CreatedAt); err != nil {
		return nil, err
	}
	return &org, nil
}
