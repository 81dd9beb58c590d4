package repository

import (
	"context"

	"github.com/cloo-solutions/signmaker/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MemoryRepository reads and writes personal memories and company knowledge.
type MemoryRepository struct {
	pool *pgxpool.Pool
}

func NewMemoryRepository(pool *pgxpool.Pool) *MemoryRepository {
	return &MemoryRepository{pool: pool}
}

func (r *MemoryRepository) CreatePersonal(ctx context.Context, m *domain.Memory) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_memories (id, user_id, content, memory_type, confidence, tags, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.OwnerID, m.Content, m.Type, string(m.Confidence), nonNilTags(m.Tags), m.CreatedAt, m.UpdatedAt,
	)
	return err
}

func (r *MemoryRepository) CreateCompany(ctx context.Context, m *domain.Memory) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO company_knowledge (id, org_id, content, memory_type, status, tags, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.OwnerID, m.Content, m.Type, string(m.Status), nonNilTags(m.Tags), m.CreatedAt, m.UpdatedAt,
	)
	return err
}

// ListPersonal returns the user's most recently updated memories.
func (r *MemoryRepository) ListPersonal(ctx context.Context, userID string, limit int) ([]*domain.Memory, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, content, memory_type, confidence, tags, created_at, updated_at
		 FROM user_memories
		 WHERE user_id = $1
		 ORDER BY updated_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	memories := []*domain.Memory{}
	for rows.Next() {
		m := domain.Memory{Scope: domain.ScopePersonal}
		var confidence string
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.Content, &m.Type, &confidence, &m.Tags, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.Confidence = domain.Confidence(confidence)
		m.Tags = nonNilTags(m.Tags)
		memories = append(memories, &m)
	}
	return memories, rows.Err()
}

// ListApprovedCompany returns the organization's most recently updated
// approved knowledge.
func (r *MemoryRepository) ListApprovedCompany(ctx context.Context, orgID string, limit int) ([]*domain.Memory, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, org_id, content, memory_type, status, tags, created_at, updated_at
		 FROM company_knowledge
		 WHERE org_id = $1 AND status = 'approved'
		 ORDER BY updated_at DESC, id DESC
		 LIMIT $2`,
		orgID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCompany(rows)
}

func scanCompany(rows pgx.Rows) ([]*domain.Memory, error) {
	knowledge := []*domain.Memory{}
	for rows.Next() {
		m := domain.Memory{Scope: domain.ScopeCompany, Confidence: domain.ConfidenceStandard}
		var status string
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.Content, &m.Type, &status, &m.Tags, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.Status = domain.KnowledgeStatus(status)
		m.Tags = nonNilTags(m.Tags)
		knowledge = append(knowledge, &m)
	}
	return knowledge, rows.Err()
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
