package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloo-solutions/signmaker/internal/domain"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Fixed width so that lexical order equals chronological order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func openSQLiteDB(ctx context.Context, path string) (*sql.DB, error) {
	p := filepath.Clean(strings.TrimSpace(path))
	if p == "" || p == "." {
		return nil, errors.New("missing sqlite path")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single-process local DB: one connection keeps pragmas in effect.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return db, nil
}

// NewSQLiteStore wraps an open database. Closing the store closes db.
func NewSQLiteStore(db *sql.DB) *Store {
	return &Store{
		Orgs:        &SQLiteOrgRepository{db: db},
		Memberships: &SQLiteMembershipRepository{db: db},
		Memories:    &SQLiteMemoryRepository{db: db},
		Tokens:      &SQLiteAccessTokenRepository{db: db},
		ping:        db.PingContext,
		close:       func() { _ = db.Close() },
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, s)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeTags(tags []string) (string, error) {
	data, err := json.Marshal(nonNilTags(tags))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeTags(raw string) ([]string, error) {
	tags := []string{}
	if raw == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("invalid tags column: %w", err)
	}
	return nonNilTags(tags), nil
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

type SQLiteOrgRepository struct {
	db *sql.DB
}

func (r *SQLiteOrgRepository) Create(ctx context.Context, org *domain.Organization) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name, created_at) VALUES (?, ?, ?)`,
		org.ID, org.Name, formatTime(org.CreatedAt),
	)
	if isSQLiteUniqueViolation(err) {
		return domain.ErrOrganizationAlreadyExists
	}
	return err
}

func (r *SQLiteOrgRepository) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	return r.getOne(ctx, `SELECT id, name, created_at FROM organizations WHERE id = ?`, id)
}

func (r *SQLiteOrgRepository) GetByName(ctx context.Context, name string) (*domain.Organization, error) {
	return r.getOne(ctx, `SELECT id, name, created_at FROM organizations WHERE name = ?`, name)
}

func (r *SQLiteOrgRepository) getOne(ctx context.Context, query string, arg string) (*domain.Organization, error) {
	var org domain.Organization
	var createdAt string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&org.ID, &org.Name, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrganizationNotFound
		}
		return nil, err
	}
	if org.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *SQLiteOrgRepository) List(ctx context.Context) ([]*domain.Organization, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM organizations ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []*domain.Organization
	for rows.Next() {
		var org domain.Organization
		var createdAt string
		if err := rows.Scan(&org.ID, &org.Name, &createdAt); err != nil {
			return nil, err
		}
		if org.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, &org)
	}
	return orgs, rows.Err()
}

type SQLiteMembershipRepository struct {
	db *sql.DB
}

func (r *SQLiteMembershipRepository) Upsert(ctx context.Context, m *domain.Membership) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO org_members (user_id, org_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET org_id = excluded.org_id, created_at = excluded.created_at`,
		m.UserID, m.OrgID, formatTime(m.CreatedAt),
	)
	return err
}

func (r *SQLiteMembershipRepository) GetByUser(ctx context.Context, userID string) (*domain.Membership, error) {
	var m domain.Membership
	var createdAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, org_id, created_at FROM org_members WHERE user_id = ?`,
		userID,
	).Scan(&m.UserID, &m.OrgID, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, err
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *SQLiteMembershipRepository) Delete(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM org_members WHERE user_id = ?`, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrMembershipNotFound
	}
	return nil
}

type SQLiteMemoryRepository struct {
	db *sql.DB
}

func (r *SQLiteMemoryRepository) CreatePersonal(ctx context.Context, m *domain.Memory) error {
	tags, err := encodeTags(m.Tags)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO user_memories (id, user_id, content, memory_type, confidence, tags, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.OwnerID, m.Content, m.Type, string(m.Confidence), tags, formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
	)
	return err
}

func (r *SQLiteMemoryRepository) CreateCompany(ctx context.Context, m *domain.Memory) error {
	tags, err := encodeTags(m.Tags)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO company_knowledge (id, org_id, content, memory_type, status, tags, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.OwnerID, m.Content, m.Type, string(m.Status), tags, formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
	)
	return err
}

func (r *SQLiteMemoryRepository) ListPersonal(ctx context.Context, userID string, limit int) ([]*domain.Memory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, content, memory_type, confidence, tags, created_at, updated_at
		 FROM user_memories
		 WHERE user_id = ?
		 ORDER BY updated_at DESC, id DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSQLiteMemories(rows, domain.ScopePersonal)
}

func (r *SQLiteMemoryRepository) ListApprovedCompany(ctx context.Context, orgID string, limit int) ([]*domain.Memory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, org_id, content, memory_type, status, tags, created_at, updated_at
		 FROM company_knowledge
		 WHERE org_id = ? AND status = 'approved'
		 ORDER BY updated_at DESC, id DESC
		 LIMIT ?`,
		orgID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSQLiteMemories(rows, domain.ScopeCompany)
}

// scanSQLiteMemories reads rows whose fifth column is the confidence for
// personal records and the review status for company records.
func scanSQLiteMemories(rows *sql.Rows, scope domain.Scope) ([]*domain.Memory, error) {
	memories := []*domain.Memory{}
	for rows.Next() {
		m := domain.Memory{Scope: scope}
		var level, tags, createdAt, updatedAt string
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.Content, &m.Type, &level, &tags, &createdAt, &updatedAt); err != nil {
			return nil, err
		}

		if scope == domain.ScopeCompany {
			m.Status = domain.KnowledgeStatus(level)
			m.Confidence = domain.ConfidenceStandard
		} else {
			m.Confidence = domain.Confidence(level)
		}

		var err error
		if m.Tags, err = decodeTags(tags); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		memories = append(memories, &m)
	}
	return memories, rows.Err()
}

type SQLiteAccessTokenRepository struct {
	db *sql.DB
}

func (r *SQLiteAccessTokenRepository) Create(ctx context.Context, token *domain.AccessToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_tokens (`+accessTokenColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		token.ID, token.UserID, token.Name, token.TokenHash, formatTime(token.CreatedAt),
		formatTimePtr(token.ExpiresAt), formatTimePtr(token.RevokedAt),
	)
	if isSQLiteUniqueViolation(err) {
		return domain.ErrAccessTokenAlreadyExists
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteToken(row rowScanner) (*domain.AccessToken, error) {
	var token domain.AccessToken
	var createdAt string
	var expiresAt, revokedAt sql.NullString
	if err := row.Scan(&token.ID, &token.UserID, &token.Name, &token.TokenHash, &createdAt, &expiresAt, &revokedAt); err != nil {
		return nil, err
	}

	var err error
	if token.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if token.ExpiresAt, err = parseTimePtr(expiresAt); err != nil {
		return nil, err
	}
	if token.RevokedAt, err = parseTimePtr(revokedAt); err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *SQLiteAccessTokenRepository) GetByHash(ctx context.Context, hash string) (*domain.AccessToken, error) {
	token, err := scanSQLiteToken(r.db.QueryRowContext(ctx,
		`SELECT `+accessTokenColumns+` FROM access_tokens WHERE token_hash = ?`, hash,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccessTokenNotFound
		}
		return nil, err
	}
	return token, nil
}

func (r *SQLiteAccessTokenRepository) ListByUser(ctx context.Context, userID string) ([]*domain.AccessToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accessTokenColumns+` FROM access_tokens WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*domain.AccessToken
	for rows.Next() {
		token, err := scanSQLiteToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func (r *SQLiteAccessTokenRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE access_tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		formatTime(at), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAccessTokenNotFound
	}
	return nil
}

func (r *SQLiteAccessTokenRepository) DeleteInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	c := formatTime(cutoff)
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM access_tokens
		 WHERE (revoked_at IS NOT NULL AND revoked_at <= ?)
		    OR (expires_at IS NOT NULL AND expires_at <= ?)`,
		c, c,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
