package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"anchorcred/internal/credential/models"
	"anchorcred/pkg/platform/sentinel"
)

// Schema creates the issued-credential table.
const Schema = `
CREATE TABLE IF NOT EXISTS issued_credentials (
	id         TEXT PRIMARY KEY,
	issuer     TEXT NOT NULL,
	document   JSONB NOT NULL,
	issued_at  TIMESTAMPTZ NOT NULL,
	revoked_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS issued_credentials_issuer_idx ON issued_credentials (issuer, issued_at DESC);
`

// PostgresStore persists issued credentials in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate credential store: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, issued models.IssuedCredential) error {
	doc, err := json.Marshal(issued.Credential)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO issued_credentials (id, issuer, document, issued_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		issued.Credential.ID, issued.Credential.Issuer, doc, issued.IssuedAt, issued.RevokedAt,
	)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (models.IssuedCredential, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT document, issued_at, revoked_at FROM issued_credentials WHERE id = $1`, id)
	issued, err := scanIssued(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.IssuedCredential{}, sentinel.ErrNotFound
		}
		return models.IssuedCredential{}, fmt.Errorf("find credential by id: %w", err)
	}
	return issued, nil
}

func (s *PostgresStore) ListByIssuer(ctx context.Context, issuer string) ([]models.IssuedCredential, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document, issued_at, revoked_at FROM issued_credentials
		WHERE issuer = $1 ORDER BY issued_at DESC`, issuer)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []models.IssuedCredential
	for rows.Next() {
		issued, err := scanIssued(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, issued)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkRevoked(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE issued_credentials SET revoked_at = COALESCE(revoked_at, $2) WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark credential revoked: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIssued(row scanner) (models.IssuedCredential, error) {
	var (
		doc     []byte
		issued  models.IssuedCredential
		revoked sql.NullTime
	)
	if err := row.Scan(&doc, &issued.IssuedAt, &revoked); err != nil {
		return models.IssuedCredential{}, err
	}
	if err := json.Unmarshal(doc, &issued.Credential); err != nil {
		return models.IssuedCredential{}, fmt.Errorf("unmarshal credential: %w", err)
	}
	if revoked.Valid {
		t := revoked.Time
		issued.RevokedAt = &t
	}
	return issued, nil
}
