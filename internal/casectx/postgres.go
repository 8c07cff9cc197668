package casectx

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresBackend persists context artifacts in a single upsert-keyed table,
// which is what makes every pipeline write idempotent across process
// restarts.
type PostgresBackend struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

// OpenPostgres opens a pgx-backed database/sql handle.
func OpenPostgres(dsn string) (*PostgresBackend, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("casectx: open postgres: %w", err)
	}
	return NewPostgresBackend(db), nil
}

func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func (s *PostgresBackend) ensureSchema() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS case_context (
    id SERIAL PRIMARY KEY,
    case_id TEXT NOT NULL,
    path TEXT NOT NULL,
    content BYTEA NOT NULL DEFAULT ''::bytea,
    size BIGINT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    UNIQUE(case_id, path)
);
CREATE INDEX IF NOT EXISTS idx_case_context_case_id ON case_context(case_id);
`)
	})
	return s.schemaErr
}

func (s *PostgresBackend) Put(ctx context.Context, caseID, path string, content []byte) error {
	caseID = strings.TrimSpace(caseID)
	path = strings.TrimSpace(path)
	if caseID == "" {
		return fmt.Errorf("case_id is required")
	}
	if path == "" {
		return fmt.Errorf("path is required")
	}
	if err := s.ensureSchema(); err != nil {
		return err
	}
	if content == nil {
		content = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO case_context (case_id, path, content, size, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (case_id, path)
DO UPDATE SET content=EXCLUDED.content, size=EXCLUDED.size, updated_at=EXCLUDED.updated_at
`, caseID, path, content, int64(len(content)), time.Now())
	return err
}

func (s *PostgresBackend) Get(ctx context.Context, caseID, path string) ([]byte, error) {
	caseID = strings.TrimSpace(caseID)
	path = strings.TrimSpace(path)
	if caseID == "" || path == "" {
		return nil, fmt.Errorf("case_id and path are required")
	}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	var content []byte
	err := s.db.QueryRowContext(ctx, `SELECT content FROM case_context WHERE case_id=$1 AND path=$2`, caseID, path).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return content, nil
}

func (s *PostgresBackend) List(ctx context.Context, caseID string) ([]string, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, fmt.Errorf("case_id is required")
	}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM case_context WHERE case_id=$1 ORDER BY path`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (s *PostgresBackend) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
