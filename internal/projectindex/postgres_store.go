package projectindex

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore keeps snapshots in two tables keyed by project name.
type PostgresStore struct {
	db      *sql.DB
	project string

	schemaMu    sync.Mutex
	schemaReady bool
}

func NewPostgresStore(dsn, project string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return newPostgresStoreDB(db, project), nil
}

func newPostgresStoreDB(db *sql.DB, project string) *PostgresStore {
	return &PostgresStore{db: db, project: project}
}

func (s *PostgresStore) Close() error { return s.db.Close() }

// ensureSchema creates the tables on first use. A failed attempt is retried
// by the next call.
func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS code_files (
  project TEXT NOT NULL,
  ord INTEGER NOT NULL,
  filename TEXT NOT NULL,
  path TEXT NOT NULL,
  package TEXT NOT NULL DEFAULT '',
  checksum TEXT NOT NULL DEFAULT '',
  summary TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (project, path)
);

CREATE TABLE IF NOT EXISTS package_notes (
  project TEXT NOT NULL,
  package TEXT NOT NULL,
  notes TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (project, package)
);
`); err != nil {
		return fmt.Errorf("projectindex: create schema: %w", err)
	}
	s.schemaReady = true
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (*Index, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT filename, path, package, checksum, summary
FROM code_files WHERE project = $1 ORDER BY ord`, s.project)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var files []FileEntry
	for rows.Next() {
		var f FileEntry
		if err := rows.Scan(&f.Name, &f.Path, &f.Namespace, &f.Checksum, &f.Summary); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoSnapshot
	}

	notes, err := s.db.QueryContext(ctx, `SELECT package, notes FROM package_notes WHERE project = $1`, s.project)
	if err != nil {
		return nil, err
	}
	defer notes.Close()
	x := New(files)
	for notes.Next() {
		var pkg, text string
		if err := notes.Scan(&pkg, &text); err != nil {
			return nil, err
		}
		x.SetNamespaceSummary(pkg, text)
	}
	return x, notes.Err()
}

// Save replaces the stored snapshot of the project in one transaction.
func (s *PostgresStore) Save(ctx context.Context, x *Index) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM code_files WHERE project = $1`, s.project); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM package_notes WHERE project = $1`, s.project); err != nil {
		return err
	}
	for i, f := range x.Files() {
		_, err := tx.ExecContext(ctx, `
INSERT INTO code_files (project, ord, filename, path, package, checksum, summary)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			s.project, i, f.Name, f.Path, f.Namespace, f.Checksum, f.Summary)
		if err != nil {
			return fmt.Errorf("projectindex: insert %s: %w", f.Path, err)
		}
	}
	for pkg, text := range x.NamespaceSummaries() {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO package_notes (project, package, notes) VALUES ($1,$2,$3)`,
			s.project, pkg, text); err != nil {
			return fmt.Errorf("projectindex: insert notes %s: %w", pkg, err)
		}
	}
	return tx.Commit()
}
