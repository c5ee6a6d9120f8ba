package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/fathom-ai/fathom-go/internal/chunking"
)

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the document store database.
// It resolves to ~/.fathom/fathom.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("docstore: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".fathom")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("docstore: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "fathom.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("docstore: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    id           TEXT    PRIMARY KEY,
    title        TEXT    NOT NULL,
    source_path  TEXT    NOT NULL,
    raw_text     TEXT    NOT NULL,
    ingested_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE TABLE IF NOT EXISTS parents (
    id           TEXT    PRIMARY KEY,
    document_id  TEXT    NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    text         TEXT    NOT NULL,
    start_offset INTEGER NOT NULL,
    end_offset   INTEGER NOT NULL,
    seq          INTEGER NOT NULL  -- insertion order within the document
);
CREATE TABLE IF NOT EXISTS children (
    id           TEXT    PRIMARY KEY,
    parent_id    TEXT    NOT NULL REFERENCES parents(id) ON DELETE CASCADE,
    document_id  TEXT    NOT NULL,
    text         TEXT    NOT NULL,
    seq          INTEGER NOT NULL  -- global insertion order for index rebuilds
);
CREATE INDEX IF NOT EXISTS idx_parents_document  ON parents (document_id);
CREATE INDEX IF NOT EXISTS idx_children_parent   ON children (parent_id);
CREATE INDEX IF NOT EXISTS idx_children_document ON children (document_id);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("docstore: migrate: %w", err)
	}
	return nil
}

// PutDocument persists a document and its chunks in one transaction. Any
// previous chunks stored under the same document ID are replaced, so
// re-ingesting a changed file never leaves stale chunks behind.
func (s *SQLiteStore) PutDocument(ctx context.Context, doc chunking.Document, parents []chunking.ParentChunk, children []chunking.ChildChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("docstore: begin put: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM children WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("docstore: clear children: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM parents WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("docstore: clear parents: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO documents (id, title, source_path, raw_text, ingested_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    title = excluded.title, source_path = excluded.source_path,
    raw_text = excluded.raw_text, ingested_at = excluded.ingested_at`,
		doc.ID, doc.Title, doc.SourcePath, doc.RawText, time.Now().Unix()); err != nil {
		return fmt.Errorf("docstore: put document: %w", err)
	}

	for i, p := range parents {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO parents (id, document_id, text, start_offset, end_offset, seq)
VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, p.DocumentID, p.Text, p.StartOffset, p.EndOffset, i); err != nil {
			return fmt.Errorf("docstore: put parent %s: %w", p.ID, err)
		}
	}
	for i, c := range children {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO children (id, parent_id, document_id, text, seq)
VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.ParentID, doc.ID, c.Text, i); err != nil {
			return fmt.Errorf("docstore: put child %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("docstore: commit put: %w", err)
	}
	return nil
}

// GetParent returns the parent chunk with the given ID, or ErrNotFound.
func (s *SQLiteStore) GetParent(ctx context.Context, parentID string) (chunking.ParentChunk, error) {
	const q = `SELECT id, document_id, text, start_offset, end_offset FROM parents WHERE id = ?`
	var p chunking.ParentChunk
	err := s.db.QueryRowContext(ctx, q, parentID).
		Scan(&p.ID, &p.DocumentID, &p.Text, &p.StartOffset, &p.EndOffset)
	if err == sql.ErrNoRows {
		return chunking.ParentChunk{}, ErrNotFound
	}
	if err != nil {
		return chunking.ParentChunk{}, fmt.Errorf("docstore: get parent: %w", err)
	}
	return p, nil
}

// GetChild returns the child chunk with the given ID, or ErrNotFound.
func (s *SQLiteStore) GetChild(ctx context.Context, childID string) (chunking.ChildChunk, error) {
	const q = `SELECT id, parent_id, text FROM children WHERE id = ?`
	var c chunking.ChildChunk
	err := s.db.QueryRowContext(ctx, q, childID).Scan(&c.ID, &c.ParentID, &c.Text)
	if err == sql.ErrNoRows {
		return chunking.ChildChunk{}, ErrNotFound
	}
	if err != nil {
		return chunking.ChildChunk{}, fmt.Errorf("docstore: get child: %w", err)
	}
	return c, nil
}

// AllChildren returns every stored child chunk ordered by document ingestion
// time then insertion order, so lexical index rebuilds are deterministic.
func (s *SQLiteStore) AllChildren(ctx context.Context) ([]chunking.ChildChunk, error) {
	const q = `
SELECT c.id, c.parent_id, c.text
FROM   children c
JOIN   documents d ON d.id = c.document_id
ORDER  BY d.ingested_at ASC, d.id ASC, c.seq ASC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("docstore: all children: %w", err)
	}
	defer rows.Close()

	var out []chunking.ChildChunk
	for rows.Next() {
		var c chunking.ChildChunk
		if err := rows.Scan(&c.ID, &c.ParentID, &c.Text); err != nil {
			return nil, fmt.Errorf("docstore: all children scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docstore: all children rows: %w", err)
	}
	return out, nil
}

// ListDocuments returns a summary of every stored document, oldest first.
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	const q = `
SELECT d.id, d.title, d.source_path, d.ingested_at,
       (SELECT COUNT(*) FROM parents  p WHERE p.document_id = d.id),
       (SELECT COUNT(*) FROM children c WHERE c.document_id = d.id)
FROM   documents d
ORDER  BY d.ingested_at ASC, d.id ASC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("docstore: list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentInfo
	for rows.Next() {
		var info DocumentInfo
		var ts int64
		if err := rows.Scan(&info.ID, &info.Title, &info.SourcePath, &ts,
			&info.ParentCount, &info.ChildCount); err != nil {
			return nil, fmt.Errorf("docstore: list documents scan: %w", err)
		}
		info.IngestedAt = time.Unix(ts, 0)
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docstore: list documents rows: %w", err)
	}
	return out, nil
}

// DeleteDocument removes a document and all its chunks, returning the IDs of
// the removed children.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, documentID string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("docstore: begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM children WHERE document_id = ?`, documentID)
	if err != nil {
		return nil, fmt.Errorf("docstore: delete select children: %w", err)
	}
	var childIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("docstore: delete scan child: %w", err)
		}
		childIDs = append(childIDs, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("docstore: delete children rows: %w", err)
	}
	rows.Close()

	for _, q := range []string{
		`DELETE FROM children WHERE document_id = ?`,
		`DELETE FROM parents WHERE document_id = ?`,
		`DELETE FROM documents WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, documentID); err != nil {
			return nil, fmt.Errorf("docstore: delete document: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("docstore: commit delete: %w", err)
	}
	return childIDs, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("docstore: close: %w", err)
	}
	return nil
}
