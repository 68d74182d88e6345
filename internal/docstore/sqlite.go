// Package docstore keeps one relational row of summary metadata per
// uploaded document.
package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// ErrNotFound is returned when no document row exists for an id.
var ErrNotFound = errors.New("document not found")

type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"size_bytes"`
	SizeKB     float64   `json:"size_kb"`
	SizeMB     float64   `json:"size_mb"`
	UploadedAt time.Time `json:"uploaded_at"`
	Extension  string    `json:"extension"`
	MimeType   string    `json:"mime_type"`
}

const schema = `
CREATE TABLE IF NOT EXISTS user_docs (
	id          TEXT PRIMARY KEY,
	filename    TEXT NOT NULL,
	size_bytes  INTEGER NOT NULL,
	size_kb     REAL NOT NULL,
	size_mb     REAL NOT NULL,
	uploaded_at TEXT NOT NULL,
	extension   TEXT NOT NULL,
	mime_type   TEXT NOT NULL
);
`

type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the SQLite database at path, with
// WAL mode for concurrent request handling.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Insert(ctx context.Context, doc Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_docs (id, filename, size_bytes, size_kb, size_mb, uploaded_at, extension, mime_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.SizeBytes, doc.SizeKB, doc.SizeMB,
		doc.UploadedAt.Format(time.RFC3339), doc.Extension, doc.MimeType,
	)
	if err != nil {
		return fmt.Errorf("inserting document %s: %w", doc.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, size_bytes, size_kb, size_mb, uploaded_at, extension, mime_type
		FROM user_docs WHERE id = ?`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", id, err)
	}
	return doc, nil
}

func (s *Store) List(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, size_bytes, size_kb, size_mb, uploaded_at, extension, mime_type
		FROM user_docs ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var doc Document
	var uploadedAt string
	if err := row.Scan(&doc.ID, &doc.Filename, &doc.SizeBytes, &doc.SizeKB, &doc.SizeMB,
		&uploadedAt, &doc.Extension, &doc.MimeType); err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339, uploadedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing uploaded_at %q: %w", uploadedAt, err)
	}
	doc.UploadedAt = ts
	return &doc, nil
}
