package document

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

// ErrNotStored is returned when the text store has no entry for an id.
var ErrNotStored = errors.New("document not in text store")

// TextStore persists extracted page text per document so search and the
// ask command work without refetching.
type TextStore struct {
	db   *sql.DB
	path string
}

// OpenTextStore opens or creates the store at path. An empty path uses the
// user cache directory.
func OpenTextStore(path string) (*TextStore, error) {
	if path == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}
		path = filepath.Join(base, "docscout", "text.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &TextStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *TextStore) Path() string { return s.path }

// Close closes the database.
func (s *TextStore) Close() error { return s.db.Close() }

func (s *TextStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			source TEXT NOT NULL,
			kind INTEGER NOT NULL,
			saved_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS pages (
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			number INTEGER NOT NULL,
			width REAL NOT NULL,
			height REAL NOT NULL,
			text TEXT NOT NULL,
			PRIMARY KEY (document_id, number)
		);
	`)
	return err
}

// Save replaces the stored pages of doc. Fragments are not stored; a
// document read back is always a text document.
func (s *TextStore) Save(ctx context.Context, doc *Document) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("save: document id required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("clearing pages: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, title, source, kind, saved_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, source = excluded.source,
			kind = excluded.kind, saved_at = excluded.saved_at`,
		doc.ID, doc.Title, doc.Source, int(KindText), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	for _, p := range doc.Pages {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO pages (document_id, number, width, height, text) VALUES (?, ?, ?, ?, ?)`,
			doc.ID, p.Number, p.Width, p.Height, p.Text)
		if err != nil {
			return fmt.Errorf("saving page %d: %w", p.Number, err)
		}
	}
	return tx.Commit()
}

// Load returns the stored document, or ErrNotStored.
func (s *TextStore) Load(ctx context.Context, id string) (*Document, error) {
	doc := &Document{ID: id, Kind: KindText}
	var kind int
	var savedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT title, source, kind, saved_at FROM documents WHERE id = ?`, id).
		Scan(&doc.Title, &doc.Source, &kind, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotStored
	}
	if err != nil {
		return nil, fmt.Errorf("loading document: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT number, width, height, text FROM pages WHERE document_id = ? ORDER BY number`, id)
	if err != nil {
		return nil, fmt.Errorf("loading pages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p Page
		if err := rows.Scan(&p.Number, &p.Width, &p.Height, &p.Text); err != nil {
			return nil, err
		}
		doc.Pages = append(doc.Pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(doc.Pages) == 0 {
		return nil, ErrNoPages
	}
	return doc, nil
}

// Delete removes a stored document.
func (s *TextStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE document_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}
