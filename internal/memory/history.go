package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"codeberg.org/snonux/bn2en/internal"
)

// Entry is one stored translation
type Entry struct {
	ID          string
	Source      string
	Translation string
	Provider    string
	RepoID      string
	CreatedAt   time.Time
}

// History is a SQLite backed translation history
type History struct {
	db *sql.DB
}

// DefaultPath returns the history database location under the user state directory
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "bn2en-history.db"
	}
	return filepath.Join(home, ".local", "state", "bn2en", "history.db")
}

// Open opens or creates the history database at path
func Open(path string) (*History, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	h := &History{db: db}
	if err := h.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

func (h *History) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS translations (
			id text PRIMARY KEY,
			source text NOT NULL,
			translation text NOT NULL,
			provider text NOT NULL,
			repo_id text NOT NULL,
			created_at integer NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ix_translations_source ON translations (source, repo_id)`,
		`CREATE INDEX IF NOT EXISTS ix_translations_created ON translations (created_at)`,
	}

	for _, query := range queries {
		if _, err := h.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Save stores a translation and returns the stored entry
func (h *History) Save(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = internal.GenerateRequestID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := h.db.ExecContext(ctx,
		`INSERT INTO translations (id, source, translation, provider, repo_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Source, e.Translation, e.Provider, e.RepoID, e.CreatedAt.UnixNano())
	if err != nil {
		return Entry{}, fmt.Errorf("failed to save translation: %w", err)
	}
	return e, nil
}

// Lookup returns the most recent translation of source made with repoID
func (h *History) Lookup(ctx context.Context, source, repoID string) (Entry, bool, error) {
	row := h.db.QueryRowContext(ctx,
		`SELECT id, source, translation, provider, repo_id, created_at FROM translations
		WHERE source = ? AND repo_id = ? ORDER BY created_at DESC LIMIT 1`, source, repoID)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to look up translation: %w", err)
	}
	return e, true, nil
}

// Recent returns up to limit entries, newest first
func (h *History) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT id, source, translation, provider, repo_id, created_at FROM translations
		ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of stored translations
func (h *History) Count(ctx context.Context) (int, error) {
	var n int
	if err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM translations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return n, nil
}

// Close closes the database
func (h *History) Close() error {
	return h.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var e Entry
	var created int64
	if err := s.Scan(&e.ID, &e.Source, &e.Translation, &e.Provider, &e.RepoID, &created); err != nil {
		return Entry{}, err
	}
	e.CreatedAt = time.Unix(0, created)
	return e, nil
}
