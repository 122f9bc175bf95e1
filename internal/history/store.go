// Package history keeps a log of form automation runs.
//
// Runs are stored in SQLite with an FTS5 index over subject, sender and
// source URL so earlier runs can be found by keyword.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

// Run statuses.
const (
	StatusSuccess = "success"
	StatusInfo    = "info"
	StatusError   = "error"
)

// Run is one recorded automation run.
type Run struct {
	ID           string `json:"id"`
	EmailURL     string `json:"email_url"`
	Subject      string `json:"subject"`
	Sender       string `json:"sender"`
	OriginalPDF  string `json:"original_pdf"`
	FilledPDF    string `json:"filled_pdf,omitempty"`
	FieldsFilled int    `json:"fields_filled"`
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds history store configuration.
type Config struct {
	DataDir string
	// MaxResults caps Recent and Search.
	MaxResults int
}

// DefaultConfig returns the default configuration for the history store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:    filepath.Join(home, ".formpilot"),
		MaxResults: 50,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the run log backed by SQLite.
type Store struct {
	db  *sql.DB
	cfg Config
}

// New opens (creating if needed) the history database under cfg.DataDir.
func New(cfg Config) (*Store, error) {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultConfig().MaxResults
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("history: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "history.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migration: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id            TEXT    PRIMARY KEY,
			email_url     TEXT    NOT NULL DEFAULT '',
			subject       TEXT    NOT NULL DEFAULT '',
			sender        TEXT    NOT NULL DEFAULT '',
			original_pdf  TEXT    NOT NULL DEFAULT '',
			filled_pdf    TEXT    NOT NULL DEFAULT '',
			fields_filled INTEGER NOT NULL DEFAULT 0,
			status        TEXT    NOT NULL,
			message       TEXT    NOT NULL DEFAULT '',
			created_at    TEXT    NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);

		CREATE VIRTUAL TABLE IF NOT EXISTS runs_fts USING fts5(
			subject,
			sender,
			email_url,
			content='runs',
			content_rowid='rowid'
		);

		CREATE TRIGGER IF NOT EXISTS runs_fts_insert AFTER INSERT ON runs BEGIN
			INSERT INTO runs_fts(rowid, subject, sender, email_url)
			VALUES (new.rowid, new.subject, new.sender, new.email_url);
		END;

		CREATE TRIGGER IF NOT EXISTS runs_fts_delete AFTER DELETE ON runs BEGIN
			INSERT INTO runs_fts(runs_fts, rowid, subject, sender, email_url)
			VALUES ('delete', old.rowid, old.subject, old.sender, old.email_url);
		END;
	`
	_, err := s.db.Exec(schema)
	return err
}

// ─── Runs ────────────────────────────────────────────────────────────────────

// Record stores a run. ID and CreatedAt are assigned when empty; the stored
// run is returned.
func (s *Store) Record(ctx context.Context, r Run) (*Run, error) {
	if r.Status == "" {
		return nil, fmt.Errorf("history: record: status is required")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt == "" {
		r.CreatedAt = Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, email_url, subject, sender, original_pdf, filled_pdf,
		                   fields_filled, status, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.EmailURL, r.Subject, r.Sender, r.OriginalPDF, r.FilledPDF,
		r.FieldsFilled, r.Status, r.Message, r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("history: record: %w", err)
	}
	return &r, nil
}

// Get returns the run with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email_url, subject, sender, original_pdf, filled_pdf,
		        fields_filled, status, message, created_at
		 FROM runs WHERE id = ?`, id)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("history: get %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("history: get %q: %w", id, err)
	}
	return r, nil
}

// Recent returns up to limit runs, newest first. A limit outside
// 1..MaxResults is clamped.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email_url, subject, sender, original_pdf, filled_pdf,
		        fields_filled, status, message, created_at
		 FROM runs
		 ORDER BY datetime(created_at) DESC, rowid DESC
		 LIMIT ?`, s.clamp(limit))
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	return collect(rows)
}

// Search finds runs whose subject, sender or email URL match query, best
// match first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Run, error) {
	q := sanitizeFTS(query)
	if q == "" {
		return s.Recent(ctx, limit)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.email_url, r.subject, r.sender, r.original_pdf, r.filled_pdf,
		        r.fields_filled, r.status, r.message, r.created_at
		 FROM runs_fts f
		 JOIN runs r ON r.rowid = f.rowid
		 WHERE runs_fts MATCH ?
		 ORDER BY f.rank
		 LIMIT ?`, q, s.clamp(limit))
	if err != nil {
		return nil, fmt.Errorf("history: search: %w", err)
	}
	defer rows.Close()

	return collect(rows)
}

// Count returns the number of recorded runs.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("history: count: %w", err)
	}
	return n, nil
}

func (s *Store) clamp(limit int) int {
	if limit <= 0 || limit > s.cfg.MaxResults {
		return s.cfg.MaxResults
	}
	return limit
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var r Run
	err := sc.Scan(&r.ID, &r.EmailURL, &r.Subject, &r.Sender, &r.OriginalPDF,
		&r.FilledPDF, &r.FieldsFilled, &r.Status, &r.Message, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collect(rows *sql.Rows) ([]Run, error) {
	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: rows: %w", err)
	}
	return runs, nil
}

// sanitizeFTS quotes each term so user input cannot inject FTS5 syntax.
func sanitizeFTS(query string) string {
	var terms []string
	for _, w := range strings.Fields(query) {
		w = strings.ReplaceAll(w, `"`, "")
		if w != "" {
			terms = append(terms, `"`+w+`"`)
		}
	}
	return strings.Join(terms, " ")
}

// Now returns the current time formatted for SQLite.
func Now() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}
