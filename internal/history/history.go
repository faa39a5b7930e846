// Package history records served predictions in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"cropwise-go/internal/history/migrations"
	"cropwise-go/internal/models"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Store is the prediction history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database at path, creating it and applying pending
// migrations. ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating history directory: %w", err)
			}
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if path == ":memory:" {
		// each connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			upFiles = append(upFiles, e.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// Record stores one prediction and returns the stored entry.
func (s *Store) Record(ctx context.Context, kind string, request, response any) (models.HistoryEntry, error) {
	req, err := json.Marshal(request)
	if err != nil {
		return models.HistoryEntry{}, fmt.Errorf("marshalling request: %w", err)
	}
	resp, err := json.Marshal(response)
	if err != nil {
		return models.HistoryEntry{}, fmt.Errorf("marshalling response: %w", err)
	}

	entry := models.HistoryEntry{
		ID:        uuid.NewString(),
		Kind:      kind,
		Request:   req,
		Response:  resp,
		CreatedAt: s.now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO predictions (id, kind, request, response, created_at) VALUES (?, ?, ?, ?, ?)",
		entry.ID, entry.Kind, string(req), string(resp), entry.CreatedAt.UnixNano())
	if err != nil {
		return models.HistoryEntry{}, fmt.Errorf("inserting prediction: %w", err)
	}
	return entry, nil
}

// List returns the newest entries first. An empty kind lists every kind.
// limit is clamped to 1..500 and defaults to 50.
func (s *Store) List(ctx context.Context, kind string, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	query := "SELECT id, kind, request, response, created_at FROM predictions"
	args := []any{}
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying predictions: %w", err)
	}
	defer rows.Close()

	entries := []models.HistoryEntry{}
	for rows.Next() {
		var (
			e         models.HistoryEntry
			req, resp string
			created   int64
		)
		if err := rows.Scan(&e.ID, &e.Kind, &req, &resp, &created); err != nil {
			return nil, fmt.Errorf("scanning prediction: %w", err)
		}
		e.Request = json.RawMessage(req)
		e.Response = json.RawMessage(resp)
		e.CreatedAt = time.Unix(0, created).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
