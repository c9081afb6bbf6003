package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS session_items (
		session_id TEXT NOT NULL,
		item_key   TEXT NOT NULL,
		item_value TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, item_key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_session_items_updated ON session_items (updated_at)`,
}

// SQLiteStore keeps session items in a SQLite database so they survive a
// server restart within their TTL.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ Storage = (*SQLiteStore)(nil)

// DefaultSQLitePath returns the per-user data location of the database,
// creating its directory.
func DefaultSQLitePath() (string, error) {
	path, err := xdg.DataFile(filepath.Join("defect-detector", "sessions.db"))
	if err != nil {
		return "", fmt.Errorf("failed to resolve data directory: %w", err)
	}
	return path, nil
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, path: path, now: time.Now}, nil
}

func (s *SQLiteStore) SetItem(ctx context.Context, sessionID, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_items (session_id, item_key, item_value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id, item_key) DO UPDATE SET
			item_value = excluded.item_value,
			updated_at = excluded.updated_at`,
		sessionID, key, value, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to set item: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetItem(ctx context.Context, sessionID, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT item_value FROM session_items WHERE session_id = ? AND item_key = ?`,
		sessionID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get item: %w", err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_items WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM session_items WHERE updated_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count swept rows: %w", err)
	}
	return int(n), nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error { return s.db.Close() }
