package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrAlreadyRegistered is returned by Register when the target is already stored.
var ErrAlreadyRegistered = errors.New("unsubscribe target already registered")

// Target is a stored unsubscribe target.
type Target struct {
	ID         int64  `db:"id"`
	MailtoLink string `db:"mailto_link"`
}

// SQLiteStore is the file-backed dedup store.
type SQLiteStore struct {
	db *sqlx.DB
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	// A single connection keeps the check-then-insert sequence on one
	// SQLite handle.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Exists reports whether target has been registered. The match is exact.
func (s *SQLiteStore) Exists(ctx context.Context, target string) (bool, error) {
	var one int
	err := s.db.GetContext(ctx, &one, "SELECT 1 FROM unsubscribed WHERE mailto_link = ?", target)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up target: %w", err)
	}
	return true, nil
}

// Register records target as handled. Registering a target twice returns
// ErrAlreadyRegistered and leaves the stored set unchanged.
func (s *SQLiteStore) Register(ctx context.Context, target string) error {
	res, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO unsubscribed (mailto_link) VALUES (?)", target)
	if err != nil {
		return fmt.Errorf("failed to register target: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrAlreadyRegistered
	}
	return nil
}

// List returns every registered target in insertion order.
func (s *SQLiteStore) List(ctx context.Context) ([]Target, error) {
	var targets []Target
	if err := s.db.SelectContext(ctx, &targets, "SELECT id, mailto_link FROM unsubscribed ORDER BY id"); err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	return targets, nil
}

// Count returns the number of registered targets.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM unsubscribed"); err != nil {
		return 0, fmt.Errorf("failed to count targets: %w", err)
	}
	return n, nil
}
