// ============================================================================
// appstore - Terminal App Store for Python applications
// ============================================================================
//
// Package:     history
// Description: Persistent record of finished install and uninstall commands
// Author:      Mike Stoffels
// Created:     2026-10-12
// License:     MIT
// ============================================================================

package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Entry is one finished command
type Entry struct {
	ID          int64
	OperationID string
	Kind        string
	Package     string
	Command     string
	ExitCode    int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Succeeded reports a zero exit code
func (e Entry) Succeeded() bool {
	return e.ExitCode == 0
}

// Duration returns how long the command ran
func (e Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Store defines the interface for history persistence
type Store interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Prune(ctx context.Context, keep int) (int64, error)
	Close() error
}

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates or opens the history database at path and migrates it
func Open(path string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Open database with WAL mode
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations applies the embedded schema. The migrate instance is not
// closed because that would close db as well.
func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return err
	}

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

// Record stores a finished command
func (s *SQLiteStore) Record(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operations (operation_id, kind, package, command, exit_code, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.OperationID, e.Kind, e.Package, e.Command, e.ExitCode,
		e.StartedAt.UnixNano(), e.FinishedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record operation: %w", err)
	}
	return nil
}

// Recent returns the newest entries first
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operation_id, kind, package, command, exit_code, started_at, finished_at
		FROM operations
		ORDER BY finished_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                 Entry
			started, finished int64
		)
		if err := rows.Scan(&e.ID, &e.OperationID, &e.Kind, &e.Package, &e.Command, &e.ExitCode, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		e.StartedAt = time.Unix(0, started)
		e.FinishedAt = time.Unix(0, finished)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune keeps the newest keep entries and deletes the rest
func (s *SQLiteStore) Prune(ctx context.Context, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM operations
		WHERE id NOT IN (
			SELECT id FROM operations ORDER BY finished_at DESC, id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// MemoryStore implements Store in memory
type MemoryStore struct {
	entries []Entry
	nextID  int64
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Record stores a finished command
func (s *MemoryStore) Record(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = s.nextID
	s.nextID++
	s.entries = append(s.entries, e)
	return nil
}

// Recent returns the newest entries first
func (s *MemoryStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	sortNewestFirst(out)

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Prune keeps the newest keep entries and deletes the rest
func (s *MemoryStore) Prune(ctx context.Context, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep < 0 {
		keep = 0
	}
	if len(s.entries) <= keep {
		return 0, nil
	}

	sortNewestFirst(s.entries)
	removed := int64(len(s.entries) - keep)
	s.entries = s.entries[:keep]
	return removed, nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

func sortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].FinishedAt.Equal(entries[j].FinishedAt) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].FinishedAt.After(entries[j].FinishedAt)
	})
}
