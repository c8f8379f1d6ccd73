// Package db is the durable pending-operation store: a local SQLite database
// holding writes that could not be committed remotely. Records are owned by
// this store until the sync reconciler marks them synced.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	storeDir = ".safedrain"
	dbFile   = ".safedrain/queue.db"
)

// ErrStorageUnavailable indicates the local store cannot be opened (missing,
// quota, permissions). Callers treat this as degraded mode: submissions
// proceed online-only with no offline fallback.
var ErrStorageUnavailable = errors.New("local storage unavailable")

// Store wraps the queue database connection.
type Store struct {
	conn    *sql.DB
	baseDir string
}

// Open opens an existing queue database and runs any pending migrations.
func Open(baseDir string) (*Store, error) {
	dbPath := filepath.Join(baseDir, dbFile)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: queue database not found (run 'sd init' first)", ErrStorageUnavailable)
	}

	conn, err := openConn(dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{conn: conn, baseDir: baseDir}
	if err := s.runMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Initialize creates the queue database and applies the schema.
func Initialize(baseDir string) (*Store, error) {
	dbPath := filepath.Join(baseDir, dbFile)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("%w: create store dir: %v", ErrStorageUnavailable, err)
	}

	conn, err := openConn(dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &Store{conn: conn, baseDir: baseDir}
	if err := s.runMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func openConn(dbPath string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	// WAL lets status reads proceed while an enqueue or reconcile writes.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: enable WAL mode: %v", ErrStorageUnavailable, err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: set busy timeout: %v", ErrStorageUnavailable, err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")

	return conn, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.conn.Close()
}

// BaseDir returns the base directory the store was opened under.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// withWriteLock executes fn while holding an exclusive cross-process write
// lock, so two sd processes cannot interleave queue mutations.
func (s *Store) withWriteLock(fn func() error) error {
	locker := newWriteLocker(s.baseDir)
	if err := locker.acquire(defaultLockTimeout); err != nil {
		return err
	}
	defer locker.release()
	return fn()
}
