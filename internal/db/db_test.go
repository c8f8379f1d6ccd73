package db

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInitialize(t *testing.T) {
	dir := t.TempDir()

	s, err := Initialize(dir)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer s.Close()

	dbPath := filepath.Join(dir, ".safedrain", "queue.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("queue database file not created")
	}
}

func TestOpenMissingDatabase(t *testing.T) {
	_, err := Open(t.TempDir())
	if err == nil {
		t.Fatal("expected error opening missing database")
	}
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestOpenExisting(t *testing.T) {
	dir := t.TempDir()

	s, err := Initialize(dir)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if _, err := s.Enqueue(OpUpdateReport, &UpdateReportPayload{ReportID: "r1", Patch: map[string]any{"status": "resolved"}}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	s.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s2.Close()

	count, err := s2.CountUnsynced()
	if err != nil {
		t.Fatalf("CountUnsynced failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count after reopen: got %d, want 1", count)
	}
}

func TestSchemaVersionRecorded(t *testing.T) {
	s := setupStore(t)

	v, err := s.schemaVersion()
	if err != nil {
		t.Fatalf("schemaVersion failed: %v", err)
	}
	if v != SchemaVersion {
		t.Errorf("schema version: got %d, want %d", v, SchemaVersion)
	}
}

func TestMigrationFromVersion1(t *testing.T) {
	dir := t.TempDir()

	s, err := Initialize(dir)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	// Rebuild the table without retry columns to simulate a version-1 database.
	stmts := []string{
		`DROP TABLE pending_operations`,
		`CREATE TABLE pending_operations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			payload JSON NOT NULL,
			enqueued_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			synced INTEGER NOT NULL DEFAULT 0,
			synced_at DATETIME
		)`,
		`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', '1')`,
	}
	for _, stmt := range stmts {
		if _, err := s.conn.Exec(stmt); err != nil {
			t.Fatalf("downgrade schema: %v", err)
		}
	}
	s.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("Open after downgrade failed: %v", err)
	}
	defer s2.Close()

	exists, err := s2.columnExists("pending_operations", "attempts")
	if err != nil {
		t.Fatalf("columnExists failed: %v", err)
	}
	if !exists {
		t.Error("migration did not add attempts column")
	}

	v, err := s2.schemaVersion()
	if err != nil {
		t.Fatalf("schemaVersion failed: %v", err)
	}
	if v != SchemaVersion {
		t.Errorf("schema version after migration: got %d, want %d", v, SchemaVersion)
	}
}
