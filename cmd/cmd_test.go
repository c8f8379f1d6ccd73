package cmd

import (
	"testing"

	"github.com/safedrain/sd/internal/db"
)

// TestCommandRegistration tests that every command is attached to the root
// with its group.
func TestCommandRegistration(t *testing.T) {
	wantGroups := map[string]string{
		"report": "core",
		"update": "core",
		"list":   "core",
		"show":   "core",
		"sync":   "sync",
		"status": "sync",
		"queue":  "sync",
		"watch":  "sync",
		"init":   "system",
		"config": "system",
		"doctor": "system",
	}

	found := map[string]string{}
	for _, c := range rootCmd.Commands() {
		found[c.Name()] = c.GroupID
	}

	for name, group := range wantGroups {
		got, ok := found[name]
		if !ok {
			t.Errorf("command %q not registered", name)
			continue
		}
		if got != group {
			t.Errorf("command %q in group %q, want %q", name, got, group)
		}
	}
}

// TestBaseDirOverride tests the SD_BASE_DIR escape hatch used by tests and
// scripts.
func TestBaseDirOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SD_BASE_DIR", dir)

	initBaseDir()
	if getBaseDir() != dir {
		t.Errorf("getBaseDir() = %q, want %q", getBaseDir(), dir)
	}
}

// TestOpenStoreOptionalDegrades tests that a missing queue degrades to nil
// instead of failing.
func TestOpenStoreOptionalDegrades(t *testing.T) {
	t.Setenv("SD_BASE_DIR", t.TempDir())
	initBaseDir()

	if store := openStoreOptional(); store != nil {
		store.Close()
		t.Error("expected nil store for uninitialized base dir")
	}
}

// TestOpSummary tests the one-line rendering of queued operations.
func TestOpSummary(t *testing.T) {
	t.Setenv("SD_BASE_DIR", t.TempDir())
	initBaseDir()

	store, err := db.Initialize(getBaseDir())
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer store.Close()

	if _, err := store.Enqueue(db.OpUpdateReport, &db.UpdateReportPayload{
		ReportID: "r-9",
		Patch:    map[string]any{"status": "resolved"},
	}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	ops, err := store.ListUnsynced()
	if err != nil {
		t.Fatalf("ListUnsynced failed: %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(ops))
	}
	if got := opSummary(ops[0]); got != "update r-9" {
		t.Errorf("opSummary = %q", got)
	}
}

// TestPendingReportsMaterializesPlaceholders tests that queued creates show
// up as offline_ reports.
func TestPendingReportsMaterializesPlaceholders(t *testing.T) {
	store, err := db.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer store.Close()

	payload := db.CreateReportPayload{}
	payload.Report.Title = "standing water"
	if _, err := store.Enqueue(db.OpCreateReport, &payload); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := store.Enqueue(db.OpUpdateReport, &db.UpdateReportPayload{
		ReportID: "r-1",
		Patch:    map[string]any{"status": "in_progress"},
	}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	reports, err := pendingReports(store)
	if err != nil {
		t.Fatalf("pendingReports failed: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 placeholder report, got %d", len(reports))
	}
	if reports[0].Title != "standing water" {
		t.Errorf("title = %q", reports[0].Title)
	}
	wantID := "offline_"
	if got := reports[0].ID; len(got) <= len(wantID) || got[:len(wantID)] != wantID {
		t.Errorf("ID = %q, want offline_ prefix", got)
	}
}
