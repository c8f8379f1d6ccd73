package version

import (
	"os"
	"testing"
	"time"
)

func TestIsCacheValid(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name           string
		entry          *CacheEntry
		currentVersion string
		want           bool
	}{
		{
			name:           "nil entry",
			entry:          nil,
			currentVersion: "v1.0.0",
			want:           false,
		},
		{
			name: "valid cache - same version, recent",
			entry: &CacheEntry{
				LatestVersion:  "v1.1.0",
				CurrentVersion: "v1.0.0",
				CheckedAt:      now,
				HasUpdate:      true,
			},
			currentVersion: "v1.0.0",
			want:           true,
		},
		{
			name: "expired cache",
			entry: &CacheEntry{
				LatestVersion:  "v1.1.0",
				CurrentVersion: "v1.0.0",
				CheckedAt:      now.Add(-7 * time.Hour),
				HasUpdate:      true,
			},
			currentVersion: "v1.0.0",
			want:           false,
		},
		{
			name: "version mismatch after upgrade",
			entry: &CacheEntry{
				LatestVersion:  "v1.1.0",
				CurrentVersion: "v1.0.0",
				CheckedAt:      now,
				HasUpdate:      true,
			},
			currentVersion: "v1.1.0",
			want:           false,
		},
		{
			name: "just under TTL",
			entry: &CacheEntry{
				LatestVersion:  "v1.1.0",
				CurrentVersion: "v1.0.0",
				CheckedAt:      now.Add(-6*time.Hour + time.Minute),
				HasUpdate:      true,
			},
			currentVersion: "v1.0.0",
			want:           true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCacheValid(tt.entry, tt.currentVersion); got != tt.want {
				t.Errorf("IsCacheValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSaveAndLoadCache(t *testing.T) {
	t.Setenv("SD_CONFIG_DIR", t.TempDir())

	entry := &CacheEntry{
		LatestVersion:  "v1.2.3",
		CurrentVersion: "v1.0.0",
		CheckedAt:      time.Now().Round(time.Second),
		HasUpdate:      true,
	}
	if err := SaveCache(entry); err != nil {
		t.Fatalf("SaveCache() error = %v", err)
	}

	loaded, err := LoadCache()
	if err != nil {
		t.Fatalf("LoadCache() error = %v", err)
	}
	if loaded == nil {
		t.Fatal("LoadCache() returned nil for saved entry")
	}
	if loaded.LatestVersion != entry.LatestVersion {
		t.Errorf("LatestVersion = %q, want %q", loaded.LatestVersion, entry.LatestVersion)
	}
	if !loaded.CheckedAt.Equal(entry.CheckedAt) {
		t.Errorf("CheckedAt = %v, want %v", loaded.CheckedAt, entry.CheckedAt)
	}
	if !loaded.HasUpdate {
		t.Error("HasUpdate lost in round trip")
	}
}

func TestLoadCacheMissingFile(t *testing.T) {
	t.Setenv("SD_CONFIG_DIR", t.TempDir())

	entry, err := LoadCache()
	if err != nil {
		t.Fatalf("LoadCache() error = %v", err)
	}
	if entry != nil {
		t.Errorf("expected nil entry for missing cache, got %+v", entry)
	}
}

func TestLoadCacheCorrupted(t *testing.T) {
	t.Setenv("SD_CONFIG_DIR", t.TempDir())

	if err := os.WriteFile(cachePath(), []byte(`{invalid json}`), 0644); err != nil {
		t.Fatalf("write corrupted cache: %v", err)
	}
	if _, err := LoadCache(); err == nil {
		t.Error("LoadCache() should fail on corrupted JSON")
	}
}
