package version

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/safedrain/sd/internal/cliconfig"
)

// cacheTTL is how long a check result is trusted before re-fetching.
const cacheTTL = 6 * time.Hour

// CacheEntry is a cached update-check result.
type CacheEntry struct {
	LatestVersion  string    `json:"latestVersion"`
	CurrentVersion string    `json:"currentVersion"`
	CheckedAt      time.Time `json:"checkedAt"`
	HasUpdate      bool      `json:"hasUpdate"`
}

// cachePath returns the cache file location, or "" when the config dir is
// unavailable.
func cachePath() string {
	dir, err := cliconfig.ConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "version_check.json")
}

// LoadCache reads the cached check result; (nil, nil) when absent.
func LoadCache() (*CacheEntry, error) {
	path := cachePath()
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// SaveCache writes the check result to the cache file.
func SaveCache(entry *CacheEntry) error {
	path := cachePath()
	if path == "" {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// IsCacheValid reports whether a cached entry can answer a check for
// currentVersion. A version mismatch (the binary was upgraded or downgraded
// since the check) invalidates the entry, as does age past the TTL.
func IsCacheValid(entry *CacheEntry, currentVersion string) bool {
	if entry == nil {
		return false
	}
	if entry.CurrentVersion != currentVersion {
		return false
	}
	return time.Since(entry.CheckedAt) < cacheTTL
}
