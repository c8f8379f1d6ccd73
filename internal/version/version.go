// Package version checks for newer sd releases on GitHub and compares
// semantic version tags.
package version

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const releaseEndpoint = "https://api.github.com/repos/safedrain/sd/releases/latest"

// CheckResult is the outcome of one update check.
type CheckResult struct {
	CurrentVersion string
	LatestVersion  string
	UpdateURL      string
	HasUpdate      bool
	Error          error
}

type release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Check asks GitHub for the latest release tag and compares it against the
// running version. Development builds are never checked.
func Check(currentVersion string) CheckResult {
	res := CheckResult{CurrentVersion: currentVersion}
	if IsDevelopmentVersion(currentVersion) {
		return res
	}

	rel, err := fetchLatest()
	if err != nil {
		res.Error = err
		return res
	}

	res.LatestVersion = rel.TagName
	res.UpdateURL = rel.HTMLURL
	res.HasUpdate = isNewer(rel.TagName, currentVersion)
	return res
}

func fetchLatest() (*release, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(releaseEndpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github api: %s", resp.Status)
	}
	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

// CheckCached returns the cached check result when fresh, otherwise fetches
// from GitHub and refreshes the cache. Network errors are never cached.
func CheckCached(currentVersion string) CheckResult {
	if cached, err := LoadCache(); err == nil && IsCacheValid(cached, currentVersion) {
		return CheckResult{
			CurrentVersion: currentVersion,
			LatestVersion:  cached.LatestVersion,
			HasUpdate:      cached.HasUpdate,
		}
	}

	result := Check(currentVersion)
	if result.Error == nil {
		_ = SaveCache(&CacheEntry{
			LatestVersion:  result.LatestVersion,
			CurrentVersion: currentVersion,
			CheckedAt:      time.Now(),
			HasUpdate:      result.HasUpdate,
		})
	}
	return result
}

// IsDevelopmentVersion reports whether v is an unreleased build, such as the
// default ldflags value or a VCS-stamped devel version.
func IsDevelopmentVersion(v string) bool {
	switch v {
	case "", "dev", "devel", "unknown":
		return true
	}
	return strings.HasPrefix(v, "devel+")
}

// releaseTag accepts release tags like v1.2.3 or 1.2.3-rc.1. Anything else,
// including shell metacharacters, is rejected so the tag can be spliced into
// an install command.
var releaseTag = regexp.MustCompile(`^v?[0-9]+\.[0-9]+\.[0-9]+(-[0-9A-Za-z]+([.-][0-9A-Za-z]+)*)?$`)

// UpdateCommand returns the go install invocation for a release tag, or ""
// when the tag is not a well-formed version.
func UpdateCommand(tag string) string {
	if !releaseTag.MatchString(tag) {
		return ""
	}
	return `go install -ldflags "-X main.Version=` + tag + `" github.com/safedrain/sd@` + tag
}
