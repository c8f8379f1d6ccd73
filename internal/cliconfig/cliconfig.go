// Package cliconfig stores sd settings at ~/.config/safedrain: config.json
// for server settings and auth.json for credentials. Environment variables
// override both.
package cliconfig

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SyncSettings holds reconcile-related settings.
type SyncSettings struct {
	Interval string `json:"interval,omitempty"` // duration string, default "5m"
	Disabled bool   `json:"disabled,omitempty"`
}

// Config is the global sd config stored at ~/.config/safedrain/config.json.
type Config struct {
	ServerURL string       `json:"server_url"`
	Sync      SyncSettings `json:"sync"`
}

// AuthCredentials stores authentication state at ~/.config/safedrain/auth.json.
type AuthCredentials struct {
	APIKey   string `json:"api_key"`
	UserID   string `json:"user_id"`
	Email    string `json:"email,omitempty"`
	DeviceID string `json:"device_id"`
}

const (
	defaultServerURL    = "http://localhost:8080"
	defaultSyncInterval = 5 * time.Minute
)

// ConfigDir returns ~/.config/safedrain, creating it if necessary. The
// SD_CONFIG_DIR override exists for tests.
func ConfigDir() (string, error) {
	if v := os.Getenv("SD_CONFIG_DIR"); v != "" {
		if err := os.MkdirAll(v, 0755); err != nil {
			return "", fmt.Errorf("create config dir: %w", err)
		}
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "safedrain")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// LoadConfig reads the global config, returning defaults when missing.
func LoadConfig() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig writes the global config.
func SaveConfig(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// LoadAuth reads credentials; (nil, nil) when not logged in.
func LoadAuth() (*AuthCredentials, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "auth.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var creds AuthCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// SaveAuth writes credentials with owner-only permissions.
func SaveAuth(creds *AuthCredentials) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "auth.json"), data, 0600)
}

// ClearAuth removes auth.json.
func ClearAuth() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, "auth.json"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// ServerURL returns the document server URL.
// Priority: SD_SERVER_URL env > config.json > default.
func ServerURL() string {
	if v := os.Getenv("SD_SERVER_URL"); v != "" {
		return v
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.ServerURL != "" {
		return cfg.ServerURL
	}
	return defaultServerURL
}

// APIKey returns the API key.
// Priority: SD_AUTH_KEY env > auth.json.
func APIKey() string {
	if v := os.Getenv("SD_AUTH_KEY"); v != "" {
		return v
	}
	creds, err := LoadAuth()
	if err == nil && creds != nil {
		return creds.APIKey
	}
	return ""
}

// UserID returns the logged-in user ID, empty when not logged in.
func UserID() string {
	if v := os.Getenv("SD_USER_ID"); v != "" {
		return v
	}
	creds, err := LoadAuth()
	if err == nil && creds != nil {
		return creds.UserID
	}
	return ""
}

// IsAuthenticated reports whether an API key is available.
func IsAuthenticated() bool {
	return APIKey() != ""
}

// SyncInterval returns the background reconcile interval.
func SyncInterval() time.Duration {
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.Interval != "" {
		if d, err := time.ParseDuration(cfg.Sync.Interval); err == nil && d > 0 {
			return d
		}
	}
	return defaultSyncInterval
}

// DeviceID returns the stored device ID, generating and persisting one on
// first use.
func DeviceID() (string, error) {
	creds, err := LoadAuth()
	if err != nil {
		return "", err
	}
	if creds != nil && creds.DeviceID != "" {
		return creds.DeviceID, nil
	}

	id, err := GenerateDeviceID()
	if err != nil {
		return "", err
	}
	if creds == nil {
		creds = &AuthCredentials{}
	}
	creds.DeviceID = id
	if err := SaveAuth(creds); err != nil {
		return "", err
	}
	return id, nil
}

// GenerateDeviceID creates a new random device ID (16 bytes hex).
func GenerateDeviceID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
