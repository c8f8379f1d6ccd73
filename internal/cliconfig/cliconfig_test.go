package cliconfig

import (
	"testing"
	"time"
)

func setupConfigDir(t *testing.T) {
	t.Helper()
	t.Setenv("SD_CONFIG_DIR", t.TempDir())
	t.Setenv("SD_SERVER_URL", "")
	t.Setenv("SD_AUTH_KEY", "")
	t.Setenv("SD_USER_ID", "")
}

func TestConfigRoundTrip(t *testing.T) {
	setupConfigDir(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig on empty dir failed: %v", err)
	}
	if cfg.ServerURL != "" {
		t.Errorf("fresh config not empty: %+v", cfg)
	}

	cfg.ServerURL = "https://drains.example"
	cfg.Sync.Interval = "2m"
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	got, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got.ServerURL != "https://drains.example" {
		t.Errorf("server url: %q", got.ServerURL)
	}
	if SyncInterval() != 2*time.Minute {
		t.Errorf("sync interval: %v", SyncInterval())
	}
}

func TestServerURLPriority(t *testing.T) {
	setupConfigDir(t)

	if got := ServerURL(); got != defaultServerURL {
		t.Errorf("default url: %q", got)
	}

	if err := SaveConfig(&Config{ServerURL: "https://from-config.example"}); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	if got := ServerURL(); got != "https://from-config.example" {
		t.Errorf("config url: %q", got)
	}

	t.Setenv("SD_SERVER_URL", "https://from-env.example")
	if got := ServerURL(); got != "https://from-env.example" {
		t.Errorf("env url: %q", got)
	}
}

func TestAuthRoundTrip(t *testing.T) {
	setupConfigDir(t)

	if IsAuthenticated() {
		t.Error("authenticated with no credentials")
	}

	if err := SaveAuth(&AuthCredentials{APIKey: "k1", UserID: "u1"}); err != nil {
		t.Fatalf("SaveAuth failed: %v", err)
	}
	if !IsAuthenticated() || APIKey() != "k1" || UserID() != "u1" {
		t.Errorf("credentials not loaded: key=%q user=%q", APIKey(), UserID())
	}

	t.Setenv("SD_AUTH_KEY", "env-key")
	if APIKey() != "env-key" {
		t.Errorf("env key priority: %q", APIKey())
	}

	if err := ClearAuth(); err != nil {
		t.Fatalf("ClearAuth failed: %v", err)
	}
	t.Setenv("SD_AUTH_KEY", "")
	if IsAuthenticated() {
		t.Error("still authenticated after ClearAuth")
	}
	if err := ClearAuth(); err != nil {
		t.Errorf("second ClearAuth should be a no-op: %v", err)
	}
}

func TestDeviceIDPersists(t *testing.T) {
	setupConfigDir(t)

	first, err := DeviceID()
	if err != nil {
		t.Fatalf("DeviceID failed: %v", err)
	}
	if len(first) != 32 {
		t.Errorf("device id length: %d", len(first))
	}

	second, err := DeviceID()
	if err != nil {
		t.Fatalf("DeviceID failed: %v", err)
	}
	if first != second {
		t.Errorf("device id changed between calls: %q != %q", first, second)
	}
}
