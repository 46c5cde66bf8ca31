package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("MARKET_RUNTIME_CONFIG_FILE", "")
	t.Setenv("MARKET_RUNTIME_DATA_DIR", "/tmp/market-test")

	cfg := FromEnv()
	if cfg.Environment != "development" {
		t.Fatalf("expected development environment, got %s", cfg.Environment)
	}
	if cfg.DBPath != filepath.Join("/tmp/market-test", "market.sqlite") {
		t.Fatalf("unexpected db path: %s", cfg.DBPath)
	}
	if cfg.SyncIntervalSec != 30 {
		t.Fatalf("expected default 30s sync interval, got %d", cfg.SyncIntervalSec)
	}
	if cfg.SyncMaxAttempts != 0 {
		t.Fatalf("expected retry ceiling disabled by default, got %d", cfg.SyncMaxAttempts)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MARKET_RUNTIME_API_BASE_URL", "https://api.example.test")
	t.Setenv("MARKET_RUNTIME_SYNC_INTERVAL_SECONDS", "10")
	t.Setenv("MARKET_RUNTIME_SYNC_MAX_ATTEMPTS", "7")

	cfg := FromEnv()
	if cfg.APIBaseURL != "https://api.example.test" {
		t.Fatalf("unexpected api base url: %s", cfg.APIBaseURL)
	}
	if cfg.SyncIntervalSec != 10 {
		t.Fatalf("expected 10s sync interval, got %d", cfg.SyncIntervalSec)
	}
	if cfg.SyncMaxAttempts != 7 {
		t.Fatalf("expected retry ceiling 7, got %d", cfg.SyncMaxAttempts)
	}
}

func TestConfigFileOverlay(t *testing.T) {
	dir := t.TempDir()
	overlay := filepath.Join(dir, "market.toml")
	content := "api_base_url = \"https://file.example.test\"\nsync_interval_seconds = 45\nrefresh_cron = \"@every 1m\"\n"
	if err := os.WriteFile(overlay, []byte(content), 0o644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	t.Setenv("MARKET_RUNTIME_CONFIG_FILE", overlay)

	cfg := FromEnv()
	if cfg.APIBaseURL != "https://file.example.test" {
		t.Fatalf("expected overlay api base url, got %s", cfg.APIBaseURL)
	}
	if cfg.SyncIntervalSec != 45 {
		t.Fatalf("expected overlay sync interval, got %d", cfg.SyncIntervalSec)
	}
	if cfg.RefreshCron != "@every 1m" {
		t.Fatalf("expected overlay refresh cron, got %s", cfg.RefreshCron)
	}
}

func TestEnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	overlay := filepath.Join(dir, "market.toml")
	if err := os.WriteFile(overlay, []byte("api_base_url = \"https://file.example.test\"\n"), 0o644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	t.Setenv("MARKET_RUNTIME_CONFIG_FILE", overlay)
	t.Setenv("MARKET_RUNTIME_API_BASE_URL", "https://env.example.test")

	cfg := FromEnv()
	if cfg.APIBaseURL != "https://env.example.test" {
		t.Fatalf("expected env to win, got %s", cfg.APIBaseURL)
	}
}

func TestBrokenOverlayFallsBack(t *testing.T) {
	dir := t.TempDir()
	overlay := filepath.Join(dir, "market.toml")
	if err := os.WriteFile(overlay, []byte("not valid toml ==="), 0o644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	t.Setenv("MARKET_RUNTIME_CONFIG_FILE", overlay)

	cfg := FromEnv()
	if cfg.APIBaseURL == "" {
		t.Fatal("expected default api base url despite broken overlay")
	}
	if cfg.SyncIntervalSec != 30 {
		t.Fatalf("expected default sync interval, got %d", cfg.SyncIntervalSec)
	}
}
