package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Environment        string
	DataDir            string
	DBPath             string
	SessionPath        string
	InventoryImportDir string

	APIBaseURL     string
	APIToken       string
	PushWSURL      string
	HTTPTimeoutSec int

	SyncIntervalSec   int
	SyncEagerDelaySec int
	SyncMaxAttempts   int

	RefreshCron       string
	ToastDisplaySec   int
	LoadingTimeoutSec int
}

// fileConfig is the optional TOML overlay. Environment variables win
// over file values; the file only fills fields the environment left
// unset.
type fileConfig struct {
	Environment        string `toml:"environment"`
	DataDir            string `toml:"data_dir"`
	APIBaseURL         string `toml:"api_base_url"`
	APIToken           string `toml:"api_token"`
	PushWSURL          string `toml:"push_ws_url"`
	InventoryImportDir string `toml:"inventory_import_dir"`
	RefreshCron        string `toml:"refresh_cron"`
	SyncIntervalSec    int    `toml:"sync_interval_seconds"`
}

func FromEnv() Config {
	cfg := fromOverlay(loadOverlay(strings.TrimSpace(os.Getenv("MARKET_RUNTIME_CONFIG_FILE"))))

	dataDir := stringOrDefault("MARKET_RUNTIME_DATA_DIR", cfg.DataDir)
	return Config{
		Environment:        stringOrDefault("MARKET_RUNTIME_ENV", cfg.Environment),
		DataDir:            dataDir,
		DBPath:             stringOrDefault("MARKET_RUNTIME_DB_PATH", filepath.Join(dataDir, "market.sqlite")),
		SessionPath:        stringOrDefault("MARKET_RUNTIME_SESSION_PATH", filepath.Join(dataDir, "session", "selected_vehicle.json")),
		InventoryImportDir: stringOrDefault("MARKET_RUNTIME_INVENTORY_IMPORT_DIR", cfg.InventoryImportDir),
		APIBaseURL:         stringOrDefault("MARKET_RUNTIME_API_BASE_URL", cfg.APIBaseURL),
		APIToken:           stringOrDefault("MARKET_RUNTIME_API_TOKEN", cfg.APIToken),
		PushWSURL:          stringOrDefault("MARKET_RUNTIME_PUSH_WS_URL", cfg.PushWSURL),
		HTTPTimeoutSec:     intOrDefault("MARKET_RUNTIME_HTTP_TIMEOUT_SECONDS", 15),
		SyncIntervalSec:    intOrDefault("MARKET_RUNTIME_SYNC_INTERVAL_SECONDS", cfg.SyncIntervalSec),
		SyncEagerDelaySec:  intOrDefault("MARKET_RUNTIME_SYNC_EAGER_DELAY_SECONDS", 5),
		SyncMaxAttempts:    intOrZeroDefault("MARKET_RUNTIME_SYNC_MAX_ATTEMPTS", 0),
		RefreshCron:        stringOrDefault("MARKET_RUNTIME_REFRESH_CRON", cfg.RefreshCron),
		ToastDisplaySec:    intOrDefault("MARKET_RUNTIME_TOAST_DISPLAY_SECONDS", 5),
		LoadingTimeoutSec:  intOrDefault("MARKET_RUNTIME_LOADING_TIMEOUT_SECONDS", 20),
	}
}

func loadOverlay(path string) fileConfig {
	raw := fileConfig{}
	if path == "" {
		return raw
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return raw
	}
	// A broken overlay file must not take the client down; environment
	// defaults still apply.
	_ = toml.Unmarshal(content, &raw)
	return raw
}

func fromOverlay(raw fileConfig) fileConfig {
	if strings.TrimSpace(raw.Environment) == "" {
		raw.Environment = "development"
	}
	if strings.TrimSpace(raw.DataDir) == "" {
		raw.DataDir = defaultDataDir()
	}
	if strings.TrimSpace(raw.APIBaseURL) == "" {
		raw.APIBaseURL = "https://api.gearhaus.localhost"
	}
	if strings.TrimSpace(raw.InventoryImportDir) == "" {
		raw.InventoryImportDir = filepath.Join(raw.DataDir, "imports")
	}
	if strings.TrimSpace(raw.RefreshCron) == "" {
		raw.RefreshCron = "@every 5m"
	}
	if raw.SyncIntervalSec < 1 {
		raw.SyncIntervalSec = 30
	}
	return raw
}

// Validate rejects configurations the runtime cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return errors.New("api base url is required")
	}
	if c.SyncIntervalSec < 1 {
		return fmt.Errorf("sync interval must be at least 1 second, got %d", c.SyncIntervalSec)
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return "/data/market-runtime"
	}
	return filepath.Join(home, ".local", "share", "market-runtime")
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

// intOrZeroDefault allows an explicit zero, used where zero means
// "disabled" rather than "unset".
func intOrZeroDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
