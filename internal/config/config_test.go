package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/taskmon.db")
	if cfg.Database.Path != "/tmp/taskmon.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if !cfg.Lifecycle.EnforceStartDependencies {
		t.Fatal("expected start dependencies enforced by default")
	}
	if cfg.Server.APIEndpoint != "/api/v1" || cfg.Server.MCPEndpoint != "/mcp" || cfg.Server.MetricsEndpoint != "/metrics" {
		t.Fatalf("unexpected server endpoints %#v", cfg.Server)
	}
	if cfg.Cache.RedisURL != "" {
		t.Fatalf("expected cache disabled by default, got %q", cfg.Cache.RedisURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	timeout, err := cfg.DatabaseTimeout()
	if err != nil || timeout != 5*time.Second {
		t.Fatalf("DatabaseTimeout() = %v, %v", timeout, err)
	}
	ttl, err := cfg.TokenTTL()
	if err != nil || ttl != 12*time.Hour {
		t.Fatalf("TokenTTL() = %v, %v", ttl, err)
	}
	loc, err := cfg.Location()
	if err != nil || loc != time.Local {
		t.Fatalf("Location() = %v, %v", loc, err)
	}
	if cfg.LogLevel() != log.InfoLevel {
		t.Fatalf("LogLevel() = %v", cfg.LogLevel())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/taskmon.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != defaults.Database.Path {
		t.Fatalf("expected default db path, got %q", cfg.Database.Path)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[database]
path = "/custom/taskmon.db"
timeout = "2s"

[logging]
level = "debug"

[logging.dev_file]
enabled = true
dir = "/tmp/taskmon-logs"

[server]
http_bind = "0.0.0.0:9090"

[lifecycle]
enforce_start_dependencies = false
late_grace = "1h"

[metrics]
productivity_window_days = 7
timezone = "UTC"

[cache]
redis_url = "redis://localhost:6379/0"
ttl = "1m"
`)

	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/custom/taskmon.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.LogLevel() != log.DebugLevel || !cfg.Logging.DevFile.Enabled {
		t.Fatalf("unexpected logging config %#v", cfg.Logging)
	}
	if cfg.Server.HTTPBind != "0.0.0.0:9090" || cfg.Server.APIEndpoint != "/api/v1" {
		t.Fatalf("expected bind override with default endpoints, got %#v", cfg.Server)
	}
	if cfg.Lifecycle.EnforceStartDependencies {
		t.Fatal("expected start dependencies disabled from config override")
	}
	grace, err := cfg.LateGrace()
	if err != nil || grace != time.Hour {
		t.Fatalf("LateGrace() = %v, %v", grace, err)
	}
	if cfg.Metrics.ProductivityWindowDays != 7 {
		t.Fatalf("unexpected window %d", cfg.Metrics.ProductivityWindowDays)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "UTC" {
		t.Fatalf("Location() = %v, %v", loc, err)
	}
	cacheTTL, err := cfg.CacheTTL()
	if err != nil || cacheTTL != time.Minute {
		t.Fatalf("CacheTTL() = %v, %v", cacheTTL, err)
	}
	if cfg.Cache.KeyPrefix != "taskmon:" {
		t.Fatalf("expected default key prefix, got %q", cfg.Cache.KeyPrefix)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]string{
		"timeout":   "[database]\ntimeout = \"soon\"\n",
		"level":     "[logging]\nlevel = \"loud\"\n",
		"endpoint":  "[server]\napi_endpoint = \"api\"\n",
		"ttl":       "[auth]\ntoken_ttl = \"0s\"\n",
		"grace":     "[lifecycle]\nlate_grace = \"-1h\"\n",
		"window":    "[metrics]\nproductivity_window_days = 0\n",
		"timezone":  "[metrics]\ntimezone = \"Mars/Olympus\"\n",
		"cache ttl": "[cache]\nttl = \"fast\"\n",
		"toml":      "[database\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content), Default("/tmp/default.db"))
			if err == nil {
				t.Fatalf("expected error for %s", strings.TrimSpace(content))
			}
		})
	}
}

func TestValidateRequiresDatabasePath(t *testing.T) {
	if err := Default("  ").Validate(); err == nil {
		t.Fatal("expected error for blank database path")
	}
}

func TestEnsureConfigDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "config.toml")
	if err := EnsureConfigDir(target); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		t.Fatalf("expected dir to exist, stat error %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}
