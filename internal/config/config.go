package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"
)

// Config is the root of config.toml.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Logging   LoggingConfig   `toml:"logging"`
	Server    ServerConfig    `toml:"server"`
	Auth      AuthConfig      `toml:"auth"`
	Lifecycle LifecycleConfig `toml:"lifecycle"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Cache     CacheConfig     `toml:"cache"`
}

// DatabaseConfig holds configuration for database.
type DatabaseConfig struct {
	Path    string `toml:"path"`
	Timeout string `toml:"timeout"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

// DevFileConfig controls the local logfmt sink used in dev mode.
type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// ServerConfig holds configuration for server.
type ServerConfig struct {
	HTTPBind        string `toml:"http_bind"`
	APIEndpoint     string `toml:"api_endpoint"`
	MCPEndpoint     string `toml:"mcp_endpoint"`
	MetricsEndpoint string `toml:"metrics_endpoint"`
}

// AuthConfig holds configuration for auth.
type AuthConfig struct {
	// SecretEnv names the environment variable holding the token signing secret.
	SecretEnv string `toml:"secret_env"`
	TokenTTL  string `toml:"token_ttl"`
}

// LifecycleConfig holds configuration for lifecycle.
type LifecycleConfig struct {
	EnforceStartDependencies bool   `toml:"enforce_start_dependencies"`
	LateGrace                string `toml:"late_grace"`
}

// MetricsConfig holds configuration for metrics.
type MetricsConfig struct {
	ProductivityWindowDays int    `toml:"productivity_window_days"`
	Timezone               string `toml:"timezone"`
}

// CacheConfig holds configuration for cache. An empty RedisURL disables caching.
type CacheConfig struct {
	RedisURL  string `toml:"redis_url"`
	TTL       string `toml:"ttl"`
	KeyPrefix string `toml:"key_prefix"`
}

// Default returns the built-in configuration for dbPath.
func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path:    dbPath,
			Timeout: "5s",
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: false,
				Dir:     ".taskmon/log",
			},
		},
		Server: ServerConfig{
			HTTPBind:        "127.0.0.1:8080",
			APIEndpoint:     "/api/v1",
			MCPEndpoint:     "/mcp",
			MetricsEndpoint: "/metrics",
		},
		Auth: AuthConfig{
			SecretEnv: "TASKMON_JWT_SECRET",
			TokenTTL:  "12h",
		},
		Lifecycle: LifecycleConfig{
			EnforceStartDependencies: true,
			LateGrace:                "0s",
		},
		Metrics: MetricsConfig{
			ProductivityWindowDays: 30,
			Timezone:               "Local",
		},
		Cache: CacheConfig{
			TTL:       "30s",
			KeyPrefix: "taskmon:",
		},
	}
}

// Load reads path over defaults. A missing or empty file yields defaults unchanged.
func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}
	if _, err := c.DatabaseTimeout(); err != nil {
		return err
	}

	if _, err := log.ParseLevel(strings.TrimSpace(strings.ToLower(c.Logging.Level))); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if c.Logging.DevFile.Enabled && strings.TrimSpace(c.Logging.DevFile.Dir) == "" {
		return errors.New("logging.dev_file.dir is required when enabled")
	}

	if strings.TrimSpace(c.Server.HTTPBind) == "" {
		return errors.New("server.http_bind is required")
	}
	endpoints := map[string]string{
		"server.api_endpoint":     c.Server.APIEndpoint,
		"server.mcp_endpoint":     c.Server.MCPEndpoint,
		"server.metrics_endpoint": c.Server.MetricsEndpoint,
	}
	for key, value := range endpoints {
		value = strings.TrimSpace(value)
		if value != "" && !strings.HasPrefix(value, "/") {
			return fmt.Errorf("%s must start with /: %q", key, value)
		}
	}

	if strings.TrimSpace(c.Auth.SecretEnv) == "" {
		return errors.New("auth.secret_env is required")
	}
	ttl, err := c.TokenTTL()
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive: %q", c.Auth.TokenTTL)
	}

	grace, err := c.LateGrace()
	if err != nil {
		return err
	}
	if grace < 0 {
		return fmt.Errorf("lifecycle.late_grace must be >= 0: %q", c.Lifecycle.LateGrace)
	}

	if c.Metrics.ProductivityWindowDays < 1 || c.Metrics.ProductivityWindowDays > 366 {
		return fmt.Errorf("metrics.productivity_window_days must be between 1 and 366, got %d", c.Metrics.ProductivityWindowDays)
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	if _, err := c.CacheTTL(); err != nil {
		return err
	}
	return nil
}

// DatabaseTimeout parses database.timeout.
func (c Config) DatabaseTimeout() (time.Duration, error) {
	return parseDuration("database.timeout", c.Database.Timeout)
}

// TokenTTL parses auth.token_ttl.
func (c Config) TokenTTL() (time.Duration, error) {
	return parseDuration("auth.token_ttl", c.Auth.TokenTTL)
}

// LateGrace parses lifecycle.late_grace.
func (c Config) LateGrace() (time.Duration, error) {
	return parseDuration("lifecycle.late_grace", c.Lifecycle.LateGrace)
}

// CacheTTL parses cache.ttl.
func (c Config) CacheTTL() (time.Duration, error) {
	return parseDuration("cache.ttl", c.Cache.TTL)
}

// Location resolves metrics.timezone. Empty and "Local" mean the host zone.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Metrics.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid metrics.timezone %q: %w", name, err)
	}
	return loc, nil
}

// LogLevel resolves logging.level, falling back to info.
func (c Config) LogLevel() log.Level {
	level, err := log.ParseLevel(strings.TrimSpace(strings.ToLower(c.Logging.Level)))
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// parseDuration treats an empty value as zero.
func parseDuration(key, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

// EnsureConfigDir creates the directory holding path.
func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
