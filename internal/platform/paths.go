// Package platform resolves per-OS locations for the config file, database and logs.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultAppName names the config and data directories.
const DefaultAppName = "taskmon"

// Paths locates the config file, database and log directory.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
	LogDir     string
}

// Options tweaks path resolution. DevMode appends "-dev" so development runs keep their own data.
type Options struct {
	AppName string
	DevMode bool
}

// baseEnv lists the environment variables that override the config and data base dirs per OS.
// darwin and unknown platforms always use the user dirs.
var baseEnv = map[string]struct{ config, data string }{
	"linux":   {config: "XDG_CONFIG_HOME", data: "XDG_DATA_HOME"},
	"windows": {config: "APPDATA", data: "LOCALAPPDATA"},
}

var errEmptyBaseDirs = errors.New("empty base dirs")

func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{AppName: DefaultAppName})
}

// DefaultPathsWithOptions resolves paths for the running OS and process environment.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = DefaultAppName
	}
	if opts.DevMode {
		appName += "-dev"
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataDir, err := userDataDir(runtime.GOOS, configDir)
	if err != nil {
		return Paths{}, err
	}
	env := make(map[string]string, 4)
	for _, names := range baseEnv {
		env[names.config] = os.Getenv(names.config)
		env[names.data] = os.Getenv(names.data)
	}
	return PathsFor(runtime.GOOS, env, configDir, dataDir, appName)
}

// userDataDir is ~/.local/share on linux and the config dir elsewhere.
func userDataDir(goos, configDir string) (string, error) {
	if goos != "linux" {
		return configDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("user home dir: %w", err)
	}
	return filepath.Join(home, ".local", "share"), nil
}

// PathsFor resolves paths for goos from env and the user base directories.
func PathsFor(goos string, env map[string]string, userConfigDir, userDataDir, appName string) (Paths, error) {
	if userConfigDir == "" || userDataDir == "" {
		return Paths{}, errEmptyBaseDirs
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, errors.New("empty app name")
	}

	configBase, dataBase := userConfigDir, userDataDir
	if names, ok := baseEnv[goos]; ok {
		if v := strings.TrimSpace(env[names.config]); v != "" {
			configBase = v
		}
		if v := strings.TrimSpace(env[names.data]); v != "" {
			dataBase = v
		}
	}

	dataDir := filepath.Join(dataBase, appName)
	return Paths{
		ConfigPath: filepath.Join(configBase, appName, "config.toml"),
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, appName+".db"),
		LogDir:     filepath.Join(dataDir, "log"),
	}, nil
}

// WithOverrides replaces the config and database locations with explicit values.
// Blank overrides keep the platform default. Relative paths are made absolute.
func (p Paths) WithOverrides(configPath, dbPath string) (Paths, error) {
	var err error
	if p.ConfigPath, err = absOr(configPath, p.ConfigPath); err != nil {
		return Paths{}, fmt.Errorf("resolve config path: %w", err)
	}
	if p.DBPath, err = absOr(dbPath, p.DBPath); err != nil {
		return Paths{}, fmt.Errorf("resolve db path: %w", err)
	}
	return p, nil
}

func absOr(override, fallback string) (string, error) {
	if v := strings.TrimSpace(override); v != "" {
		return filepath.Abs(v)
	}
	return fallback, nil
}
