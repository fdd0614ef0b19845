// Package config loads fileflow client configuration with the precedence
// chain defaults -> config file -> environment -> CLI flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Default service endpoints, matching the backend's development layout.
const (
	defaultAuthURL  = "http://localhost:8080/auth"
	defaultFileURL  = "http://localhost:8081/files"
	defaultGraphURL = "http://localhost:8082"
)

// Config is the fileflow client configuration.
type Config struct {
	// AuthURL is the auth service base URL (login/register live under it).
	AuthURL string `toml:"auth_url"`

	// FileURL is the file service base URL (upload/download/delete).
	FileURL string `toml:"file_url"`

	// GraphURL is the metadata service base URL; the structured-query
	// endpoint is {GraphURL}/graphql.
	GraphURL string `toml:"graph_url"`

	// DataDir holds client state: the session file and transfer journal.
	DataDir string `toml:"data_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`

	// Watch configures the watch-and-upload command.
	Watch WatchConfig `toml:"watch"`
}

// WatchConfig configures directory watching.
type WatchConfig struct {
	// Dir is the directory to watch for new files.
	Dir string `toml:"dir"`

	// Tags are attached to every auto-uploaded file.
	Tags []string `toml:"tags"`

	// ParallelUploads bounds the watcher's upload worker pool.
	ParallelUploads int `toml:"parallel_uploads"`
}

// EnvOverrides are the environment variables the client honors.
type EnvOverrides struct {
	ConfigPath string
	AuthURL    string
	FileURL    string
	GraphURL   string
	DataDir    string
}

// ReadEnvOverrides reads the FILEFLOW_* environment variables.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv("FILEFLOW_CONFIG"),
		AuthURL:    os.Getenv("FILEFLOW_AUTH_URL"),
		FileURL:    os.Getenv("FILEFLOW_FILE_URL"),
		GraphURL:   os.Getenv("FILEFLOW_GRAPH_URL"),
		DataDir:    os.Getenv("FILEFLOW_DATA_DIR"),
	}
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		AuthURL:  defaultAuthURL,
		FileURL:  defaultFileURL,
		GraphURL: defaultGraphURL,
		DataDir:  DefaultDataDir(),
		LogLevel: "info",
		Watch: WatchConfig{
			ParallelUploads: 4,
		},
	}
}

// DefaultConfigPath returns the default config file location,
// ~/.config/fileflow/config.toml (XDG_CONFIG_HOME honored).
func DefaultConfigPath() string {
	return filepath.Join(configHome(), "fileflow", "config.toml")
}

// DefaultDataDir returns the default data directory,
// ~/.local/share/fileflow (XDG_DATA_HOME honored).
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "fileflow")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "fileflow-data"
	}

	return filepath.Join(home, ".local", "share", "fileflow")
}

// SessionPath returns the session file location under the data dir.
func (c *Config) SessionPath() string {
	return filepath.Join(c.DataDir, "session.json")
}

// JournalPath returns the transfer journal database location under the
// data dir.
func (c *Config) JournalPath() string {
	return filepath.Join(c.DataDir, "journal.db")
}

func configHome() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config")
}

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values. This supports the
// zero-config first-run experience.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables.
func Resolve(env EnvOverrides) (*Config, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	if env.AuthURL != "" {
		cfg.AuthURL = env.AuthURL
	}

	if env.FileURL != "" {
		cfg.FileURL = env.FileURL
	}

	if env.GraphURL != "" {
		cfg.GraphURL = env.GraphURL
	}

	if env.DataDir != "" {
		cfg.DataDir = env.DataDir
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validLogLevels are the accepted log_level values.
var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks a Config for usable values.
func Validate(cfg *Config) error {
	for name, value := range map[string]string{
		"auth_url":  cfg.AuthURL,
		"file_url":  cfg.FileURL,
		"graph_url": cfg.GraphURL,
	} {
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s: %q is not an absolute URL", name, value)
		}

		if strings.HasSuffix(value, "/") {
			return fmt.Errorf("%s: %q must not end with a slash", name, value)
		}
	}

	if cfg.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}

	if cfg.LogLevel != "" && !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("log_level: %q is not one of debug, info, warn, error", cfg.LogLevel)
	}

	if cfg.Watch.ParallelUploads < 0 {
		return errors.New("watch.parallel_uploads must not be negative")
	}

	return nil
}
