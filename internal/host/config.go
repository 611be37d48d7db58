package host

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config is the host's own configuration: how to spawn the lint server,
// where the workspace settings documents live, and where flags persist.
// Per-resource lint settings are a separate concern and live in the
// settings documents themselves.
type Config struct {
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Workspace WorkspaceConfig `toml:"workspace" yaml:"workspace"`
	Log       LogConfig       `toml:"log" yaml:"log"`
	Store     StoreConfig     `toml:"store" yaml:"store"`
}

// ServerConfig describes the lint server process.
type ServerConfig struct {
	// Command is the lint server executable.
	Command string `toml:"command" yaml:"command"`

	// Args are passed to the executable. Defaults to ["--stdio"].
	Args []string `toml:"args" yaml:"args"`

	// Env adds environment variables to the process.
	Env map[string]string `toml:"env" yaml:"env"`

	// TimeoutSeconds bounds the initialize handshake. Default 30.
	TimeoutSeconds int `toml:"timeout_seconds" yaml:"timeout_seconds"`
}

// Timeout returns the handshake timeout as a duration.
func (c ServerConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// WorkspaceConfig describes how the host materializes the open-document
// population and where it finds settings documents.
type WorkspaceConfig struct {
	// SettingsFile is the per-folder settings document name.
	SettingsFile string `toml:"settings_file" yaml:"settings_file"`

	// Include lists glob patterns, relative to each workspace folder,
	// whose matches are treated as open documents at startup. `**`
	// crosses directories. Empty means only documents named on the
	// command line are opened.
	Include []string `toml:"include" yaml:"include"`

	// MaxFiles caps the include walk. Default 2000.
	MaxFiles int `toml:"max_files" yaml:"max_files"`
}

// LogConfig controls the host logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default info.
	Level string `toml:"level" yaml:"level"`

	// Format is text or json. Default text.
	Format string `toml:"format" yaml:"format"`
}

// StoreConfig controls flag persistence.
type StoreConfig struct {
	// Path is the flag store directory. Empty means a lintbridge
	// directory under the user cache dir.
	Path string `toml:"path" yaml:"path"`

	// InMemory disables persistence entirely.
	InMemory bool `toml:"in_memory" yaml:"in_memory"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Command:        "lint-language-server",
			Args:           []string{"--stdio"},
			TimeoutSeconds: 30,
		},
		Workspace: WorkspaceConfig{
			SettingsFile: ".lintbridge.json",
			MaxFiles:     2000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads the host configuration. An empty path loads defaults.
// The format follows the file extension: .toml, .yaml, or .yml.
// Environment variables prefixed LINTBRIDGE_ overlay the file in both
// cases.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file %s: %w", path, err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing %s: %w", path, err)
			}
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing %s: %w", path, err)
			}
		default:
			return cfg, fmt.Errorf("%w: %s", ErrUnknownConfigFormat, path)
		}
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays LINTBRIDGE_* environment variables onto the config.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("LINTBRIDGE_SERVER_COMMAND"); ok {
		c.Server.Command = v
	}
	if v, ok := lookup("LINTBRIDGE_SERVER_ARGS"); ok {
		c.Server.Args = strings.Fields(v)
	}
	if v, ok := lookup("LINTBRIDGE_SETTINGS_FILE"); ok {
		c.Workspace.SettingsFile = v
	}
	if v, ok := lookup("LINTBRIDGE_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := lookup("LINTBRIDGE_LOG_FORMAT"); ok {
		c.Log.Format = v
	}
	if v, ok := lookup("LINTBRIDGE_STORE_PATH"); ok {
		c.Store.Path = v
	}
	if v, ok := lookup("LINTBRIDGE_STORE_IN_MEMORY"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Store.InMemory = b
		}
	}
}

func (c *Config) validate() error {
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	if c.Server.Command == "" {
		return ErrNoServerCommand
	}
	return nil
}

// StorePath resolves the flag store directory, falling back to the user
// cache dir.
func (c StoreConfig) StorePath() (string, error) {
	if c.Path != "" {
		return c.Path, nil
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolving cache dir: %w", err)
	}
	return filepath.Join(cache, "lintbridge", "flags"), nil
}

// GlobalSettingsPath resolves the global settings document location under
// the user config dir.
func GlobalSettingsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config dir: %w", err)
	}
	return filepath.Join(dir, "lintbridge", "settings.json"), nil
}
