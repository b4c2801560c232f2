package vlive

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	defaults "github.com/Paranoid-AF/vlive/default"
)

// Config represents the user's vlive configuration.
type Config struct {
	Version int           `toml:"version"`
	Server  ServerConfig  `toml:"server"`
	Poll    PollConfig    `toml:"poll"`
	Results ResultsConfig `toml:"results"`
	Log     LogConfig     `toml:"log"`
}

// ServerConfig holds settings for the evaluator connection.
type ServerConfig struct {
	URL                string `toml:"url"`
	Origin             string `toml:"origin,omitempty"`
	HandshakeTimeoutMS int    `toml:"handshake_timeout_ms,omitempty"`
	WriteTimeoutMS     int    `toml:"write_timeout_ms,omitempty"`
}

// PollConfig holds the cadence of status and output polling.
type PollConfig struct {
	IntervalMS   int `toml:"interval_ms,omitempty"`
	StaleAfterMS int `toml:"stale_after_ms,omitempty"`
}

// ResultsConfig controls persistence of the result list.
type ResultsConfig struct {
	// Snapshot restores the result list on start and saves it on close.
	Snapshot bool `toml:"snapshot"`
}

// LogConfig holds diagnostics settings.
type LogConfig struct {
	Level string `toml:"level,omitempty"`
}

// ConfigDir returns the config directory path.
// Resolution order: $VLIVE_CONFIG_DIR > $XDG_CONFIG_HOME/vlive > ~/.config/vlive
func ConfigDir() string {
	if dir := os.Getenv("VLIVE_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "vlive")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "vlive-config")
	}
	return filepath.Join(home, ".config", "vlive")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// SnapshotPath returns the path of the saved result list.
func SnapshotPath() string {
	return filepath.Join(ConfigDir(), "results.json")
}

// DefaultConfig returns the default configuration from the embedded default_config.toml.
func DefaultConfig() *Config {
	var cfg Config
	if _, err := toml.Decode(string(defaults.DefaultConfigTOML), &cfg); err != nil {
		panic("vlive: invalid embedded default_config.toml: " + err.Error())
	}
	return &cfg
}

// LoadConfig loads config from disk or returns defaults if not found.
func LoadConfig() (*Config, error) {
	return LoadConfigFile(ConfigPath())
}

// LoadConfigFile loads config from path, filling unset fields from defaults.
// A missing file yields the defaults.
func LoadConfigFile(path string) (*Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		slog.Warn("ignoring unknown config keys", "path", path, "keys", undecoded)
	}

	// Apply defaults for missing fields
	defaults := DefaultConfig()
	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}
	if cfg.Server.URL == "" {
		cfg.Server.URL = defaults.Server.URL
	}
	if cfg.Server.HandshakeTimeoutMS == 0 {
		cfg.Server.HandshakeTimeoutMS = defaults.Server.HandshakeTimeoutMS
	}
	if cfg.Server.WriteTimeoutMS == 0 {
		cfg.Server.WriteTimeoutMS = defaults.Server.WriteTimeoutMS
	}
	if cfg.Poll.IntervalMS == 0 {
		cfg.Poll.IntervalMS = defaults.Poll.IntervalMS
	}
	if cfg.Poll.StaleAfterMS == 0 {
		cfg.Poll.StaleAfterMS = 3 * cfg.Poll.IntervalMS
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}

	return &cfg, nil
}

// ValidateConfig checks configuration for potential issues and returns warnings.
func ValidateConfig(cfg *Config) []string {
	var warnings []string
	if cfg == nil {
		return warnings
	}
	url := ResolveServerURL(cfg)
	if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		warnings = append(warnings, fmt.Sprintf("server url %q is not a ws:// or wss:// url", url))
	}
	if cfg.Poll.IntervalMS < 0 {
		warnings = append(warnings, "poll interval_ms is negative; the default is used instead")
	}
	if cfg.Poll.StaleAfterMS > 0 && int64(cfg.Poll.StaleAfterMS) < ResolvePollInterval(cfg).Milliseconds() {
		warnings = append(warnings, "poll stale_after_ms is shorter than interval_ms; status will read as stale between polls")
	}
	if _, err := ParseLogLevel(cfg.Log.Level); err != nil {
		warnings = append(warnings, err.Error())
	}
	return warnings
}

// ResolveServerURL returns the evaluator websocket URL.
// Priority: $VLIVE_URL env > config value.
func ResolveServerURL(cfg *Config) string {
	if url := os.Getenv("VLIVE_URL"); url != "" {
		return url
	}
	if cfg != nil && cfg.Server.URL != "" {
		return cfg.Server.URL
	}
	return DefaultConfig().Server.URL
}

// ResolvePollInterval returns the poll cadence.
// Priority: $VLIVE_POLL_INTERVAL_MS env > config value > 1s.
func ResolvePollInterval(cfg *Config) time.Duration {
	if v := os.Getenv("VLIVE_POLL_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
		slog.Warn("ignoring invalid VLIVE_POLL_INTERVAL_MS", "value", v)
	}
	if cfg != nil && cfg.Poll.IntervalMS > 0 {
		return time.Duration(cfg.Poll.IntervalMS) * time.Millisecond
	}
	return time.Second
}

// ResolveStaleAfter returns how long a status value stays current.
func ResolveStaleAfter(cfg *Config) time.Duration {
	if cfg != nil && cfg.Poll.StaleAfterMS > 0 {
		return time.Duration(cfg.Poll.StaleAfterMS) * time.Millisecond
	}
	return 3 * ResolvePollInterval(cfg)
}

// ResolveHandshakeTimeout returns the websocket handshake timeout.
func ResolveHandshakeTimeout(cfg *Config) time.Duration {
	if cfg != nil && cfg.Server.HandshakeTimeoutMS > 0 {
		return time.Duration(cfg.Server.HandshakeTimeoutMS) * time.Millisecond
	}
	return 5 * time.Second
}

// ResolveWriteTimeout returns the per-frame write deadline.
func ResolveWriteTimeout(cfg *Config) time.Duration {
	if cfg != nil && cfg.Server.WriteTimeoutMS > 0 {
		return time.Duration(cfg.Server.WriteTimeoutMS) * time.Millisecond
	}
	return 2 * time.Second
}

// ParseLogLevel maps a config level name onto a slog level.
func ParseLogLevel(name string) (slog.Level, error) {
	var level slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", name, err)
	}
	return level, nil
}
