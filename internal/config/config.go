package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/chaz8081/gatt-peripheral/internal/peripheral"
)

// Config holds all application configuration.
type Config struct {
	Bus            string        `yaml:"bus"`     // "system" or "session"
	Adapter        string        `yaml:"adapter"` // "" picks the first capable adapter
	LocalName      string        `yaml:"local_name"`
	IncludeTxPower bool          `yaml:"include_tx_power"`
	NotifyInterval time.Duration `yaml:"notify_interval"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"` // "text" or "json"
	Probe          ProbeConfig   `yaml:"probe"`
}

// ProbeConfig holds settings for the gatt-probe test client.
type ProbeConfig struct {
	ServiceUUID string        `yaml:"service_uuid"`
	ScanTimeout time.Duration `yaml:"scan_timeout"`
	Address     string        `yaml:"address"` // skip scanning when set
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "gatt-peripheral")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Bus:            "system",
		LocalName:      peripheral.LocalName,
		IncludeTxPower: true,
		NotifyInterval: peripheral.DefaultNotifyPeriod,
		LogLevel:       "info",
		LogFormat:      "text",
		Probe: ProbeConfig{
			ServiceUUID: peripheral.ServiceUUID,
			ScanTimeout: 10 * time.Second,
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. A leading ~ in path is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(expandTilde(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Adapter = strings.TrimSpace(cfg.Adapter)

	return cfg, nil
}

// WriteDefault writes the default config to DefaultConfigPath. If the file
// already exists it is left untouched and the returned path is empty.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("checking config file: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	header := "# gatt-peripheral configuration\n# bus: system | session, adapter: e.g. hci0 (empty = auto)\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.Bus {
	case "system", "session":
	default:
		return fmt.Errorf("bus must be \"system\" or \"session\", got %q", c.Bus)
	}

	if c.Adapter != "" && !validAdapter(c.Adapter) {
		return fmt.Errorf("adapter must be a name like \"hci0\" or a path under /org/bluez/, got %q", c.Adapter)
	}

	// Bluetooth device names are capped at 248 bytes.
	if len(c.LocalName) > 248 {
		return fmt.Errorf("local_name must be at most 248 bytes, got %d", len(c.LocalName))
	}

	if c.NotifyInterval < 10*time.Millisecond {
		return fmt.Errorf("notify_interval must be >= 10ms, got %s", c.NotifyInterval)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be \"text\" or \"json\", got %q", c.LogFormat)
	}

	if _, err := uuid.Parse(c.Probe.ServiceUUID); err != nil {
		return fmt.Errorf("probe.service_uuid: %w", err)
	}

	if c.Probe.ScanTimeout <= 0 {
		return fmt.Errorf("probe.scan_timeout must be > 0")
	}

	return nil
}

// ParseLogLevel maps a log_level value to a slog.Level. Unknown values
// map to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func validAdapter(name string) bool {
	if strings.HasPrefix(name, "/org/bluez/") {
		name = strings.TrimPrefix(name, "/org/bluez/")
	}
	if !strings.HasPrefix(name, "hci") || len(name) == len("hci") {
		return false
	}
	for _, r := range name[len("hci"):] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
