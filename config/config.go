package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"markestedt/guestagent/platform"
)

type Config struct {
	Host      HostConfig      `toml:"host"`
	Clipboard ClipboardConfig `toml:"clipboard"`
	Log       LogConfig       `toml:"log"`
	Tray      TrayConfig      `toml:"tray"`
}

type HostConfig struct {
	Address     string `toml:"address"`
	ReconnectMs int    `toml:"reconnect_ms"`
}

// ClipboardConfig tunes the two retry layers: OpenRetries spins on OpenClipboard,
// LockedRetries repeats the whole operation when the clipboard stays locked.
type ClipboardConfig struct {
	OpenRetries   int `toml:"open_retries"`
	RetryDelayMs  int `toml:"retry_delay_ms"`
	LockedRetries int `toml:"locked_retries"`
	LockedDelayMs int `toml:"locked_delay_ms"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type TrayConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		Host: HostConfig{
			Address:     "tcp://10.0.2.1:31337",
			ReconnectMs: 2000,
		},
		Clipboard: ClipboardConfig{
			OpenRetries:   10,
			RetryDelayMs:  10,
			LockedRetries: 3,
			LockedDelayMs: 100,
		},
		Log: LogConfig{
			Level: "info",
		},
		Tray: TrayConfig{
			Enabled: true,
		},
	}
}

// ReconnectInterval is the pause between connection attempts
func (c *Config) ReconnectInterval() time.Duration {
	return time.Duration(c.Host.ReconnectMs) * time.Millisecond
}

// SlogLevel parses Log.Level
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

// Validate checks values that would otherwise fail much later
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Host.Address) == "" {
		return fmt.Errorf("host.address must not be empty")
	}
	if c.Host.ReconnectMs <= 0 {
		return fmt.Errorf("host.reconnect_ms must be positive, got %d", c.Host.ReconnectMs)
	}
	if c.Clipboard.OpenRetries < 1 {
		return fmt.Errorf("clipboard.open_retries must be at least 1, got %d", c.Clipboard.OpenRetries)
	}
	if c.Clipboard.RetryDelayMs < 0 || c.Clipboard.LockedRetries < 0 || c.Clipboard.LockedDelayMs < 0 {
		return fmt.Errorf("clipboard retry settings must not be negative")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// ConfigPath returns the path to the configuration file
func ConfigPath() (string, error) {
	appData := os.Getenv("APPDATA")
	if appData == "" {
		appData = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
	}

	configDir := filepath.Join(appData, "guestagent")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(configDir, "config.toml"), nil
}

// Load loads the configuration from the default location
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from the TOML file at path.
// If the file doesn't exist, it creates it with default values.
func LoadFrom(configPath string) (*Config, error) {
	// If config doesn't exist, create it with defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := defaultConfig()
		if err := save(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	// Load existing config
	cfg := defaultConfig()
	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return cfg, nil
}

// save writes the configuration to the TOML file
func save(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// KeyCombo represents a parsed keyboard combination
type KeyCombo struct {
	Ctrl     bool
	Shift    bool
	Alt      bool
	Win      bool
	NoRepeat bool
	Key      string
}

// Modifiers converts the combo's modifier flags to a RegisterHotKey mask
func (kc KeyCombo) Modifiers() platform.Modifiers {
	var mods platform.Modifiers
	if kc.Ctrl {
		mods |= platform.ModCtrl
	}
	if kc.Shift {
		mods |= platform.ModShift
	}
	if kc.Alt {
		mods |= platform.ModAlt
	}
	if kc.Win {
		mods |= platform.ModWin
	}
	if kc.NoRepeat {
		mods |= platform.ModNoRepeat
	}
	return mods
}

// ParseHotkey parses a hotkey combo string like "ctrl+alt+f12".
// The last part is the key; everything before it must be a modifier.
func ParseHotkey(combo string) (KeyCombo, error) {
	var kc KeyCombo
	if strings.TrimSpace(combo) == "" {
		return kc, fmt.Errorf("empty hotkey combo")
	}

	parts := strings.Split(strings.ToLower(combo), "+")
	for i, part := range parts {
		part = strings.TrimSpace(part)

		switch part {
		case "ctrl", "control":
			kc.Ctrl = true
		case "shift":
			kc.Shift = true
		case "alt":
			kc.Alt = true
		case "win", "windows", "super":
			kc.Win = true
		case "norepeat":
			kc.NoRepeat = true
		default:
			if i != len(parts)-1 {
				return kc, fmt.Errorf("unknown modifier: %s", part)
			}
			kc.Key = part
		}
	}

	if kc.Key == "" {
		return kc, fmt.Errorf("no key specified in combo %q", combo)
	}

	return kc, nil
}
