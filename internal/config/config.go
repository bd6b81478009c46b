// Package config provides configuration loading and management for ralph.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Recognized configuration keys.
const (
	KeyDefaultTool   = "default_tool"
	KeyMaxIterations = "max_iterations"
	KeyAutoArchive   = "auto_archive"
	KeyExtraArgs     = "extra_args"
)

// DefaultMaxIterations is used when neither the command line nor the config sets a budget.
const DefaultMaxIterations = 10

// EnvPrefix is the prefix of environment variables that override file settings.
const EnvPrefix = "RALPH"

// ErrUnknownKey is returned for keys outside the recognized set.
var ErrUnknownKey = errors.New("unknown config key")

// Config is the root configuration.
type Config struct {
	DefaultTool   string   `json:"default_tool,omitempty" mapstructure:"default_tool"`
	MaxIterations int      `json:"max_iterations"         mapstructure:"max_iterations"`
	AutoArchive   bool     `json:"auto_archive"           mapstructure:"auto_archive"`
	ExtraArgs     []string `json:"extra_args,omitempty"   mapstructure:"extra_args"`
}

// KeyInfo describes a configuration key for display.
type KeyInfo struct {
	Key         string
	Description string
}

// Keys lists the recognized keys in display order.
func Keys() []KeyInfo {
	return []KeyInfo{
		{Key: KeyDefaultTool, Description: "Default agent CLI used when --tool is auto"},
		{Key: KeyMaxIterations, Description: "Default maximum number of iterations"},
		{Key: KeyAutoArchive, Description: "Archive the previous run when the branch changes"},
		{Key: KeyExtraArgs, Description: "Extra arguments appended to the agent command"},
	}
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MaxIterations: DefaultMaxIterations,
		AutoArchive:   true,
	}
}

// DefaultPath returns <user config dir>/ralph/config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "ralph", "config.toml"), nil
}

// Load reads the config file at path, applies RALPH_* environment overrides
// and validates the result. A missing file yields the defaults.
func Load(path string) (Config, error) {
	return load(path, true)
}

// LoadFile reads only the config file at path on top of the defaults.
// It is used when the result is written back and must not capture the environment.
func LoadFile(path string) (Config, error) {
	return load(path, false)
}

func load(path string, withEnv bool) (Config, error) {
	exists, err := fileExists(path)
	if err != nil {
		return Config{}, err
	}
	if exists {
		if err := validateFile(path); err != nil {
			return Config{}, err
		}
	}

	v := newViper()
	if withEnv {
		v.SetEnvPrefix(EnvPrefix)
		v.AutomaticEnv()
	}
	if exists {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.MaxIterations <= 0 {
		return Config{}, fmt.Errorf("%s must be a positive integer", KeyMaxIterations)
	}
	cfg.DefaultTool = strings.TrimSpace(cfg.DefaultTool)
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	def := Default()
	v.SetDefault(KeyDefaultTool, def.DefaultTool)
	v.SetDefault(KeyMaxIterations, def.MaxIterations)
	v.SetDefault(KeyAutoArchive, def.AutoArchive)
	v.SetDefault(KeyExtraArgs, []string{})
	return v
}

func validateFile(path string) error {
	raw := viper.New()
	raw.SetConfigFile(path)
	raw.SetConfigType("toml")
	if err := raw.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := ValidateSettings(raw.AllSettings()); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func fileExists(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("config path %s is a directory", path)
	}
	return true, nil
}

// Get returns the textual value of key. An unset default_tool is returned as "".
func (c Config) Get(key string) (string, error) {
	switch key {
	case KeyDefaultTool:
		return c.DefaultTool, nil
	case KeyMaxIterations:
		return strconv.Itoa(c.MaxIterations), nil
	case KeyAutoArchive:
		return strconv.FormatBool(c.AutoArchive), nil
	case KeyExtraArgs:
		return strings.Join(c.ExtraArgs, " "), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
}

// Set parses value and assigns it to key.
func (c *Config) Set(key, value string) error {
	switch key {
	case KeyDefaultTool:
		c.DefaultTool = strings.TrimSpace(value)
	case KeyMaxIterations:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive integer", KeyMaxIterations)
		}
		c.MaxIterations = n
	case KeyAutoArchive:
		switch strings.TrimSpace(value) {
		case "true":
			c.AutoArchive = true
		case "false":
			c.AutoArchive = false
		default:
			return fmt.Errorf("%s must be true or false", KeyAutoArchive)
		}
	case KeyExtraArgs:
		c.ExtraArgs = strings.Fields(value)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

// Save writes cfg as TOML to path, omitting empty optional keys.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	v := viper.New()
	v.SetConfigType("toml")
	if cfg.DefaultTool != "" {
		v.Set(KeyDefaultTool, cfg.DefaultTool)
	}
	v.Set(KeyMaxIterations, cfg.MaxIterations)
	v.Set(KeyAutoArchive, cfg.AutoArchive)
	if len(cfg.ExtraArgs) > 0 {
		v.Set(KeyExtraArgs, cfg.ExtraArgs)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
