package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable that points at the config file
const EnvConfigPath = "APPSTORE_CONFIG"

// DefaultStorePackage is the store's own PyPI package, upgraded before every install
const DefaultStorePackage = "gemini_ai_app_store"

// Config holds the complete application configuration
type Config struct {
	General GeneralConfig `toml:"general" yaml:"general"`
	Store   StoreConfig   `toml:"store" yaml:"store"`
	UI      UIConfig      `toml:"ui" yaml:"ui"`
	History HistoryConfig `toml:"history" yaml:"history"`
	Apps    []AppConfig   `toml:"apps" yaml:"apps"`
}

// GeneralConfig holds general application settings
type GeneralConfig struct {
	Name     string `toml:"name" yaml:"name"`
	LogLevel string `toml:"log_level" yaml:"log_level"`
	LogFile  string `toml:"log_file" yaml:"log_file"`
}

// StoreConfig holds settings for the package manager boundary
type StoreConfig struct {
	// Package is the store's own package, upgraded before each install
	Package string `toml:"package" yaml:"package"`

	// Interpreter is the Python executable; empty means auto-detect
	Interpreter string `toml:"interpreter" yaml:"interpreter"`

	// TerminateGrace is how long children get between SIGTERM and SIGKILL
	TerminateGrace Duration `toml:"terminate_grace" yaml:"terminate_grace"`
}

// UIConfig holds terminal UI settings
type UIConfig struct {
	PollInterval Duration `toml:"poll_interval" yaml:"poll_interval"`
	MaxLogLines  int      `toml:"max_log_lines" yaml:"max_log_lines"`
}

// HistoryConfig holds settings for the operation history store
type HistoryConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
	Limit   int    `toml:"limit" yaml:"limit"`
}

// AppConfig is a single catalog entry
type AppConfig struct {
	Name    string `toml:"name" yaml:"name"`
	Package string `toml:"package" yaml:"package"`
	Module  string `toml:"module" yaml:"module"`
}

// Duration wraps time.Duration for TOML and YAML parsing
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText formats the duration as a string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML parses a duration scalar
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// DefaultApps is the built-in catalog used when no apps are configured
func DefaultApps() []AppConfig {
	return []AppConfig{
		{Name: "Gemini Chat App", Package: "gemini_chat_app", Module: "gemini_chat_app"},
	}
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from a TOML or YAML file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyDefaults()
	cfg.expandEnvVars()

	return &cfg, nil
}

// LoadFromEnv loads configuration from APPSTORE_CONFIG or the default locations.
// Without any config file the built-in defaults are returned.
func LoadFromEnv() (*Config, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return Load(path)
	}

	for _, p := range DefaultPaths() {
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}

	return Default(), nil
}

// DefaultPaths lists the config locations searched by LoadFromEnv
func DefaultPaths() []string {
	paths := []string{
		"./configs/appstore.toml",
		"./configs/appstore.yaml",
		"./appstore.toml",
		"./appstore.yaml",
	}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths,
			filepath.Join(dir, "appstore", "config.toml"),
			filepath.Join(dir, "appstore", "config.yaml"),
		)
	}
	return paths
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// General
	if c.General.Name == "" {
		c.General.Name = "Gemini App Store"
	}
	if c.General.LogLevel == "" {
		c.General.LogLevel = "info"
	}
	if c.General.LogFile == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			c.General.LogFile = filepath.Join(dir, "appstore", "appstore.log")
		}
	}

	// Store
	if c.Store.Package == "" {
		c.Store.Package = DefaultStorePackage
	}
	if c.Store.TerminateGrace.Duration == 0 {
		c.Store.TerminateGrace.Duration = 5 * time.Second
	}

	// UI
	if c.UI.PollInterval.Duration == 0 {
		c.UI.PollInterval.Duration = 100 * time.Millisecond
	}
	if c.UI.MaxLogLines == 0 {
		c.UI.MaxLogLines = 2000
	}

	// History
	if c.History.Path == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			c.History.Path = filepath.Join(dir, "appstore", "history.db")
		}
	}
	if c.History.Limit == 0 {
		c.History.Limit = 20
	}

	// Catalog
	if len(c.Apps) == 0 {
		c.Apps = DefaultApps()
	}
}

// envKeys are the settings that APPSTORE_<SECTION>_<KEY> variables override
var envKeys = []string{
	"general.log_level",
	"general.log_file",
	"store.package",
	"store.interpreter",
	"store.terminate_grace",
	"ui.poll_interval",
	"ui.max_log_lines",
	"history.enabled",
	"history.path",
	"history.limit",
}

// ApplyEnv overrides file settings with APPSTORE_* environment variables,
// e.g. APPSTORE_STORE_INTERPRETER or APPSTORE_HISTORY_ENABLED.
func (c *Config) ApplyEnv() error {
	v := viper.New()
	v.SetEnvPrefix("APPSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = os.ExpandEnv(v.GetString(key))
		}
	}
	setString("general.log_level", &c.General.LogLevel)
	setString("general.log_file", &c.General.LogFile)
	setString("store.package", &c.Store.Package)
	setString("store.interpreter", &c.Store.Interpreter)
	setString("history.path", &c.History.Path)

	for key, dst := range map[string]*Duration{
		"store.terminate_grace": &c.Store.TerminateGrace,
		"ui.poll_interval":      &c.UI.PollInterval,
	} {
		if !v.IsSet(key) {
			continue
		}
		if err := dst.UnmarshalText([]byte(v.GetString(key))); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	if v.IsSet("ui.max_log_lines") {
		c.UI.MaxLogLines = v.GetInt("ui.max_log_lines")
	}
	if v.IsSet("history.enabled") {
		c.History.Enabled = v.GetBool("history.enabled")
	}
	if v.IsSet("history.limit") {
		c.History.Limit = v.GetInt("history.limit")
	}
	return nil
}

// expandEnvVars expands environment variables in path-like values
func (c *Config) expandEnvVars() {
	c.General.LogFile = os.ExpandEnv(c.General.LogFile)
	c.Store.Interpreter = os.ExpandEnv(c.Store.Interpreter)
	c.History.Path = os.ExpandEnv(c.History.Path)
}
