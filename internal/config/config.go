// Package config loads presetctl settings from defaults, a config file and
// the environment.
//
// Precedence, lowest first: built-in defaults, presetctl.toml (or .yaml) found
// in the working directory or the user config directory, PRESETCTL_* variables,
// then command-line flags bound by the caller. R2MIDI_ROLE=dev is honored as a
// legacy way to select submodule sync when no mode is configured.
package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/r2midi/presetctl/internal/catalog"
	"github.com/r2midi/presetctl/internal/client"
	"github.com/r2midi/presetctl/internal/gitsync"
	"github.com/r2midi/presetctl/internal/vcs"
)

// FileName is the config file base name, without extension.
const FileName = "presetctl"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PRESETCTL"

// legacyRoleEnv selects submodule sync when set to "dev".
const legacyRoleEnv = "R2MIDI_ROLE"

// Logger returns a logger for a named component.
type Logger func(component string) *log.Logger

// Config is the effective presetctl configuration.
type Config struct {
	// Root is the devices directory the catalog scans.
	Root    string `mapstructure:"root"`
	Workers int    `mapstructure:"workers"`

	Sync   SyncConfig   `mapstructure:"sync"`
	Client ClientConfig `mapstructure:"client"`
	Log    LogConfig    `mapstructure:"log"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// SyncConfig configures the git sync controller.
type SyncConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Mode        string        `mapstructure:"mode"`
	RepoRoot    string        `mapstructure:"repo_root"`
	PresetsPath string        `mapstructure:"presets_path"`
	RemoteURL   string        `mapstructure:"remote_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ClientConfig configures the cached client.
type ClientConfig struct {
	TTL        time.Duration `mapstructure:"ttl"`
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	// RateLimit is remote calls per second. Zero disables throttling.
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
}

// LogConfig configures log output.
type LogConfig struct {
	// File receives rotated logs. Empty means stderr only.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
	Verbose    bool   `mapstructure:"verbose"`
}

// Default returns the built-in configuration.
func Default() *Config {
	retry := client.DefaultRetryPolicy()
	return &Config{
		Root:    filepath.Join(gitsync.DefaultPresetsPath, "devices"),
		Workers: 4,
		Sync: SyncConfig{
			Enabled:     true,
			Mode:        string(gitsync.ModeClone),
			RepoRoot:    ".",
			PresetsPath: gitsync.DefaultPresetsPath,
			Timeout:     vcs.DefaultTimeout,
		},
		Client: ClientConfig{
			TTL:        client.DefaultTTL,
			MaxRetries: retry.MaxRetries,
			BaseDelay:  retry.BaseDelay,
			Burst:      1,
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 10,
			Compress:   true,
		},
	}
}

// NewViper returns a viper instance with defaults and env bindings installed.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// No default for sync.mode, so an unset mode can fall back to the legacy role.
	_ = v.BindEnv("sync.mode", EnvPrefix+"_SYNC_MODE")
	return v
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("root", d.Root)
	v.SetDefault("workers", d.Workers)

	v.SetDefault("sync.enabled", d.Sync.Enabled)
	v.SetDefault("sync.repo_root", d.Sync.RepoRoot)
	v.SetDefault("sync.presets_path", d.Sync.PresetsPath)
	v.SetDefault("sync.remote_url", d.Sync.RemoteURL)
	v.SetDefault("sync.timeout", d.Sync.Timeout)

	v.SetDefault("client.ttl", d.Client.TTL)
	v.SetDefault("client.max_retries", d.Client.MaxRetries)
	v.SetDefault("client.base_delay", d.Client.BaseDelay)
	v.SetDefault("client.rate_limit", d.Client.RateLimit)
	v.SetDefault("client.burst", d.Client.Burst)

	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.compress", d.Log.Compress)
	v.SetDefault("log.verbose", d.Log.Verbose)
}

// Load reads configuration into a Config.
//
// When file is empty, presetctl.{toml,yaml,yml} is searched for in the working
// directory and then in the user config directory; a missing file is not an
// error. An explicit file must exist.
func Load(v *viper.Viper, file string) (*Config, error) {
	if v == nil {
		v = NewViper()
	}
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, FileName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if cfg.Sync.Mode == "" {
		cfg.Sync.Mode = legacyMode(os.Getenv(legacyRoleEnv))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func legacyMode(role string) string {
	if strings.EqualFold(strings.TrimSpace(role), "dev") {
		return string(gitsync.ModeSubmodule)
	}
	return string(gitsync.ModeClone)
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Root) == "" {
		return fmt.Errorf("root cannot be empty")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if _, err := gitsync.ParseMode(c.Sync.Mode); err != nil {
		return err
	}
	if c.Client.TTL <= 0 {
		return fmt.Errorf("client.ttl must be positive, got %v", c.Client.TTL)
	}
	if c.Client.MaxRetries < 1 {
		return fmt.Errorf("client.max_retries must be >= 1, got %d", c.Client.MaxRetries)
	}
	if c.Client.BaseDelay < 0 {
		return fmt.Errorf("client.base_delay cannot be negative")
	}
	return nil
}

// ===================
// Component configs
// ===================

// CatalogConfig builds the indexer configuration.
func (c *Config) CatalogConfig(logger Logger) *catalog.Config {
	cfg := catalog.DefaultConfig(c.Root)
	if c.Workers > 0 {
		cfg.Workers = c.Workers
	}
	if logger != nil {
		cfg.Logger = logger("catalog")
	}
	return cfg
}

// SyncControllerConfig builds the sync controller configuration.
func (c *Config) SyncControllerConfig(logger Logger) *gitsync.Config {
	cfg := gitsync.DefaultConfig(c.Sync.RepoRoot)
	cfg.PresetsPath = c.Sync.PresetsPath
	cfg.Enabled = c.Sync.Enabled
	cfg.Mode, _ = gitsync.ParseMode(c.Sync.Mode)
	cfg.RemoteURL = c.Sync.RemoteURL
	cfg.Timeout = c.Sync.Timeout
	if logger != nil {
		cfg.Logger = logger("sync")
	}
	return cfg
}

// ClientOptions builds the cached client options.
func (c *Config) ClientOptions(logger Logger) []client.Option {
	opts := []client.Option{
		client.WithTTL(c.Client.TTL),
		client.WithRetryPolicy(client.RetryPolicy{
			MaxRetries: c.Client.MaxRetries,
			BaseDelay:  c.Client.BaseDelay,
		}),
	}
	if c.Client.RateLimit > 0 {
		opts = append(opts, client.WithRateLimit(c.Client.RateLimit, c.Client.Burst))
	}
	if logger != nil {
		opts = append(opts, client.WithLogger(logger("client")))
	}
	return opts
}

// ===================
// Writing
// ===================

// Encode writes c as TOML. Durations are written as strings ("5m0s") so they
// read back through viper unchanged.
func Encode(w io.Writer, c *Config) error {
	doc := map[string]any{
		"root":    c.Root,
		"workers": c.Workers,
		"sync": map[string]any{
			"enabled":      c.Sync.Enabled,
			"mode":         c.Sync.Mode,
			"repo_root":    c.Sync.RepoRoot,
			"presets_path": c.Sync.PresetsPath,
			"remote_url":   c.Sync.RemoteURL,
			"timeout":      c.Sync.Timeout.String(),
		},
		"client": map[string]any{
			"ttl":         c.Client.TTL.String(),
			"max_retries": c.Client.MaxRetries,
			"base_delay":  c.Client.BaseDelay.String(),
			"rate_limit":  c.Client.RateLimit,
			"burst":       c.Client.Burst,
		},
		"log": map[string]any{
			"file":        c.Log.File,
			"max_size_mb": c.Log.MaxSizeMB,
			"max_backups": c.Log.MaxBackups,
			"compress":    c.Log.Compress,
			"verbose":     c.Log.Verbose,
		},
	}
	return toml.NewEncoder(w).Encode(doc)
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		return fmt.Errorf("failed to create config: %w", err)
	}
	if err := Encode(f, Default()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	return f.Close()
}
