package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// APIConfig holds settings for the remote task API.
type APIConfig struct {
	// BaseURL is the root URL of the task server.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds a single HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// MaxRetries is how many times one REST call is retried in place.
	// It is unrelated to the sync queue's retry budget.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	RetryDelayMs int     `mapstructure:"retry_delay_ms" yaml:"retry_delay_ms"`
	RatePerSec   float64 `mapstructure:"rate_per_sec" yaml:"rate_per_sec"`
}

// SyncConfig holds sync engine settings.
type SyncConfig struct {
	// IntervalSec is the auto-sync period.
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`

	// MaxRetries is the number of drain passes an operation may fail
	// before it is dropped.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// ProbeIntervalSec is how often connectivity is checked.
	ProbeIntervalSec int `mapstructure:"probe_interval_sec" yaml:"probe_interval_sec"`
}

// StoreConfig holds local persistence settings.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// UserConfig identifies the signed-in user.
type UserConfig struct {
	ID string `mapstructure:"id" yaml:"id"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API   APIConfig   `mapstructure:"api" yaml:"api"`
	Sync  SyncConfig  `mapstructure:"sync" yaml:"sync"`
	Store StoreConfig `mapstructure:"store" yaml:"store"`
	User  UserConfig  `mapstructure:"user" yaml:"user"`
	Log   LogConfig   `mapstructure:"log" yaml:"log"`
}

// SyncInterval returns the auto-sync period as a duration.
func (c *AppConfig) SyncInterval() time.Duration {
	return time.Duration(c.Sync.IntervalSec) * time.Second
}

// ProbeInterval returns the connectivity probe period as a duration.
func (c *AppConfig) ProbeInterval() time.Duration {
	return time.Duration(c.Sync.ProbeIntervalSec) * time.Second
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/tasksync/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "tasksync", "config.yaml")
}

// DefaultStorePath returns the default SQLite database location.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "tasksync.db")
	}
	return filepath.Join(home, ".local", "share", "tasksync", "tasksync.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:      "http://localhost:3000",
			TimeoutSec:   30,
			MaxRetries:   3,
			RetryDelayMs: 1000,
			RatePerSec:   5,
		},
		Sync: SyncConfig{
			IntervalSec:      30,
			MaxRetries:       3,
			ProbeIntervalSec: 15,
		},
		Store: StoreConfig{Path: DefaultStorePath()},
		Log:   LogConfig{Level: "info"},
	}
}

func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout_sec", d.API.TimeoutSec)
	v.SetDefault("api.max_retries", d.API.MaxRetries)
	v.SetDefault("api.retry_delay_ms", d.API.RetryDelayMs)
	v.SetDefault("api.rate_per_sec", d.API.RatePerSec)
	v.SetDefault("sync.interval_sec", d.Sync.IntervalSec)
	v.SetDefault("sync.max_retries", d.Sync.MaxRetries)
	v.SetDefault("sync.probe_interval_sec", d.Sync.ProbeIntervalSec)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("user.id", "")
	v.SetDefault("log.level", d.Log.Level)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Missing files yield the defaults. TASKSYNC_* environment variables
// override file values (e.g. TASKSYNC_API_BASE_URL).
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("tasksync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Sync.MaxRetries < 1 {
		cfg.Sync.MaxRetries = 3
	}
	if cfg.Sync.IntervalSec <= 0 {
		cfg.Sync.IntervalSec = 30
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("sync", cfg.Sync)
	v.Set("store", cfg.Store)
	v.Set("user", cfg.User)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
