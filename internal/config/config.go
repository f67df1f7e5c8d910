// Package config loads the yaml application configuration and the
// colon-separated thread-rule files.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Rules   RulesConfig   `yaml:"rules"`
	Audit   AuditConfig   `yaml:"audit"`
	MemLock MemLockConfig `yaml:"memlock"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type ServerConfig struct {
	Addr         string `yaml:"addr"`
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`

	// Workers are parked threads spawned at startup, one per name. They
	// exist to be targeted by rules, mainly for demos and testing.
	Workers []string `yaml:"workers"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json

	// VerboseErrors reports every failed scheduling syscall at error
	// level instead of debug.
	VerboseErrors bool `yaml:"verbose_errors"`
}

// RulesConfig locates the two rule files read at startup: the system file
// first, then a per-user file resolved from the home directory and an
// environment variable naming the relative path.
type RulesConfig struct {
	SystemFile string `yaml:"system_file"`

	// UserFileEnv names the environment variable holding the user file
	// path relative to $HOME; UserFileDefault applies when it is unset.
	UserFileEnv     string `yaml:"user_file_env"`
	UserFileDefault string `yaml:"user_file_default"`

	// HotReload re-reads the rule files when they change on disk.
	HotReload bool   `yaml:"hot_reload"`
	Debounce  string `yaml:"debounce"`
}

type AuditConfig struct {
	// Output is the jsonl audit trail path; empty disables it.
	Output   string         `yaml:"output"`
	Rotation RotationConfig `yaml:"rotation"`

	// SQLitePath is the queryable event store; empty disables it.
	SQLitePath string `yaml:"sqlite_path"`

	// Webhook posts event batches to an external collector; empty URL
	// disables it.
	Webhook WebhookConfig `yaml:"webhook"`
}

type WebhookConfig struct {
	URL           string            `yaml:"url"`
	BatchSize     int               `yaml:"batch_size"`
	FlushInterval string            `yaml:"flush_interval"`
	Timeout       string            `yaml:"timeout"`
	Headers       map[string]string `yaml:"headers"`
}

type RotationConfig struct {
	MaxSizeMB  int `yaml:"max_size_mb"`
	MaxBackups int `yaml:"max_backups"`
}

type MemLockConfig struct {
	// OnStartup locks process memory as soon as the server starts.
	OnStartup bool `yaml:"on_startup"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromBytes parses configuration without environment overrides, for
// tests where env vars should not interfere.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:7300"
	}
	if cfg.Server.ReadTimeout == "" {
		cfg.Server.ReadTimeout = "30s"
	}
	if cfg.Server.WriteTimeout == "" {
		cfg.Server.WriteTimeout = "30s"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Rules.SystemFile == "" {
		cfg.Rules.SystemFile = "/etc/rtrules"
	}
	if cfg.Rules.UserFileEnv == "" {
		cfg.Rules.UserFileEnv = "RTTUNE_USERCONFIG"
	}
	if cfg.Rules.UserFileDefault == "" {
		cfg.Rules.UserFileDefault = ".rtrules"
	}
	if cfg.Rules.Debounce == "" {
		cfg.Rules.Debounce = "500ms"
	}
	if cfg.Audit.Rotation.MaxSizeMB == 0 {
		cfg.Audit.Rotation.MaxSizeMB = 100
	}
	if cfg.Audit.Rotation.MaxBackups == 0 {
		cfg.Audit.Rotation.MaxBackups = 3
	}
	if cfg.Audit.Webhook.FlushInterval == "" {
		cfg.Audit.Webhook.FlushInterval = "10s"
	}
	if cfg.Audit.Webhook.Timeout == "" {
		cfg.Audit.Webhook.Timeout = "5s"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RTTUNE_LISTEN"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("RTTUNE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func validate(cfg *Config) error {
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q: must be debug, info, warn or error", cfg.Logging.Level)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q: must be text or json", cfg.Logging.Format)
	}
	return nil
}
