// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "rdmon.yaml"

// MemoryDSN selects the in-memory settings store instead of SQLite.
const MemoryDSN = "memory"

// Config is the root configuration structure.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Secret   string         `yaml:"secret,omitempty"` // seals the stored API key
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// APIConfig configures the remote API client.
type APIConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	APIKey   string        `yaml:"api_key,omitempty"`   // overrides the stored key
	DemoMode bool          `yaml:"demo_mode,omitempty"` // forces demo mode
}

// RefreshConfig configures the periodic refresh and demo latency.
type RefreshConfig struct {
	LiveInterval   time.Duration `yaml:"live_interval"`
	DemoInterval   time.Duration `yaml:"demo_interval"`
	DemoMinLatency time.Duration `yaml:"demo_min_latency"`
	DemoMaxLatency time.Duration `yaml:"demo_max_latency"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig configures the settings database.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, or "memory"
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	var cfg Config
	cfg.Metrics.Enabled = true
	// Zero latency is a valid setting, so these are only seeded here.
	cfg.Refresh.DemoMinLatency = 500 * time.Millisecond
	cfg.Refresh.DemoMaxLatency = 2 * time.Second
	setDefaults(&cfg)
	return cfg
}

// Load reads configuration from a YAML file. Fields absent from the file
// keep their defaults; RDMON_* variables override both.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadFromEnv creates configuration from defaults and environment variables.
//
// Environment variables:
//
//	RDMON_API_BASE_URL           - Remote API base (default: https://api.real-debrid.com/rest/1.0/)
//	RDMON_API_TIMEOUT            - Request timeout (default: 60s)
//	RDMON_API_KEY                - API key, overrides the stored one
//	RDMON_DEMO_MODE              - Force demo mode
//	RDMON_REFRESH_LIVE_INTERVAL  - Live refresh period (default: 5m)
//	RDMON_REFRESH_DEMO_INTERVAL  - Demo refresh period (default: 1m)
//	RDMON_SERVER_HOST            - Server host (default: 127.0.0.1)
//	RDMON_SERVER_PORT            - Server port (default: 8420)
//	RDMON_DATABASE_DSN           - Settings database (default: rdmon.db)
//	RDMON_SECRET                 - Secret sealing the stored API key
//	RDMON_LOG_LEVEL              - Log level (default: info)
//	RDMON_LOG_FORMAT             - Log format: json or console (default: console)
//	RDMON_METRICS_ENABLED        - Enable /metrics (default: true)
//	RDMON_METRICS_PATH           - Metrics path (default: /metrics)
func LoadFromEnv() (*Config, error) {
	cfg := Default()

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadWithFallback loads path when it exists and falls back to the
// environment otherwise. An empty path tries DefaultPath.
func LoadWithFallback(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies RDMON_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// API
	if v := os.Getenv("RDMON_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("RDMON_API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.API.Timeout = d
		}
	}
	if v := os.Getenv("RDMON_API_KEY"); v != "" {
		cfg.API.APIKey = v
	}
	if v := os.Getenv("RDMON_DEMO_MODE"); v != "" {
		cfg.API.DemoMode = parseBool(v)
	}

	// Refresh
	if v := os.Getenv("RDMON_REFRESH_LIVE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Refresh.LiveInterval = d
		}
	}
	if v := os.Getenv("RDMON_REFRESH_DEMO_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Refresh.DemoInterval = d
		}
	}

	// Server
	if v := os.Getenv("RDMON_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("RDMON_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("RDMON_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("RDMON_SECRET"); v != "" {
		cfg.Secret = v
	}

	// Logging
	if v := os.Getenv("RDMON_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RDMON_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics
	if v := os.Getenv("RDMON_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("RDMON_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "https://api.real-debrid.com/rest/1.0/"
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 60 * time.Second
	}

	if cfg.Refresh.LiveInterval == 0 {
		cfg.Refresh.LiveInterval = 300 * time.Second
	}
	if cfg.Refresh.DemoInterval == 0 {
		cfg.Refresh.DemoInterval = 60 * time.Second
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8420
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "rdmon.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an http(s) URL, got %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must be positive")
	}

	if cfg.Refresh.LiveInterval < time.Second || cfg.Refresh.DemoInterval < time.Second {
		return fmt.Errorf("refresh intervals must be at least 1s")
	}
	if cfg.Refresh.DemoMinLatency < 0 || cfg.Refresh.DemoMaxLatency < cfg.Refresh.DemoMinLatency {
		return fmt.Errorf("refresh.demo_max_latency must not be below refresh.demo_min_latency")
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	if _, err := zerolog.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}
	return nil
}
