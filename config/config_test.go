package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rdmonitor/rdmon/config"
)

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "{}\n")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.API.BaseURL != "https://api.real-debrid.com/rest/1.0/" {
		t.Errorf("API.BaseURL = %s", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 60*time.Second {
		t.Errorf("API.Timeout = %v, want 60s", cfg.API.Timeout)
	}
	if cfg.Refresh.LiveInterval != 5*time.Minute || cfg.Refresh.DemoInterval != time.Minute {
		t.Errorf("Refresh = %+v", cfg.Refresh)
	}
	if cfg.Refresh.DemoMinLatency != 500*time.Millisecond || cfg.Refresh.DemoMaxLatency != 2*time.Second {
		t.Errorf("demo latency = %v..%v", cfg.Refresh.DemoMinLatency, cfg.Refresh.DemoMaxLatency)
	}
	if cfg.Server.Addr() != "127.0.0.1:8420" {
		t.Errorf("Server.Addr() = %s", cfg.Server.Addr())
	}
	if cfg.Database.DSN != "rdmon.db" {
		t.Errorf("Database.DSN = %s", cfg.Database.DSN)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: "http://localhost:9000/rest/"
  timeout: 5s
  demo_mode: true
refresh:
  live_interval: 10m
  demo_min_latency: 0s
  demo_max_latency: 100ms
server:
  port: 9999
database:
  dsn: memory
logging:
  level: debug
  format: json
metrics:
  enabled: false
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.API.BaseURL != "http://localhost:9000/rest/" || cfg.API.Timeout != 5*time.Second || !cfg.API.DemoMode {
		t.Errorf("API = %+v", cfg.API)
	}
	if cfg.Refresh.LiveInterval != 10*time.Minute || cfg.Refresh.DemoInterval != time.Minute {
		t.Errorf("Refresh = %+v", cfg.Refresh)
	}
	if cfg.Refresh.DemoMinLatency != 0 || cfg.Refresh.DemoMaxLatency != 100*time.Millisecond {
		t.Errorf("demo latency = %v..%v", cfg.Refresh.DemoMinLatency, cfg.Refresh.DemoMaxLatency)
	}
	if cfg.Server.Port != 9999 || cfg.Database.DSN != config.MemoryDSN {
		t.Errorf("Server/Database = %+v / %+v", cfg.Server, cfg.Database)
	}
	if cfg.Metrics.Enabled {
		t.Error("metrics should be disabled by the file")
	}
}

func TestLoad_ZeroLatency(t *testing.T) {
	path := writeConfig(t, "refresh:\n  demo_min_latency: 0s\n  demo_max_latency: 0s\n")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Refresh.DemoMinLatency != 0 || cfg.Refresh.DemoMaxLatency != 0 {
		t.Errorf("demo latency = %v..%v, want 0..0", cfg.Refresh.DemoMinLatency, cfg.Refresh.DemoMaxLatency)
	}

	path = writeConfig(t, "refresh:\n  demo_max_latency: 3s\n")
	cfg, err = config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Refresh.DemoMinLatency != 500*time.Millisecond || cfg.Refresh.DemoMaxLatency != 3*time.Second {
		t.Errorf("absent min should keep its default, got %v..%v", cfg.Refresh.DemoMinLatency, cfg.Refresh.DemoMaxLatency)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("MY_RD_SECRET", "from-env")
	path := writeConfig(t, "secret: \"${MY_RD_SECRET}\"\n")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Secret != "from-env" {
		t.Errorf("Secret = %q, want from-env", cfg.Secret)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
api:
  api_key: "file-key"
server:
  port: 9000
logging:
  level: warn
`)
	t.Setenv("RDMON_API_KEY", "env-key")
	t.Setenv("RDMON_DEMO_MODE", "yes")
	t.Setenv("RDMON_SERVER_PORT", "7000")
	t.Setenv("RDMON_LOG_LEVEL", "debug")
	t.Setenv("RDMON_REFRESH_DEMO_INTERVAL", "30s")
	t.Setenv("RDMON_METRICS_ENABLED", "0")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.API.APIKey != "env-key" || !cfg.API.DemoMode {
		t.Errorf("API = %+v", cfg.API)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %s, want debug", cfg.Logging.Level)
	}
	if cfg.Refresh.DemoInterval != 30*time.Second {
		t.Errorf("DemoInterval = %v, want 30s", cfg.Refresh.DemoInterval)
	}
	if cfg.Metrics.Enabled {
		t.Error("RDMON_METRICS_ENABLED=0 should disable metrics")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad url", "api:\n  base_url: \"ftp://x\"\n", "api.base_url"},
		{"relative url", "api:\n  base_url: \"rest/1.0\"\n", "api.base_url"},
		{"interval too short", "refresh:\n  live_interval: 10ms\n", "refresh intervals"},
		{"latency inverted", "refresh:\n  demo_min_latency: 3s\n  demo_max_latency: 1s\n", "demo_max_latency"},
		{"port", "server:\n  port: 70000\n", "server.port"},
		{"log level", "logging:\n  level: loud\n", "logging.level"},
		{"log format", "logging:\n  format: xml\n", "logging.format"},
		{"metrics path", "metrics:\n  path: metrics\n", "metrics.path"},
		{"yaml", "api: [\n", "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadWithFallback(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		path := writeConfig(t, "server:\n  port: 9100\n")
		cfg, err := config.LoadWithFallback(path)
		if err != nil {
			t.Fatalf("LoadWithFallback error: %v", err)
		}
		if cfg.Server.Port != 9100 {
			t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
		}
	})

	t.Run("env", func(t *testing.T) {
		t.Setenv("RDMON_SERVER_PORT", "9200")
		cfg, err := config.LoadWithFallback(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatalf("LoadWithFallback error: %v", err)
		}
		if cfg.Server.Port != 9200 {
			t.Errorf("Server.Port = %d, want 9200", cfg.Server.Port)
		}
	})
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	if !cfg.Metrics.Enabled || cfg.Refresh.LiveInterval != 5*time.Minute {
		t.Errorf("Default() = %+v", cfg)
	}
}

// Helpers

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rdmon.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
