package config

import (
	"reflect"
	"testing"
	"time"
)

var envKeys = []string{
	"PORT", "SHUTDOWN_TIMEOUT", "MAX_CONCURRENT_REQUESTS", "MAINTENANCE_MODE",
	"REQUEST_LOGGING_DISABLED", "RATE_LIMIT_DISABLED", "RATE_LIMIT_MAX",
	"RATE_LIMIT_WINDOW", "ORDERBOOK_DEFAULT_DEPTH", "ORDERBOOK_MAX_DEPTH",
	"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE", "METRICS_MAX_LATENCIES", "REPORT_DIR",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func mustLoad(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := mustLoad(t)

	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("Expected defaults %s, got %s", Default(), cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("MAX_CONCURRENT_REQUESTS", "50")
	t.Setenv("MAINTENANCE_MODE", "on")
	t.Setenv("REQUEST_LOGGING_DISABLED", "true")
	t.Setenv("RATE_LIMIT_MAX", "7")
	t.Setenv("RATE_LIMIT_WINDOW", "2m")
	t.Setenv("ORDERBOOK_DEFAULT_DEPTH", "5")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "pretty")
	t.Setenv("REPORT_DIR", "/tmp/reports")

	cfg := mustLoad(t)

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port 9090, got: %s", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Errorf("Expected shutdown timeout 3s, got: %s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.MaxConcurrentRequests != 50 {
		t.Errorf("Expected 50 concurrent requests, got: %d", cfg.Server.MaxConcurrentRequests)
	}
	if !cfg.Server.MaintenanceMode {
		t.Error("Expected maintenance mode on")
	}
	if cfg.Server.RequestLogging {
		t.Error("Expected request logging off")
	}
	if cfg.RateLimit.MaxRequests != 7 || cfg.RateLimit.Window != 2*time.Minute {
		t.Errorf("Expected 7 requests per 2m, got %d per %s", cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	}
	if cfg.OrderBook.DefaultDepth != 5 {
		t.Errorf("Expected default depth 5, got: %d", cfg.OrderBook.DefaultDepth)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "pretty" {
		t.Errorf("Expected debug/pretty logging, got %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Reports.Dir != "/tmp/reports" {
		t.Errorf("Expected report dir /tmp/reports, got: %s", cfg.Reports.Dir)
	}
}

func TestLoadIgnoresUnparseableValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT_MAX", "-5")
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")
	t.Setenv("MAINTENANCE_MODE", "maybe")

	cfg := mustLoad(t)

	if cfg.RateLimit.MaxRequests != 100 {
		t.Errorf("Expected default rate limit 100, got: %d", cfg.RateLimit.MaxRequests)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected default shutdown timeout, got: %s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.MaintenanceMode {
		t.Error("Expected maintenance mode off")
	}
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "70000")

	if _, err := Load(); err == nil {
		t.Error("Expected error for port 70000")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"default", func(*Config) {}, true},
		{"non-numeric port", func(c *Config) { c.Server.Port = "http" }, false},
		{"zero rate limit", func(c *Config) { c.RateLimit.MaxRequests = 0 }, false},
		{"sub-second window", func(c *Config) { c.RateLimit.Window = 100 * time.Millisecond }, false},
		{"disabled rate limit ignores its values", func(c *Config) {
			c.RateLimit.Enabled = false
			c.RateLimit.MaxRequests = 0
		}, true},
		{"zero depth", func(c *Config) { c.OrderBook.MaxDepth = 0 }, false},
		{"zero latency window", func(c *Config) { c.Metrics.MaxLatencies = 0 }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.valid && err != nil {
				t.Errorf("Expected valid config, got: %v", err)
			}
			if !tc.valid && err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
