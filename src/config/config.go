package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	RateLimit RateLimitConfig
	OrderBook OrderBookConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	Reports   ReportsConfig
}

type ServerConfig struct {
	Port                  string
	ShutdownTimeout       time.Duration
	MaxConcurrentRequests int64
	MaintenanceMode       bool
	RequestLogging        bool
}

type RateLimitConfig struct {
	Enabled     bool
	MaxRequests int
	Window      time.Duration
}

type OrderBookConfig struct {
	DefaultDepth int
	MaxDepth     int
}

type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

type MetricsConfig struct {
	MaxLatencies int
}

type ReportsConfig struct {
	Dir string
}

// Load reads configuration from the environment, after loading a .env file
// if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg := &Config{
		Server: ServerConfig{
			Port:                  getEnvString("PORT", "8080"),
			ShutdownTimeout:       getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxConcurrentRequests: int64(getEnvInt("MAX_CONCURRENT_REQUESTS", 0)),
			MaintenanceMode:       getEnvBool("MAINTENANCE_MODE", false),
			RequestLogging:        !getEnvBool("REQUEST_LOGGING_DISABLED", false),
		},
		RateLimit: RateLimitConfig{
			Enabled:     !getEnvBool("RATE_LIMIT_DISABLED", false),
			MaxRequests: getEnvInt("RATE_LIMIT_MAX", 100),
			Window:      getEnvDuration("RATE_LIMIT_WINDOW", time.Second),
		},
		OrderBook: OrderBookConfig{
			DefaultDepth: getEnvInt("ORDERBOOK_DEFAULT_DEPTH", 10),
			MaxDepth:     getEnvInt("ORDERBOOK_MAX_DEPTH", 1000),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
			File:   getEnvString("LOG_FILE", ""),
		},
		Metrics: MetricsConfig{
			MaxLatencies: getEnvInt("METRICS_MAX_LATENCIES", 10000),
		},
		Reports: ReportsConfig{
			Dir: getEnvString("REPORT_DIR", "output"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no environment is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: 10 * time.Second,
			RequestLogging:  true,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			MaxRequests: 100,
			Window:      time.Second,
		},
		OrderBook: OrderBookConfig{
			DefaultDepth: 10,
			MaxDepth:     1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			MaxLatencies: 10000,
		},
		Reports: ReportsConfig{
			Dir: "output",
		},
	}
}

func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %q", c.Server.Port)
	}

	if c.RateLimit.Enabled && (c.RateLimit.MaxRequests <= 0 || c.RateLimit.Window < time.Second) {
		return fmt.Errorf("invalid rate limit: %d requests per %s", c.RateLimit.MaxRequests, c.RateLimit.Window)
	}

	if c.OrderBook.DefaultDepth <= 0 || c.OrderBook.MaxDepth <= 0 {
		return fmt.Errorf("invalid order book depth: default %d, max %d", c.OrderBook.DefaultDepth, c.OrderBook.MaxDepth)
	}

	if c.Metrics.MaxLatencies <= 0 {
		return fmt.Errorf("invalid metrics window: %d", c.Metrics.MaxLatencies)
	}

	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Server{Port:%s, Shutdown:%s}, RateLimit{Enabled:%v, %d/%s}, OrderBook{Depth:%d/%d}, Logging{%s, %s}",
		c.Server.Port, c.Server.ShutdownTimeout,
		c.RateLimit.Enabled, c.RateLimit.MaxRequests, c.RateLimit.Window,
		c.OrderBook.DefaultDepth, c.OrderBook.MaxDepth,
		c.Logging.Level, c.Logging.Format,
	)
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue >= 0 {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		switch strings.ToLower(value) {
		case "yes", "on":
			return true
		case "no", "off":
			return false
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}
