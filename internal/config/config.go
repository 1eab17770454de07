package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"costindex/internal/core"
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Backend selection
	DataBackend  string
	SQLiteDBPath string
	// SeedDir holds <SERIES_ID>.csv files loaded by the memory backend.
	SeedDir string

	// FRED
	FREDAPIKey  string
	FREDBaseURL string
	FREDTimeout time.Duration

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Refresh worker
	RefreshInterval    time.Duration
	RefreshConcurrency int
	RefreshSeries      []string

	// Dashboard
	NationalSeriesID string
	DriversLookback  int
	DriversTopK      int
	CacheTTL         time.Duration
	CacheSize        int

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	MetricsEnabled bool
	// WorkerMetricsAddr is where the refresh worker serves /metrics when
	// MetricsEnabled is set.
	WorkerMetricsAddr string
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/costindex.db"),
		SeedDir:      getEnv("SEED_DIR", ""),

		FREDAPIKey:  getEnv("FRED_API_KEY", ""),
		FREDBaseURL: getEnv("FRED_BASE_URL", "https://api.stlouisfed.org/fred"),
		FREDTimeout: getEnvDuration("FRED_TIMEOUT", 15*time.Second),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "costindex"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "series_refresh"),

		RefreshInterval:    getEnvDuration("REFRESH_INTERVAL", 24*time.Hour),
		RefreshConcurrency: getEnvInt("REFRESH_CONCURRENCY", 4),
		RefreshSeries:      getEnvList("REFRESH_SERIES", core.CatalogIDs()),

		NationalSeriesID: getEnv("NATIONAL_SERIES_ID", core.NationalSeriesID),
		DriversLookback:  getEnvInt("DRIVERS_LOOKBACK", 12),
		DriversTopK:      getEnvInt("DRIVERS_TOP_K", 5),
		CacheTTL:         getEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheSize:        getEnvInt("CACHE_SIZE", 100),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		MetricsEnabled:    getEnvBool("METRICS_ENABLED", true),
		WorkerMetricsAddr: getEnv("WORKER_METRICS_ADDR", ":9091"),
	}
}

// ExportEnabled reports whether dashboards should be exported to Google Sheets.
func (c *Config) ExportEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	validBackends := []string{"memory", "sqlite"}
	switch c.DataBackend {
	case "memory":
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if u, err := url.Parse(c.FREDBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errors = append(errors, fmt.Sprintf("invalid FRED base URL '%s': must be an http(s) URL", c.FREDBaseURL))
	}
	if c.FREDTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid FRED timeout %v: must be positive", c.FREDTimeout))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RefreshInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at least 1 minute", c.RefreshInterval))
	}
	if c.RefreshConcurrency < 1 || c.RefreshConcurrency > 32 {
		errors = append(errors, fmt.Sprintf("invalid refresh concurrency %d: must be between 1 and 32", c.RefreshConcurrency))
	}

	if c.NationalSeriesID == "" {
		errors = append(errors, "national series id cannot be empty")
	}
	if c.DriversLookback < 1 {
		errors = append(errors, fmt.Sprintf("invalid drivers lookback %d: must be at least 1", c.DriversLookback))
	}
	if c.DriversTopK < 1 {
		errors = append(errors, fmt.Sprintf("invalid drivers top k %d: must be at least 1", c.DriversTopK))
	}
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be positive", c.CacheTTL))
	}

	if c.ExportEnabled() && c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided when GOOGLE_SPREADSHEET_ID is set")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
