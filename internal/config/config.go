// Package config loads process settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Dataset origins.
const (
	BackendHTTP   = "http"
	BackendFile   = "file"
	BackendSheets = "sheets"
	BackendSQLite = "sqlite"
)

var validBackends = []string{BackendHTTP, BackendFile, BackendSheets, BackendSQLite}

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Dataset
	DataBackend  string
	DatasetURL   string
	DatasetFile  string
	DatasetTTL   time.Duration
	FetchRetries int
	FetchTimeout time.Duration

	// How long a stale table is served after a failed refetch, and how
	// often a sqlite snapshot is checked for a newer import.
	DatasetFailureTTL     time.Duration
	SnapshotCheckInterval time.Duration

	// Database
	SQLiteDBPath string

	// AMQP, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetRange         string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Presentation
	StyleFile string
	LogoURL   string

	// Worker
	RefreshInterval time.Duration

	// Refresh endpoint rate limit
	RefreshPerMinute int
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend:  strings.ToLower(getEnv("DATA_BACKEND", BackendHTTP)),
		DatasetURL:   getEnv("DATASET_URL", "https://raw.githubusercontent.com/h3mps/fonrealwebapp/master/fon-REAL-data.csv"),
		DatasetFile:  getEnv("DATASET_FILE", "./data/fon-REAL-data.csv"),
		DatasetTTL:   getEnvDuration("DATASET_TTL", 24*time.Hour),
		FetchRetries: getEnvInt("FETCH_RETRIES", 3),
		FetchTimeout: getEnvDuration("FETCH_TIMEOUT", 60*time.Second),

		DatasetFailureTTL:     getEnvDuration("DATASET_FAILURE_TTL", time.Minute),
		SnapshotCheckInterval: getEnvDuration("SNAPSHOT_CHECK_INTERVAL", 5*time.Second),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fonreal.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fonreal"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "dataset_refresh"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetRange:         getEnv("GOOGLE_SHEET_RANGE", "A:F"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		StyleFile: getEnv("STYLE_FILE", ""),
		LogoURL:   getEnv("LOGO_URL", "https://raw.githubusercontent.com/h3mps/t1webapp/master/fon-icon.png"),

		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", time.Hour),

		RefreshPerMinute: getEnvInt("REFRESH_PER_MINUTE", 6),
	}
}

// AMQPEnabled reports whether refresh requests go through a broker.
func (c *Config) AMQPEnabled() bool {
	return strings.TrimSpace(c.AMQPURL) != ""
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

	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendHTTP:
		if msg := checkHTTPURL("dataset URL", c.DatasetURL); msg != "" {
			errors = append(errors, msg)
		}
	case BackendFile:
		if c.DatasetFile == "" {
			errors = append(errors, "dataset file cannot be empty when using file backend")
		}
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case BackendSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleSheetRange == "" {
			errors = append(errors, "Google Sheet range is required when using sheets backend")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS must be provided for sheets backend")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.DatasetTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid dataset TTL %v: must be at least 1 second", c.DatasetTTL))
	} else if c.DatasetTTL > 7*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid dataset TTL %v: must be at most 168 hours", c.DatasetTTL))
	}

	if c.FetchRetries < 1 || c.FetchRetries > 10 {
		errors = append(errors, fmt.Sprintf("invalid fetch retries %d: must be between 1 and 10", c.FetchRetries))
	}
	if c.FetchTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid fetch timeout %v: must be at least 1 second", c.FetchTimeout))
	}

	if c.DatasetFailureTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid dataset failure TTL %v: must be at least 1 second", c.DatasetFailureTTL))
	}
	if c.SnapshotCheckInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid snapshot check interval %v: must be 0 or positive", c.SnapshotCheckInterval))
	}

	if c.AMQPEnabled() {
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

	if c.LogoURL != "" {
		if msg := checkHTTPURL("logo URL", c.LogoURL); msg != "" {
			errors = append(errors, msg)
		}
	}

	if c.RefreshInterval != 0 && c.RefreshInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be 0 or at least 1 minute", c.RefreshInterval))
	} else if c.RefreshInterval > 7*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at most 168 hours", c.RefreshInterval))
	}

	if c.RefreshPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid refresh rate %d: must be at least 1 per minute", c.RefreshPerMinute))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func checkHTTPURL(name, raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("invalid %s '%s': %v", name, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("invalid %s scheme '%s': must be 'http' or 'https'", name, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Sprintf("invalid %s '%s': missing host", name, raw)
	}
	return ""
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
