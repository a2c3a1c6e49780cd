package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"

	SessionLocal    = "local"
	SessionSupabase = "supabase"

	minSessionSecretLength = 16
	minDemoPasswordLength  = 6
)

type Config struct {
	// HTTP Server
	Port               string
	LogLevel           string
	RateLimitPerMinute int
	ReportCacheTTL     time.Duration
	ShutdownTimeout    time.Duration

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror
	GoogleSpreadsheetID      string
	GoogleIncomeSheetName    string
	GoogleExpenseSheetName   string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration

	// Session
	SessionBackend  string
	SessionSecret   string
	SessionTTL      time.Duration
	SupabaseURL     string
	SupabaseAnonKey string
	RedisURL        string
	DemoEmail       string
	DemoPassword    string
}

var defaults = map[string]any{
	"PORT":                  "8081",
	"LOG_LEVEL":             "info",
	"RATE_LIMIT_PER_MINUTE": 60,
	"REPORT_CACHE_TTL":      "5m",
	"SHUTDOWN_TIMEOUT":      "10s",

	"DATA_BACKEND":   BackendMemory,
	"SQLITE_DB_PATH": "./data/wallet.db",

	"AMQP_URL":      "",
	"AMQP_EXCHANGE": "wallet",
	"AMQP_QUEUE":    "sync_entries",

	"GOOGLE_SPREADSHEET_ID":       "",
	"GOOGLE_INCOME_SHEET_NAME":    "Income",
	"GOOGLE_EXPENSE_SHEET_NAME":   "Expenses",
	"GOOGLE_SERVICE_ACCOUNT_JSON": "",
	"GOOGLE_SERVICE_ACCOUNT_FILE": "",

	"SYNC_BATCH_SIZE": 10,
	"SYNC_INTERVAL":   "30s",

	"SESSION_BACKEND":   SessionLocal,
	"SESSION_SECRET":    "",
	"SESSION_TTL":       "24h",
	"SUPABASE_URL":      "",
	"SUPABASE_ANON_KEY": "",
	"REDIS_URL":         "",
	"DEMO_EMAIL":        "demo@example.com",
	"DEMO_PASSWORD":     "demo-password",
}

// Load reads the configuration from the environment. Unset keys take the
// defaults above.
func Load() *Config {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	return &Config{
		Port:               v.GetString("PORT"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		ReportCacheTTL:     v.GetDuration("REPORT_CACHE_TTL"),
		ShutdownTimeout:    v.GetDuration("SHUTDOWN_TIMEOUT"),

		DataBackend:  strings.ToLower(v.GetString("DATA_BACKEND")),
		SQLiteDBPath: v.GetString("SQLITE_DB_PATH"),

		AMQPURL:      v.GetString("AMQP_URL"),
		AMQPExchange: v.GetString("AMQP_EXCHANGE"),
		AMQPQueue:    v.GetString("AMQP_QUEUE"),

		GoogleSpreadsheetID:      v.GetString("GOOGLE_SPREADSHEET_ID"),
		GoogleIncomeSheetName:    v.GetString("GOOGLE_INCOME_SHEET_NAME"),
		GoogleExpenseSheetName:   v.GetString("GOOGLE_EXPENSE_SHEET_NAME"),
		GoogleServiceAccountJSON: v.GetString("GOOGLE_SERVICE_ACCOUNT_JSON"),
		GoogleServiceAccountFile: v.GetString("GOOGLE_SERVICE_ACCOUNT_FILE"),

		SyncBatchSize: v.GetInt("SYNC_BATCH_SIZE"),
		SyncInterval:  v.GetDuration("SYNC_INTERVAL"),

		SessionBackend:  strings.ToLower(v.GetString("SESSION_BACKEND")),
		SessionSecret:   v.GetString("SESSION_SECRET"),
		SessionTTL:      v.GetDuration("SESSION_TTL"),
		SupabaseURL:     v.GetString("SUPABASE_URL"),
		SupabaseAnonKey: v.GetString("SUPABASE_ANON_KEY"),
		RedisURL:        v.GetString("REDIS_URL"),
		DemoEmail:       v.GetString("DEMO_EMAIL"),
		DemoPassword:    v.GetString("DEMO_PASSWORD"),
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	if c.ReportCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid report cache TTL %v: must not be negative", c.ReportCacheTTL))
	}

	validBackends := []string{BackendMemory, BackendSQLite}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
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
		if c.DataBackend != BackendSQLite {
			errors = append(errors, "AMQP sync requires the sqlite backend")
		}
	}

	errors = append(errors, c.validateSession()...)

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	return combine(errors)
}

func (c *Config) validateSession() []string {
	var errors []string

	switch c.SessionBackend {
	case SessionLocal:
		if len(c.SessionSecret) < minSessionSecretLength {
			errors = append(errors, fmt.Sprintf("session secret must be at least %d characters when using local sessions", minSessionSecretLength))
		}
		if c.SessionTTL <= 0 {
			errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be positive", c.SessionTTL))
		}
	case SessionSupabase:
		if c.SupabaseURL == "" {
			errors = append(errors, "Supabase URL is required when using supabase sessions")
		} else if u, err := url.Parse(c.SupabaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid Supabase URL '%s': must be an http(s) URL", c.SupabaseURL))
		}
		if c.SupabaseAnonKey == "" {
			errors = append(errors, "Supabase anon key is required when using supabase sessions")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid session backend '%s': must be one of [%s %s]", c.SessionBackend, SessionLocal, SessionSupabase))
	}

	if c.RedisURL != "" {
		if u, err := url.Parse(c.RedisURL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			errors = append(errors, fmt.Sprintf("invalid Redis URL '%s': scheme must be 'redis' or 'rediss'", c.RedisURL))
		}
	}

	if c.DemoEmail != "" && len(c.DemoPassword) < minDemoPasswordLength {
		errors = append(errors, fmt.Sprintf("demo password must be at least %d characters", minDemoPasswordLength))
	}
	return errors
}

// ValidateWorker checks the settings the sheet sync worker needs on top of
// the common ones.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.DataBackend != BackendSQLite {
		errors = append(errors, "sheet sync worker requires the sqlite backend")
	}
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required for the sheet sync worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required for the sheet sync worker")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	return combine(errors)
}

func combine(errors []string) error {
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
