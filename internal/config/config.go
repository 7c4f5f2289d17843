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

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string

	// MirrorBackend is the store kept in step with ledger events by
	// abonnements-mirror. Empty disables mirroring.
	MirrorBackend string

	// Memory
	MemorySeedFile string

	// SQLite
	SQLiteDBPath string

	// Excel workbook
	XLSXPath  string
	XLSXSheet string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// AMQP (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Display
	Currency string
	Locale   string

	// Ledger behavior
	DueSoonDays      int
	ReminderInterval time.Duration
	StoreTimeout     time.Duration

	LogLevel string
}

var (
	validBackends  = []string{"memory", "sheets", "sqlite", "xlsx"}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8081"),
		DataBackend: getEnv("DATA_BACKEND", "memory"),

		MirrorBackend: getEnv("MIRROR_BACKEND", ""),

		MemorySeedFile: getEnv("MEMORY_SEED_FILE", "data/seed.yaml"),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/abonnements.db"),
		XLSXPath:       getEnv("XLSX_PATH", "./data/abonnements.xlsx"),
		XLSXSheet:      getEnv("XLSX_SHEET", "Abonnements"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Sheet1"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "abonnements"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		Currency: getEnv("CURRENCY", "EUR"),
		Locale:   getEnv("LOCALE", "fr-FR"),

		DueSoonDays:      getEnvInt("DUE_SOON_DAYS", 7),
		ReminderInterval: getEnvDuration("REMINDER_INTERVAL", time.Hour),
		StoreTimeout:     getEnvDuration("STORE_TIMEOUT", 7*time.Second),

		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	errors = append(errors, c.validateBackend("data", c.DataBackend)...)

	if c.MirrorBackend != "" {
		switch {
		case c.MirrorBackend == c.DataBackend:
			errors = append(errors, fmt.Sprintf("mirror backend '%s' must differ from the data backend", c.MirrorBackend))
		case c.MirrorBackend == "memory":
			errors = append(errors, "mirror backend cannot be memory: a mirror must outlive the process")
		default:
			errors = append(errors, c.validateBackend("mirror", c.MirrorBackend)...)
		}
		if c.AMQPURL == "" {
			errors = append(errors, "AMQP_URL is required when MIRROR_BACKEND is set")
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
	}

	if _, err := currency.ParseISO(c.Currency); err != nil {
		errors = append(errors, fmt.Sprintf("invalid currency '%s': must be an ISO 4217 code", c.Currency))
	}
	if _, err := language.Parse(c.Locale); err != nil {
		errors = append(errors, fmt.Sprintf("invalid locale '%s': %v", c.Locale, err))
	}

	if c.DueSoonDays < 0 || c.DueSoonDays > 366 {
		errors = append(errors, fmt.Sprintf("invalid due-soon window %d: must be between 0 and 366 days", c.DueSoonDays))
	}

	if c.ReminderInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid reminder interval %v: must be at least 1 minute", c.ReminderInterval))
	} else if c.ReminderInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid reminder interval %v: must be at most 24 hours", c.ReminderInterval))
	}

	if c.StoreTimeout < time.Second || c.StoreTimeout > 2*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid store timeout %v: must be between 1s and 2m", c.StoreTimeout))
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// validateBackend checks one backend selection and the settings it needs.
func (c *Config) validateBackend(role, backend string) []string {
	var errors []string

	if !slices.Contains(validBackends, backend) {
		errors = append(errors, fmt.Sprintf("invalid %s backend '%s': must be one of %v", role, backend, validBackends))
	}

	switch backend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case "xlsx":
		if c.XLSXPath == "" {
			errors = append(errors, "workbook path cannot be empty when using xlsx backend")
		} else if ext := strings.ToLower(filepath.Ext(c.XLSXPath)); ext != ".xlsx" && ext != ".xlsm" {
			errors = append(errors, fmt.Sprintf("invalid workbook path '%s': must end in .xlsx", c.XLSXPath))
		}
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		hasJSON := c.GoogleServiceAccountJSON != ""
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasJSON && !hasFile {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets backend")
		}
		if !hasJSON && hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	return errors
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
