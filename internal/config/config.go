package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends selectable for the draft store.
const (
	BackendSQLite  = "sqlite"
	BackendMongoDB = "mongodb"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Telegram  TelegramConfig
	Sheets    SheetsConfig
	Reference ReferenceConfig
	Drafts    DraftsConfig
	Scheduler SchedulerConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// TelegramConfig contains bot credentials and registration options.
type TelegramConfig struct {
	BotToken         string
	RegistrationCode string
}

// SheetsConfig contains configuration required to interact with Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	ReferenceID     string
	ReportsID       string
}

// ReferenceConfig holds snapshot cache settings.
type ReferenceConfig struct {
	RefreshInterval time.Duration
	MaxAge          time.Duration
}

// DraftsConfig selects and parameterizes the draft store backend.
type DraftsConfig struct {
	Backend     string
	SQLitePath  string
	MongoURI    string
	MongoDBName string
}

// SchedulerConfig holds cron-related settings.
type SchedulerConfig struct {
	ProbeSchedule string
	Timezone      string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	refresh, err := minutesFromEnv("CACHE_REFRESH_MINUTES", 1440)
	if err != nil {
		return nil, err
	}

	maxAge, err := minutesFromEnv("CACHE_MAX_AGE_MINUTES", 4320)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Telegram: TelegramConfig{
			BotToken:         os.Getenv("TELEGRAM_TOKEN"),
			RegistrationCode: getenvWithDefault("REGISTRATION_CODE", "vipe"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			ReferenceID:     os.Getenv("SHEET_KEY_REFERENCE"),
			ReportsID:       getenvWithDefault("SHEET_KEY_REPORTS", os.Getenv("SHEET_KEY_REFERENCE")),
		},
		Reference: ReferenceConfig{
			RefreshInterval: refresh,
			MaxAge:          maxAge,
		},
		Drafts: DraftsConfig{
			Backend:     getenvWithDefault("DRAFT_STORE_BACKEND", BackendSQLite),
			SQLitePath:  getenvWithDefault("DRAFT_DB_PATH", "data/drafts.db"),
			MongoURI:    os.Getenv("MONGODB_URI"),
			MongoDBName: getenvWithDefault("MONGODB_DB_NAME", "reportbot"),
		},
		Scheduler: SchedulerConfig{
			ProbeSchedule: getenvWithDefault("CONNECTIVITY_PROBE_SCHEDULE", "* * * * *"),
			Timezone:      getenvWithDefault("TIMEZONE", "Europe/Moscow"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.Telegram.BotToken == "" {
		return errors.New("TELEGRAM_TOKEN must be provided")
	}

	if c.Sheets.CredentialsPath == "" {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH must be provided")
	}

	if c.Sheets.ReferenceID == "" {
		return errors.New("SHEET_KEY_REFERENCE must be provided")
	}

	switch c.Drafts.Backend {
	case BackendSQLite:
		if c.Drafts.SQLitePath == "" {
			return errors.New("DRAFT_DB_PATH must be provided for the sqlite backend")
		}
	case BackendMongoDB:
		if c.Drafts.MongoURI == "" {
			return errors.New("MONGODB_URI must be provided for the mongodb backend")
		}
	default:
		return fmt.Errorf("unknown DRAFT_STORE_BACKEND %q", c.Drafts.Backend)
	}

	if c.Reference.RefreshInterval <= 0 {
		return errors.New("CACHE_REFRESH_MINUTES must be positive")
	}

	if c.Reference.MaxAge < c.Reference.RefreshInterval {
		return errors.New("CACHE_MAX_AGE_MINUTES must not be below CACHE_REFRESH_MINUTES")
	}

	if c.Scheduler.ProbeSchedule == "" {
		return errors.New("CONNECTIVITY_PROBE_SCHEDULE must be provided")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func minutesFromEnv(key string, fallback int) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(fallback) * time.Minute, nil
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer number of minutes: %w", key, err)
	}
	return time.Duration(minutes) * time.Minute, nil
}
