// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the database and scrape artifacts (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	// EDGAR access. The SEC requires a descriptive User-Agent with a
	// contact address on every request.
	EdgarUserAgent string
	EdgarRateLimit float64 // requests per second against sec.gov

	// AI brief generation
	GeminiAPIKey string
	BriefModel   string

	// Classification behavior: when true, positions with zero share and
	// value change get their own UNCHANGED category instead of falling
	// through the strict value-direction test.
	UnchangedCategory bool

	SMTP   SMTPConfig
	Backup BackupConfig
}

// SMTPConfig holds email delivery settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	DryRun   bool // log instead of sending
}

// BackupConfig holds S3 database backup settings
type BackupConfig struct {
	Enabled bool
	Bucket  string
	Prefix  string
	Region  string
	// Optional static credentials. When empty the default AWS
	// credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("HOLDIQ_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:           absDataDir,
		Port:              getEnvAsInt("HOLDIQ_PORT", 8010),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DevMode:           getEnvAsBool("DEV_MODE", false),
		EdgarUserAgent:    getEnv("EDGAR_USER_AGENT", ""),
		EdgarRateLimit:    getEnvAsFloat("EDGAR_RATE_LIMIT", 8.0),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		BriefModel:        getEnv("BRIEF_MODEL", "gemini-2.0-flash"),
		UnchangedCategory: getEnvAsBool("DELTA_UNCHANGED_CATEGORY", false),
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
			DryRun:   getEnvAsBool("SMTP_DRY_RUN", true),
		},
		Backup: BackupConfig{
			Enabled: getEnvAsBool("BACKUP_ENABLED", false),
			Bucket:  getEnv("BACKUP_S3_BUCKET", ""),
			Prefix:  getEnv("BACKUP_S3_PREFIX", "holdiq"),
			Region:  getEnv("AWS_REGION", "us-east-1"),

			AccessKeyID:     getEnv("BACKUP_AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_AWS_SECRET_ACCESS_KEY", ""),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.EdgarRateLimit <= 0 {
		return fmt.Errorf("EDGAR rate limit must be positive, got %f", c.EdgarRateLimit)
	}
	if c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("backup enabled but BACKUP_S3_BUCKET is empty")
	}
	return nil
}

// DatabasePath returns the path of the holdiq database file
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "holdiq.db")
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer
func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvAsFloat retrieves an environment variable as a float
func getEnvAsFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvAsBool retrieves an environment variable as a boolean
func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
