// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir    string // Base directory for all databases (always absolute)
	Port       int
	LogLevel   string
	PrettyLogs bool
	DevMode    bool // Dev mode relaxes auth: X-Org-ID header replaces JWT

	// Scoring engine tuning
	WorkerCount       int     // Recompute worker pool size
	TrendBand         float64 // STABLE hysteresis band for trend classification
	DefaultConfigPath string  // Optional YAML file overriding the embedded default scoring config

	// Background jobs (cron expressions, with-seconds format)
	RecomputeSchedule    string // Nightly recompute so decayed scores stay current
	HistoryRetentionDays int    // Score history rows older than this are trimmed

	// Auth
	JWTSecret    string // HS256 shared secret; required outside dev mode
	DefaultOrgID string // Org used when dev mode requests omit X-Org-ID

	// Optional integrations (empty = disabled)
	KafkaBrokers []string // Kafka bootstrap brokers for event publishing
	RedisAddr    string   // Redis address for the score leaderboard cache

	Backup *BackupConfig
}

// BackupConfig holds database backup settings for S3-compatible storage
type BackupConfig struct {
	Enabled         bool
	Bucket          string
	Endpoint        string // Custom endpoint for R2/MinIO; empty = AWS S3
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Schedule        string // Cron expression, with-seconds format
	Keep            int    // Backups to retain during rotation
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Resolve the data directory to an absolute path and make sure it exists
	dataDir := getEnv("PULSE_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:              absDataDir,
		Port:                 getEnvAsInt("PULSE_PORT", 8080),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		PrettyLogs:           getEnvAsBool("LOG_PRETTY", false),
		DevMode:              getEnvAsBool("DEV_MODE", false),
		WorkerCount:          getEnvAsInt("PULSE_WORKERS", 16),
		TrendBand:            getEnvAsFloat("PULSE_TREND_BAND", 0.05),
		DefaultConfigPath:    getEnv("PULSE_DEFAULT_CONFIG_PATH", ""),
		RecomputeSchedule:    getEnv("PULSE_RECOMPUTE_CRON", "0 0 3 * * *"), // 03:00 daily
		HistoryRetentionDays: getEnvAsInt("PULSE_HISTORY_RETENTION_DAYS", 180),
		JWTSecret:            getEnv("PULSE_JWT_SECRET", ""),
		DefaultOrgID:         getEnv("PULSE_DEFAULT_ORG", "org_default"),
		KafkaBrokers:         getEnvAsSlice("PULSE_KAFKA_BROKERS"),
		RedisAddr:            getEnv("PULSE_REDIS_ADDR", ""),
		Backup:               loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", c.WorkerCount)
	}
	if c.TrendBand < 0 || c.TrendBand >= 1 {
		return fmt.Errorf("trend band must be in [0, 1), got %g", c.TrendBand)
	}
	if !c.DevMode && c.JWTSecret == "" {
		return fmt.Errorf("PULSE_JWT_SECRET is required outside dev mode")
	}
	if c.Backup != nil && c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("PULSE_BACKUP_BUCKET is required when backups are enabled")
	}
	return nil
}

// loadBackupConfig loads backup settings; disabled unless explicitly enabled
func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Enabled:         getEnvAsBool("PULSE_BACKUP_ENABLED", false),
		Bucket:          getEnv("PULSE_BACKUP_BUCKET", ""),
		Endpoint:        getEnv("PULSE_BACKUP_ENDPOINT", ""),
		Region:          getEnv("PULSE_BACKUP_REGION", "auto"),
		AccessKeyID:     getEnv("PULSE_BACKUP_ACCESS_KEY", ""),
		SecretAccessKey: getEnv("PULSE_BACKUP_SECRET_KEY", ""),
		Schedule:        getEnv("PULSE_BACKUP_CRON", "0 30 4 * * *"), // 04:30 daily, after recompute
		Keep:            getEnvAsInt("PULSE_BACKUP_KEEP", 7),
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvAsSlice splits a comma-separated env value, dropping empty entries
func getEnvAsSlice(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
