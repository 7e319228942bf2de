// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	Policy   PolicyConfig
	Schedule ScheduleConfig
	Alerts   AlertConfig
	Backup   BackupConfig
}

// PolicyConfig holds the decision-gate and risk thresholds
type PolicyConfig struct {
	ConfidenceThreshold   float64 // Minimum model confidence for a PICK
	EdgeThreshold         float64 // Minimum modeled edge (percent) for a PICK
	DriftThreshold        float64 // Maximum acceptable drift score
	DailyLossLimit        float64 // Hard-stop trigger: cumulative daily exposure
	ConsecutiveLossLimit  int     // Hard-stop trigger: losses in a row
	BankrollPercentLimit  float64 // Hard-stop trigger: exposure / bankroll
	ReliabilityThreshold  float64 // Fallback gate: minimum overall quality score
	MinSourceAvailability float64
	MinSchemaValidity     float64
	MinCompleteness       float64
	DefaultStakeAmount    float64 // Exposure accounting per PICK
	DefaultBankroll       float64 // Bankroll used when the run context has none
	RunTimeout            time.Duration
}

// ScheduleConfig holds cron expressions for background jobs
type ScheduleConfig struct {
	RunSchedule    string // Daily decision run
	BackupSchedule string // Nightly ledger backup
}

// AlertConfig holds alert delivery configuration
type AlertConfig struct {
	WebhookURL     string // Empty disables the webhook sink
	WebhookTimeout time.Duration
}

// BackupConfig holds S3-compatible backup credentials. All four fields must be
// set for cloud backup to be enabled.
type BackupConfig struct {
	AccountID       string // R2 account id (builds the endpoint URL)
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	RetainBackups   int
}

// Enabled reports whether cloud backup is fully configured
func (b BackupConfig) Enabled() bool {
	return b.AccountID != "" && b.AccessKeyID != "" && b.SecretAccessKey != "" && b.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("COURTEDGE_DATA_DIR", "")
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
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8090),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Policy:   loadPolicyConfig(),
		Schedule: ScheduleConfig{
			RunSchedule:    getEnv("RUN_SCHEDULE", "0 12 * * *"),
			BackupSchedule: getEnv("BACKUP_SCHEDULE", "0 3 * * *"),
		},
		Alerts: AlertConfig{
			WebhookURL:     getEnv("ALERT_WEBHOOK_URL", ""),
			WebhookTimeout: time.Duration(getEnvAsInt("ALERT_WEBHOOK_TIMEOUT_MS", 5000)) * time.Millisecond,
		},
		Backup: BackupConfig{
			AccountID:       getEnv("R2_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("R2_BUCKET_NAME", ""),
			RetainBackups:   getEnvAsInt("R2_RETAIN_BACKUPS", 14),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadPolicyConfig loads decision-policy thresholds with their documented defaults
func loadPolicyConfig() PolicyConfig {
	return PolicyConfig{
		ConfidenceThreshold:   getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.60),
		EdgeThreshold:         getEnvAsFloat("EDGE_THRESHOLD", 5.0),
		DriftThreshold:        getEnvAsFloat("DRIFT_THRESHOLD", 0.25),
		DailyLossLimit:        getEnvAsFloat("DAILY_LOSS_LIMIT", 1000.0),
		ConsecutiveLossLimit:  getEnvAsInt("CONSECUTIVE_LOSS_LIMIT", 5),
		BankrollPercentLimit:  getEnvAsFloat("BANKROLL_PERCENT_LIMIT", 0.10),
		ReliabilityThreshold:  getEnvAsFloat("RELIABILITY_THRESHOLD", 0.5),
		MinSourceAvailability: getEnvAsFloat("MIN_SOURCE_AVAILABILITY", 0.8),
		MinSchemaValidity:     getEnvAsFloat("MIN_SCHEMA_VALIDITY", 0.8),
		MinCompleteness:       getEnvAsFloat("MIN_COMPLETENESS", 0.7),
		DefaultStakeAmount:    getEnvAsFloat("DEFAULT_STAKE_AMOUNT", 50.0),
		DefaultBankroll:       getEnvAsFloat("DEFAULT_BANKROLL", 10000.0),
		RunTimeout:            time.Duration(getEnvAsInt("RUN_TIMEOUT_MS", 300000)) * time.Millisecond,
	}
}

// Validate checks if required configuration is present and sane
func (c *Config) Validate() error {
	if c.Policy.ConfidenceThreshold < 0 || c.Policy.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be within [0,1], got %.2f", c.Policy.ConfidenceThreshold)
	}
	if c.Policy.DailyLossLimit <= 0 {
		return fmt.Errorf("daily loss limit must be positive, got %.2f", c.Policy.DailyLossLimit)
	}
	if c.Policy.ConsecutiveLossLimit <= 0 {
		return fmt.Errorf("consecutive loss limit must be positive, got %d", c.Policy.ConsecutiveLossLimit)
	}
	if c.Policy.RunTimeout <= 0 {
		return fmt.Errorf("run timeout must be positive, got %s", c.Policy.RunTimeout)
	}
	return nil
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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
