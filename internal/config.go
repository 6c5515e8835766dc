package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/Emart29/iOpsAI/internal/domain"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Free-tier limit overrides. Paid tiers are always unlimited; only the
	// free tier's numbers are operator-tunable. -1 means unlimited.
	FreeDatasetsPerMonth   int
	FreeAIMessagesPerMonth int
	FreeReportsPerMonth    int

	// URL shown to users who hit a limit.
	UpgradeURL string

	// Monthly reset job. The schedule uses standard cron syntax and should
	// fire shortly after each month boundary. Empty disables the in-process
	// scheduler (an external scheduler can run cmd/resetusage instead).
	ResetSchedule string

	// Dataset payload storage
	StorageProvider string // "local" or "r2"

	// Local storage (development)
	LocalStoragePath string
	LocalStorageURL  string

	// R2 storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string

	// Upload constraints for dataset payloads
	MaxUploadBytes int64

	// Per-IP request rate limiting
	RateLimitPerMinute int
	RateLimitWindow    time.Duration

	// Metrics endpoint authentication.
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		// Free-tier defaults match the published pricing page.
		FreeDatasetsPerMonth:   getEnvInt("FREE_DATASETS_PER_MONTH", 5),
		FreeAIMessagesPerMonth: getEnvInt("FREE_AI_MESSAGES_PER_MONTH", 50),
		FreeReportsPerMonth:    getEnvInt("FREE_REPORTS_PER_MONTH", 3),

		UpgradeURL: getEnv("UPGRADE_URL", "/pricing"),

		// First of every month, five minutes past midnight UTC.
		ResetSchedule: getEnv("RESET_SCHEDULE", "5 0 1 * *"),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		// 50 MB default, matching the upload form's advertised maximum.
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 52428800)),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		RateLimitWindow:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Database URL is required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PORT must be between 1 and 65535, got %d", cfg.Port)
	}

	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", cfg.MaxUploadBytes)
	}

	return cfg, nil
}

// FreeTierLimits converts the configured free-tier numbers to domain limits.
func (c *Config) FreeTierLimits() domain.TierLimits {
	return domain.TierLimits{
		DatasetsPerMonth:   toLimit(c.FreeDatasetsPerMonth),
		AIMessagesPerMonth: toLimit(c.FreeAIMessagesPerMonth),
		ReportsPerMonth:    toLimit(c.FreeReportsPerMonth),
	}
}

func toLimit(n int) domain.Limit {
	if n < 0 {
		return domain.Unlimited
	}
	return domain.Limit(n)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
