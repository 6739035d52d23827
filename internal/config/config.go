package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret string
	JwtTTL    time.Duration

	// Server
	ApiPort        string
	ServiceApiPort string

	// Booking policy
	PaidBookingLeadTime     time.Duration // paid buyers: minimum lead before a slot
	EstimatedConfirmDays    int           // used to set estimated_confirmation_date
	AgreementRequired       bool          // whether confirmed tours require a signed agreement
	ConfirmReminderCronSpec string

	// Completion webhook
	CompletionWebhookURL     string
	CompletionWebhookTimeout time.Duration
	CompletionSweepCronSpec  string

	// Property lookup
	PropertyLookupBaseURL string
	PropertyCacheTTL      time.Duration
	MeiliHost             string
	MeiliAPIKey           string
	MeiliPropertiesIndex  string

	// Email
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string

	// AWS S3
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	ImageMaxDimension  int
	ImageMaxSizeMB     int

	// App Defaults
	AppName string

	// Rate Limiting Defaults
	RateLimitSoftBucketSize int
	RateLimitSoftRefillRate int // tokens per second
	RateLimitHardBucketSize int
	RateLimitHardRefillRate int // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	godotenv.Load()

	cfg := &Config{
		RunMode: runMode, // Set from flag
	}

	var err error

	// Helper function to get env var or default
	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	// Helper function to get required env var
	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "hometour")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "8081")

	cfg.CompletionWebhookURL = getEnv("COMPLETION_WEBHOOK_URL", "")
	cfg.CompletionSweepCronSpec = getEnv("COMPLETION_SWEEP_CRON", "@hourly")
	cfg.ConfirmReminderCronSpec = getEnv("CONFIRM_REMINDER_CRON", "0 9 * * *")

	cfg.PropertyLookupBaseURL = getEnv("PROPERTY_LOOKUP_BASE_URL", "")
	cfg.MeiliHost = getEnv("MEILI_HOST", "")
	cfg.MeiliAPIKey = getEnv("MEILI_API_KEY", "")
	cfg.MeiliPropertiesIndex = getEnv("MEILI_PROPERTIES_INDEX", "properties")

	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "noreply@hometour.example.com")

	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.AppName = getEnv("APP_NAME", "HomeTour")

	// Load numeric and time duration values with defaults and parsing
	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	jwtTTLSeconds, err := strconv.ParseInt(getEnv("JWT_TTL_SECONDS", "3600"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL_SECONDS: %w", err)
	}
	cfg.JwtTTL = time.Duration(jwtTTLSeconds) * time.Second

	cfg.SmtpPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	leadMinutes, err := strconv.ParseInt(getEnv("PAID_BOOKING_LEAD_MINUTES", "120"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid PAID_BOOKING_LEAD_MINUTES: %w", err)
	}
	cfg.PaidBookingLeadTime = time.Duration(leadMinutes) * time.Minute

	cfg.EstimatedConfirmDays, err = strconv.Atoi(getEnv("ESTIMATED_CONFIRM_DAYS", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid ESTIMATED_CONFIRM_DAYS: %w", err)
	}

	cfg.AgreementRequired, err = strconv.ParseBool(getEnv("AGREEMENT_REQUIRED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid AGREEMENT_REQUIRED: %w", err)
	}

	webhookTimeoutSeconds, err := strconv.ParseInt(getEnv("COMPLETION_WEBHOOK_TIMEOUT_SECONDS", "15"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid COMPLETION_WEBHOOK_TIMEOUT_SECONDS: %w", err)
	}
	cfg.CompletionWebhookTimeout = time.Duration(webhookTimeoutSeconds) * time.Second

	propertyCacheTTLSeconds, err := strconv.ParseInt(getEnv("PROPERTY_CACHE_TTL_SECONDS", "3600"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid PROPERTY_CACHE_TTL_SECONDS: %w", err)
	}
	cfg.PropertyCacheTTL = time.Duration(propertyCacheTTLSeconds) * time.Second

	cfg.ImageMaxDimension, err = strconv.Atoi(getEnv("IMAGE_MAX_DIMENSION", "1280"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_MAX_DIMENSION: %w", err)
	}

	cfg.ImageMaxSizeMB, err = strconv.Atoi(getEnv("IMAGE_MAX_SIZE_MB", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_MAX_SIZE_MB: %w", err)
	}

	// Rate Limiting
	cfg.RateLimitSoftBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_SOFT_BUCKET_SIZE", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_SOFT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitSoftRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_SOFT_REFILL_RATE", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_SOFT_REFILL_RATE: %w", err)
	}
	cfg.RateLimitHardBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_HARD_BUCKET_SIZE", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_HARD_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitHardRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_HARD_REFILL_RATE", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_HARD_REFILL_RATE: %w", err)
	}

	return cfg, nil
}
