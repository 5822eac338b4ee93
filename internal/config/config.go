// Package config loads the router configuration from environment variables
// with sensible defaults and validates it before the application starts.
//
// A .env file in the working directory is loaded first when present.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Optional log file path
//   - MAX_BODY_SIZE: Largest accepted webhook body in bytes (default: 1048576)
//   - TLS_CERT_FILE, TLS_KEY_FILE: Serve HTTPS when both are set
//
// Provider Settings:
//   - STRIPE_API_KEY: Provider credential used for thin events when a
//     subscription carries no api_key property
//   - STRIPE_API_BASE: Events API base URL (default: https://api.stripe.com)
//   - STRIPE_API_VERSION: Optional Stripe-Version header
//   - SIGNATURE_HEADER: Signature header name (default: Stripe-Signature)
//   - SIGNATURE_SCHEME: Signature scheme token (default: v1)
//   - SIGNATURE_TOLERANCE: Timestamp tolerance, 0 disables (default: 300s)
//   - RESOLVE_TIMEOUT: Upstream fetch timeout (default: 10s)
//   - RESOLVE_CACHE_TTL: Resolved event cache TTL, 0 disables (default: 5m)
//   - THIN_TYPE_PREFIX: Type prefix marking thin events (default: v)
//   - TYPE_CHANNELS: Extra per-type channels, "type=ch1|ch2,type2=ch3"
//
// Storage:
//   - DATABASE_TYPE: memory, sqlite or postgres (default: sqlite)
//   - DATABASE_PATH: SQLite file path (default: ./stripe_webhook_router.db)
//   - POSTGRES_URL or POSTGRES_HOST/PORT/DB/USER/PASSWORD/SSL_MODE
//   - CONFIG_ENCRYPTION_KEY: Encrypts stored secrets when set (32 characters)
//
// Redis (optional, enables shared cache, rate limits and refresh lock):
//   - REDIS_ADDRESS, REDIS_PASSWORD, REDIS_DB, REDIS_POOL_SIZE
//
// Rate Limiting:
//   - RATE_LIMIT_ENABLED (default: true), RATE_LIMIT_RPS (default: 50),
//     RATE_LIMIT_BURST (default: 100)
//
// Delivery:
//   - BROKER_TYPE: none, rabbitmq, redis, kafka, aws or gcp (default: none)
//   - BROKER_QUEUE_PREFIX: Prefix applied to channel names
//   - RABBITMQ_URL, RABBITMQ_EXCHANGE
//   - REDIS_STREAM_ADDRESS (defaults to REDIS_ADDRESS), REDIS_STREAM_MAX_LEN
//   - KAFKA_BROKERS, KAFKA_CLIENT_ID, KAFKA_SECURITY_PROTOCOL,
//     KAFKA_SASL_MECHANISM, KAFKA_SASL_USERNAME, KAFKA_SASL_PASSWORD
//   - AWS_REGION, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_SQS_QUEUE_URL,
//     AWS_SNS_TOPIC_ARN, AWS_ENDPOINT
//   - GCP_PROJECT_ID, GCP_TOPIC_ID, GCP_CREDENTIALS_PATH
//
// Admin API and subscriptions:
//   - ADMIN_JWT_SECRET: Enables the admin API (minimum 32 characters)
//   - SUBSCRIPTION_TTL (default: 168h)
//   - SUBSCRIPTION_REFRESH_SCHEDULE (default: @every 1h)
//   - SUBSCRIPTION_REFRESH_WINDOW (default: 24h)
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"stripe-webhook-router/internal/common/validation"
	"stripe-webhook-router/internal/dispatch"
)

// Config holds all configuration values for the router
type Config struct {
	// Application settings
	Port        string
	LogLevel    string
	LogFile     string
	MaxBodySize int64
	TLSCertFile string
	TLSKeyFile  string

	// Provider settings
	StripeAPIKey       string
	StripeAPIBase      string
	StripeAPIVersion   string
	SignatureHeader    string
	SignatureScheme    string
	SignatureTolerance time.Duration
	ResolveTimeout     time.Duration
	ResolveCacheTTL    time.Duration
	ThinTypePrefix     string
	TypeChannels       string

	// Storage
	DatabaseType     string
	DatabasePath     string
	PostgresURL      string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string
	EncryptionKey    string

	// Redis configuration, empty address disables Redis
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int

	// Rate limiting
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	// Delivery
	BrokerType        string
	BrokerQueuePrefix string

	RabbitMQURL      string
	RabbitMQExchange string

	RedisStreamAddress string
	RedisStreamMaxLen  int64

	KafkaBrokers          []string
	KafkaClientID         string
	KafkaSecurityProtocol string
	KafkaSASLMechanism    string
	KafkaSASLUsername     string
	KafkaSASLPassword     string

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSQueueURL        string
	AWSTopicArn        string
	AWSEndpoint        string

	GCPProjectID       string
	GCPTopicID         string
	GCPCredentialsPath string

	// Admin API and subscriptions
	AdminJWTSecret              string
	SubscriptionTTL             time.Duration
	SubscriptionRefreshSchedule string
	SubscriptionRefreshWindow   time.Duration
}

// Load reads a .env file when present and builds the configuration from the
// environment. It does not validate.
func Load() *Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only
func FromEnv() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     getEnv("LOG_FILE", ""),
		MaxBodySize: int64(getIntEnv("MAX_BODY_SIZE", 1<<20)),
		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		StripeAPIKey:       getEnv("STRIPE_API_KEY", ""),
		StripeAPIBase:      getEnv("STRIPE_API_BASE", "https://api.stripe.com"),
		StripeAPIVersion:   getEnv("STRIPE_API_VERSION", ""),
		SignatureHeader:    getEnv("SIGNATURE_HEADER", "Stripe-Signature"),
		SignatureScheme:    getEnv("SIGNATURE_SCHEME", "v1"),
		SignatureTolerance: getDurationEnv("SIGNATURE_TOLERANCE", 300*time.Second),
		ResolveTimeout:     getDurationEnv("RESOLVE_TIMEOUT", 10*time.Second),
		ResolveCacheTTL:    getDurationEnv("RESOLVE_CACHE_TTL", 5*time.Minute),
		ThinTypePrefix:     getEnv("THIN_TYPE_PREFIX", "v"),
		TypeChannels:       getEnv("TYPE_CHANNELS", ""),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./stripe_webhook_router.db"),
		PostgresURL:      getEnv("POSTGRES_URL", ""),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "stripe_webhook_router"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),
		EncryptionKey:    getEnv("CONFIG_ENCRYPTION_KEY", ""),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		RedisPoolSize: getIntEnv("REDIS_POOL_SIZE", 10),

		RateLimitEnabled: getBoolEnv("RATE_LIMIT_ENABLED", true),
		RateLimitRPS:     getFloatEnv("RATE_LIMIT_RPS", 50),
		RateLimitBurst:   getIntEnv("RATE_LIMIT_BURST", 100),

		BrokerType:        getEnv("BROKER_TYPE", "none"),
		BrokerQueuePrefix: getEnv("BROKER_QUEUE_PREFIX", ""),

		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange: getEnv("RABBITMQ_EXCHANGE", ""),

		RedisStreamAddress: getEnv("REDIS_STREAM_ADDRESS", ""),
		RedisStreamMaxLen:  int64(getIntEnv("REDIS_STREAM_MAX_LEN", 0)),

		KafkaBrokers:          getListEnv("KAFKA_BROKERS"),
		KafkaClientID:         getEnv("KAFKA_CLIENT_ID", "stripe-webhook-router"),
		KafkaSecurityProtocol: getEnv("KAFKA_SECURITY_PROTOCOL", ""),
		KafkaSASLMechanism:    getEnv("KAFKA_SASL_MECHANISM", ""),
		KafkaSASLUsername:     getEnv("KAFKA_SASL_USERNAME", ""),
		KafkaSASLPassword:     getEnv("KAFKA_SASL_PASSWORD", ""),

		AWSRegion:          getEnv("AWS_REGION", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSQueueURL:        getEnv("AWS_SQS_QUEUE_URL", ""),
		AWSTopicArn:        getEnv("AWS_SNS_TOPIC_ARN", ""),
		AWSEndpoint:        getEnv("AWS_ENDPOINT", ""),

		GCPProjectID:       getEnv("GCP_PROJECT_ID", ""),
		GCPTopicID:         getEnv("GCP_TOPIC_ID", ""),
		GCPCredentialsPath: getEnv("GCP_CREDENTIALS_PATH", ""),

		AdminJWTSecret:              getEnv("ADMIN_JWT_SECRET", ""),
		SubscriptionTTL:             getDurationEnv("SUBSCRIPTION_TTL", 7*24*time.Hour),
		SubscriptionRefreshSchedule: getEnv("SUBSCRIPTION_REFRESH_SCHEDULE", "@every 1h"),
		SubscriptionRefreshWindow:   getDurationEnv("SUBSCRIPTION_REFRESH_WINDOW", 24*time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getIntEnv returns -1 for unparseable values so Validate reports them
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return -1
		}
		return parsed
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return -1
		}
		return parsed
	}
	return defaultValue
}

// getDurationEnv accepts Go durations ("90s") and bare seconds ("90")
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return -1
}

func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks required fields, formats and cross-field dependencies
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if c.MaxBodySize <= 0 {
		return fmt.Errorf("MAX_BODY_SIZE must be a positive number")
	}

	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}

	if c.SignatureHeader == "" {
		return fmt.Errorf("SIGNATURE_HEADER must not be empty")
	}
	if c.SignatureScheme == "" {
		return fmt.Errorf("SIGNATURE_SCHEME must not be empty")
	}
	if c.SignatureTolerance < 0 {
		return fmt.Errorf("SIGNATURE_TOLERANCE must be a valid non-negative duration")
	}
	if c.ResolveTimeout <= 0 {
		return fmt.Errorf("RESOLVE_TIMEOUT must be a valid positive duration")
	}
	if c.ResolveCacheTTL < 0 {
		return fmt.Errorf("RESOLVE_CACHE_TTL must be a valid non-negative duration")
	}
	if c.ThinTypePrefix == "" {
		return fmt.Errorf("THIN_TYPE_PREFIX must not be empty")
	}
	if !strings.HasPrefix(c.StripeAPIBase, "http://") && !strings.HasPrefix(c.StripeAPIBase, "https://") {
		return fmt.Errorf("STRIPE_API_BASE must be an http(s) URL")
	}
	if _, err := dispatch.ParseTypeChannels(c.TypeChannels); err != nil {
		return fmt.Errorf("TYPE_CHANNELS is invalid: %w", err)
	}

	switch c.DatabaseType {
	case "memory", "sqlite":
	case "postgres", "postgresql":
		if c.PostgresURL == "" {
			if c.PostgresHost == "" || c.PostgresDB == "" || c.PostgresUser == "" {
				return fmt.Errorf("POSTGRES_HOST, POSTGRES_DB and POSTGRES_USER are required when using PostgreSQL")
			}
			if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
				return fmt.Errorf("POSTGRES_PORT must be a valid port number")
			}
		}
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'memory', 'sqlite' or 'postgres'")
	}
	if c.DatabaseType == "sqlite" && c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required when using SQLite")
	}

	if c.RedisAddress != "" {
		if c.RedisDB < 0 || c.RedisDB > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if c.RedisPoolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	if c.RateLimitEnabled {
		if c.RateLimitRPS <= 0 {
			return fmt.Errorf("RATE_LIMIT_RPS must be a positive number")
		}
		if c.RateLimitBurst < 1 {
			return fmt.Errorf("RATE_LIMIT_BURST must be a positive number")
		}
	}

	if err := validation.ValidateStruct(struct {
		BrokerType string `json:"BROKER_TYPE" validate:"broker_type"`
	}{c.BrokerType}); err != nil {
		return fmt.Errorf("BROKER_TYPE must be one of none, rabbitmq, redis, kafka, aws, gcp")
	}
	if c.BrokerType == "redis" && c.RedisStreamAddress == "" && c.RedisAddress == "" {
		return fmt.Errorf("REDIS_STREAM_ADDRESS or REDIS_ADDRESS is required for the redis broker")
	}

	if c.EncryptionKey != "" && len(c.EncryptionKey) != 32 {
		return fmt.Errorf("CONFIG_ENCRYPTION_KEY must be exactly 32 characters (256 bits) when provided")
	}

	if c.AdminJWTSecret != "" && len(c.AdminJWTSecret) < 32 {
		return fmt.Errorf("ADMIN_JWT_SECRET must be at least 32 characters long")
	}

	if c.SubscriptionTTL <= 0 {
		return fmt.Errorf("SUBSCRIPTION_TTL must be a valid positive duration")
	}
	if c.SubscriptionRefreshWindow < 0 {
		return fmt.Errorf("SUBSCRIPTION_REFRESH_WINDOW must be a valid non-negative duration")
	}
	if !validation.ValidCronSpec(c.SubscriptionRefreshSchedule) {
		return fmt.Errorf("SUBSCRIPTION_REFRESH_SCHEDULE must be a valid cron spec")
	}

	return nil
}

// TypeChannelTable returns the dispatcher channel table with TYPE_CHANNELS
// applied. Validate must have succeeded.
func (c *Config) TypeChannelTable() *dispatch.ChannelTable {
	table := dispatch.DefaultChannelTable()
	extra, _ := dispatch.ParseTypeChannels(c.TypeChannels)
	for eventType, channels := range extra {
		table.AddType(eventType, channels...)
	}
	return table
}

// AdminEnabled reports whether the admin API should be mounted
func (c *Config) AdminEnabled() bool {
	return c.AdminJWTSecret != ""
}
