package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Session store backends selectable through SESSION_BACKEND.
const (
	BackendDynamo = "dynamo"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	AllowedOrigins []string // CORS allowed origins
	LogLevel       string
	LogPretty      bool

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	SessionBackend string
	SessionTTL     time.Duration
	LogTail        int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	CredentialKey string // hex encoded, 32 bytes

	ProviderBaseURL string
	ProviderTimeout time.Duration

	ArchiveBucket string
	SNSTopicARN   string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Onboarding string
	Accounts   string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogPretty:      getEnvBool("LOG_PRETTY", false),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Onboarding: getEnv("DYNAMO_TABLE_ONBOARDING", "onboarding_sessions"),
			Accounts:   getEnv("DYNAMO_TABLE_ACCOUNTS", "pool_accounts"),
		},

		SessionBackend: strings.ToLower(getEnv("SESSION_BACKEND", BackendDynamo)),
		SessionTTL:     getEnvDuration("SESSION_TTL", 24*time.Hour),
		LogTail:        getEnvInt("LOG_TAIL", 200),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisPrefix:   getEnv("REDIS_PREFIX", "onb"),

		CredentialKey: getEnv("CREDENTIAL_KEY", ""),

		ProviderBaseURL: getEnv("PROVIDER_BASE_URL", "http://localhost:8090"),
		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", 60*time.Second),

		ArchiveBucket: getEnv("ARCHIVE_BUCKET", ""),
		SNSTopicARN:   getEnv("SNS_TOPIC_ARN", ""),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", ""),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("15m", "24h").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
