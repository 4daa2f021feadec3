package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

// GetDSN returns the PostgreSQL connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// RedisConfig holds the realtime push transport configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TokenConfig holds partner token issuance configuration
type TokenConfig struct {
	// RSAPrivateKeyFile enables RS256 signing when set; HS256 with
	// SigningKey is used otherwise.
	RSAPrivateKeyFile string
	SigningKey        string
	DefaultTTL        time.Duration
	MaxTTL            time.Duration
}

// JWTConfig holds platform user JWT configuration
type JWTConfig struct {
	SigningKey      string
	ExpirationHours int
}

// FederationConfig holds federation-wide settings
type FederationConfig struct {
	// PlatformID identifies this deployment to partner deployments
	PlatformID string
	// CredentialKey is the 32-byte hex key used to encrypt partner
	// credentials at rest.
	CredentialKey  string
	PartnerTimeout time.Duration
	// TimestampTolerance bounds the age of HMAC-signed partner requests.
	TimestampTolerance time.Duration
	EventRetention     time.Duration
	AuditRetention     time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Prefix string
}

// Config holds all configuration
type Config struct {
	ServiceName string
	TenantID    uint
	DB          DBConfig
	Server      ServerConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Token       TokenConfig
	Federation  FederationConfig
	Log         LogConfig
	Metrics     MetricsConfig
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found, using environment variables\n")
	}

	config := &Config{
		ServiceName: serviceName,
		TenantID:    uint(getEnvAsInt("FEDERATION_TENANT_ID", 0)),
		DB: DBConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", serviceName),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnvAsLogLevel("DB_LOG_LEVEL", logger.Warn),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("APP_ENV", "development"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			SigningKey:      getEnv("JWT_SIGNING_KEY", "default-signing-key-change-in-production"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Token: TokenConfig{
			RSAPrivateKeyFile: getEnv("TOKEN_RSA_PRIVATE_KEY_FILE", ""),
			SigningKey:        getEnv("TOKEN_SIGNING_KEY", "default-token-key-change-in-production"),
			DefaultTTL:        getEnvAsDuration("TOKEN_DEFAULT_TTL", 1*time.Hour),
			MaxTTL:            getEnvAsDuration("TOKEN_MAX_TTL", 24*time.Hour),
		},
		Federation: FederationConfig{
			PlatformID:         getEnv("FEDERATION_PLATFORM_ID", serviceName),
			CredentialKey:      getEnv("FEDERATION_CREDENTIAL_KEY", ""),
			PartnerTimeout:     getEnvAsDuration("FEDERATION_PARTNER_TIMEOUT", 10*time.Second),
			TimestampTolerance: getEnvAsDuration("FEDERATION_TIMESTAMP_TOLERANCE", 5*time.Minute),
			EventRetention:     getEnvAsDuration("FEDERATION_EVENT_RETENTION", 7*24*time.Hour),
			AuditRetention:     getEnvAsDuration("FEDERATION_AUDIT_RETENTION", 90*24*time.Hour),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("METRICS_PREFIX", "federation"),
		},
	}

	return config, nil
}

// LogConfig returns the configuration as a zap logger-friendly format
func (c *Config) LogConfig() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.Uint("tenant_id", c.TenantID),
		zap.String("db_host", c.DB.Host),
		zap.String("db_port", c.DB.Port),
		zap.String("db_name", c.DB.DBName),
		zap.String("server_port", c.Server.Port),
	}
}

// Helper function to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as integers
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as durations
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as log levels
func getEnvAsLogLevel(key string, defaultValue logger.LogLevel) logger.LogLevel {
	valueStr := getEnv(key, "")
	switch valueStr {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return defaultValue
	}
}
