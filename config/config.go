package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// PlaceholderServiceKey is the value shipped in .env.example; it is treated as unset.
const PlaceholderServiceKey = "your_service_role_key_here"

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Keys      KeysConfig
	Access    AccessConfig
	RateLimit RateLimitConfig
	AWS       AWSConfig
	Email     EmailConfig
	AMQP      AMQPConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string `env:"PORT" envDefault:"8080"`
	ReadTimeout        int    `env:"READ_TIMEOUT_SEC" envDefault:"30"`
	WriteTimeout       int    `env:"WRITE_TIMEOUT_SEC" envDefault:"30"`
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`
	// AppURL is the frontend base URL used in e-mailed links.
	AppURL string `env:"APP_URL" envDefault:"http://localhost:3000"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string `env:"DATABASE_URL"` // used as-is when set
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName   string `env:"DB_NAME" envDefault:"missoes"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns int32  `env:"DB_MAX_CONNS" envDefault:"10"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	ExpireHours int    `env:"JWT_EXPIRE_HOURS" envDefault:"24"`
}

// KeysConfig holds the two API credential levels.
type KeysConfig struct {
	// AnonKey, when set, must be sent by clients in the apikey header.
	AnonKey string `env:"PUBLIC_ANON_KEY"`
	// ServiceRoleKey gates privileged routes and signs recovery links.
	ServiceRoleKey string `env:"SERVICE_ROLE_KEY"`
	// RecoveryTTL bounds the lifetime of e-mailed recovery links.
	RecoveryTTL time.Duration `env:"RECOVERY_TTL" envDefault:"24h"`
}

// ServiceKeyConfigured reports whether the service-role key is set to a real value.
func (k KeysConfig) ServiceKeyConfigured() bool {
	key := strings.TrimSpace(k.ServiceRoleKey)
	return key != "" && key != PlaceholderServiceKey
}

// AccessConfig tunes the session-scoped access cache.
type AccessConfig struct {
	CacheTTL time.Duration `env:"ACCESS_CACHE_TTL" envDefault:"10m"`
}

// RateLimitConfig bounds requests per client IP on auth endpoints.
type RateLimitConfig struct {
	AuthPerSecond float64       `env:"AUTH_RATE_PER_SECOND" envDefault:"1"`
	AuthBurst     int           `env:"AUTH_RATE_BURST" envDefault:"5"`
	EvictTTL      time.Duration `env:"RATE_LIMIT_EVICT_TTL" envDefault:"15m"`
}

// AWSConfig holds AWS credentials and the event image bucket.
type AWSConfig struct {
	Region               string `env:"AWS_REGION"`
	AccessKeyID          string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey      string `env:"AWS_SECRET_ACCESS_KEY"`
	ImagesBucket         string `env:"AWS_S3_IMAGES_BUCKET" envDefault:"missoes-event-images"`
	PresignExpireMinutes int    `env:"AWS_PRESIGN_EXPIRE_MINUTES" envDefault:"15"`
}

// EmailConfig for SMTP delivery.
type EmailConfig struct {
	FromAddress string `env:"EMAIL_FROM_ADDRESS" envDefault:"noreply@example.com"`
	FromName    string `env:"EMAIL_FROM_NAME" envDefault:"Missões"`
	SMTPHost    string `env:"SMTP_HOST"`
	SMTPPort    int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser    string `env:"SMTP_USER"`
	SMTPPass    string `env:"SMTP_PASS"`
	SMTPTLS     bool   `env:"SMTP_TLS" envDefault:"false"`
}

// AMQPConfig holds the RabbitMQ connection for domain events. Empty URL disables publishing.
type AMQPConfig struct {
	URL string `env:"AMQP_URL"`
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
