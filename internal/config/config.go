// Package config provides configuration structures and validation for the card ledger.
// It covers the HTTP gateway, the ledger worker, their stores and message brokers,
// and the operational knobs of the approval workflow.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds the complete application configuration. Each field is one subsystem
// and is validated during startup.
type Config struct {
	Application  ApplicationConfig
	Logging      LoggingConfig
	Server       ServerConfig
	Auth         AuthConfig
	Kafka        KafkaConfig
	Postgres     PostgresConfig
	MongoDB      MongoDBConfig
	Redis        RedisConfig
	Outbox       OutboxConfig
	WorkerPool   WorkerPoolConfig
	Approval     ApprovalConfig
	Notification NotificationConfig
	Idempotency  IdempotencyConfig
	Bootstrap    BootstrapConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env             string
	Name            string
	DefaultCurrency string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// AuthConfig holds the bearer token verification settings
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string
	NotificationTopic string
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// RedisConfig contains the idempotency cache connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// OutboxConfig contains outbox pattern configuration
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int
	Retention        time.Duration // Processed messages older than this are purged; 0 keeps them
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int
}

// ApprovalConfig controls the approval workflow
type ApprovalConfig struct {
	TTL time.Duration // How long a request stays decidable
}

// NotificationConfig controls webhook delivery of notification intents
type NotificationConfig struct {
	WebhookURL string // Empty disables delivery; intents are only logged
	Timeout    time.Duration
}

// IdempotencyConfig controls how long idempotent responses are replayed
type IdempotencyConfig struct {
	TTL time.Duration
}

// BootstrapConfig seeds the first organization on an empty database so that its
// owner has a membership to authenticate as. An empty OwnerUserID disables it.
type BootstrapConfig struct {
	OrganizationName string
	Industry         string
	OwnerUserID      string
}

// validate checks all configuration values and reports every violation at once
func (c *Config) validate() error {
	var validationErrors []string

	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	if len(c.Application.DefaultCurrency) != 3 {
		validationErrors = append(validationErrors, "APP_DEFAULT_CURRENCY must be a 3-letter code")
	}

	if c.Auth.JWTSecret == "" {
		validationErrors = append(validationErrors, "AUTH_JWT_SECRET is required")
	}

	if c.Kafka.Brokers == "" {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.NotificationTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_NOTIFICATION_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}

	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns > c.Postgres.MaxConns {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must not exceed POSTGRES_MAX_CONNS")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}

	if c.Redis.Addr == "" {
		validationErrors = append(validationErrors, "REDIS_ADDR is required")
	}

	if c.Outbox.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	}
	if c.Outbox.BatchSize <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_BATCH_SIZE must be greater than 0")
	}
	if c.Outbox.MaxRetryAttempts <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")
	}
	if c.Outbox.Retention < 0 {
		validationErrors = append(validationErrors, "OUTBOX_RETENTION cannot be negative")
	}

	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	if c.Approval.TTL <= 0 {
		validationErrors = append(validationErrors, "APPROVAL_TTL must be greater than 0")
	}

	if c.Notification.Timeout <= 0 {
		validationErrors = append(validationErrors, "NOTIFICATION_TIMEOUT must be greater than 0")
	}

	if c.Idempotency.TTL <= 0 {
		validationErrors = append(validationErrors, "IDEMPOTENCY_TTL must be greater than 0")
	}

	if c.Bootstrap.OwnerUserID != "" {
		if _, err := uuid.Parse(c.Bootstrap.OwnerUserID); err != nil {
			validationErrors = append(validationErrors, "BOOTSTRAP_OWNER_USER_ID must be a UUID")
		}
		if strings.TrimSpace(c.Bootstrap.OrganizationName) == "" {
			validationErrors = append(validationErrors, "BOOTSTRAP_ORGANIZATION_NAME is required with BOOTSTRAP_OWNER_USER_ID")
		}
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
