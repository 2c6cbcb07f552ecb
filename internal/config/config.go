// Package config loads the engine's runtime configuration from the
// environment.
package config

import (
	"fmt"
	"time"

	"github.com/EladReuveny/electronics-store-api/internal/lock"
	pkgconfig "github.com/EladReuveny/electronics-store-api/pkg/config"
	"github.com/EladReuveny/electronics-store-api/pkg/database"
	"github.com/EladReuveny/electronics-store-api/pkg/tracing"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all configuration for the engine.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort    int      `env:"HTTP_PORT" envDefault:"8080"`
	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`

	// Persistence
	Store              string        `env:"STORE" envDefault:"postgres"`
	PostgresHost       string        `env:"DB_HOST" envDefault:"localhost"`
	PostgresPort       int           `env:"DB_PORT" envDefault:"5432"`
	PostgresUser       string        `env:"DB_USER" envDefault:"store"`
	PostgresPass       string        `env:"DB_PASSWORD" envDefault:"store_secret"`
	PostgresDB         string        `env:"DB_NAME" envDefault:"electronics_store"`
	PostgresSSL        string        `env:"DB_SSL_MODE" envDefault:"disable"`
	PostgresMaxConns   int32         `env:"DB_MAX_CONNS" envDefault:"25"`
	SlowQueryThreshold time.Duration `env:"DB_SLOW_QUERY_THRESHOLD" envDefault:"200ms"`
	RunMigrations      bool          `env:"DB_RUN_MIGRATIONS" envDefault:"true"`

	// Redis backs the event idempotency store. Empty disables it.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaEnabled       bool          `env:"KAFKA_ENABLED" envDefault:"true"`
	KafkaBrokers       []string      `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaConsumerGroup string        `env:"KAFKA_CONSUMER_GROUP" envDefault:"store-engine"`
	IdempotencyTTL     time.Duration `env:"KAFKA_IDEMPOTENCY_TTL" envDefault:"24h"`

	// Engine
	LockStrategy           string `env:"LOCK_STRATEGY" envDefault:"none"`
	CancellationWindowDays int    `env:"CANCELLATION_WINDOW_DAYS" envDefault:"14"`

	// Tracing
	OTelEndpoint    string  `env:"OTEL_ENDPOINT"`
	TraceSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load(opts ...pkgconfig.Option) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg, opts...); err != nil {
		return nil, fmt.Errorf("load engine config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.Store {
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("invalid STORE %q: want %s or %s", c.Store, StorePostgres, StoreMemory)
	}
	if _, err := lock.ParseStrategy(c.LockStrategy); err != nil {
		return err
	}
	if c.CancellationWindowDays < 1 {
		return fmt.Errorf("invalid cancellation window: %d days", c.CancellationWindowDays)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when Kafka is enabled")
	}
	return nil
}

// Strategy returns the validated lock strategy.
func (c *Config) Strategy() lock.Strategy {
	return lock.Strategy(c.LockStrategy)
}

// CancellationWindow returns how long after creation an order may be canceled.
func (c *Config) CancellationWindow() time.Duration {
	return time.Duration(c.CancellationWindowDays) * 24 * time.Hour
}

// Postgres returns the connection settings for the engine's pool.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.PostgresMaxConns,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// Redis returns the Redis connection settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// Tracing returns the tracer settings for serviceName.
func (c *Config) Tracing(serviceName, version string) tracing.Config {
	return tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.OTelEndpoint,
		SampleRate:     c.TraceSampleRate,
	}
}
