package config

import (
	"fmt"

	pkgconfig "github.com/dinewise/analysis/pkg/config"
)

// Aggregate store engines.
const (
	EngineElasticsearch = "elasticsearch"
	EngineMemory        = "memory"
)

// Idempotency backends.
const (
	IdempotencyRedis  = "redis"
	IdempotencyMemory = "memory"
)

// Config holds all configuration for the analysis service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"ANALYSIS_HTTP_PORT" envDefault:"8010"`

	// PostgreSQL (vote ledger and certifications)
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"dinewise"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"dinewise_secret"`
	PostgresDB   string `env:"ANALYSIS_DB_NAME" envDefault:"dinewise_analysis"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Place aggregate store
	AggregateStore     string `env:"AGGREGATE_STORE" envDefault:"elasticsearch"`
	ElasticsearchURL   string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchIndex string `env:"ELASTICSEARCH_INDEX" envDefault:"dinewise_place_insights"`

	// Kafka
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	ConsumerGroup string   `env:"ANALYSIS_CONSUMER_GROUP" envDefault:"analysis-service"`

	// Event idempotency guard
	IdempotencyBackend  string `env:"IDEMPOTENCY_BACKEND" envDefault:"memory"`
	IdempotencyTTLHours int    `env:"IDEMPOTENCY_TTL_HOURS" envDefault:"24"`

	// Redis (idempotency backend)
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Reputation service
	ReputationServiceURL string `env:"REPUTATION_SERVICE_URL" envDefault:"http://localhost:8004"`
	ReputationTimeoutMs  int    `env:"REPUTATION_TIMEOUT_MS" envDefault:"5000"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load analysis config: %w", err)
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
	if c.AggregateStore != EngineElasticsearch && c.AggregateStore != EngineMemory {
		return fmt.Errorf("AGGREGATE_STORE must be %q or %q, got %q", EngineElasticsearch, EngineMemory, c.AggregateStore)
	}
	if c.AggregateStore == EngineElasticsearch && c.ElasticsearchURL == "" {
		return fmt.Errorf("ELASTICSEARCH_URL is required for the elasticsearch store")
	}
	if c.IdempotencyBackend != IdempotencyRedis && c.IdempotencyBackend != IdempotencyMemory {
		return fmt.Errorf("IDEMPOTENCY_BACKEND must be %q or %q, got %q", IdempotencyRedis, IdempotencyMemory, c.IdempotencyBackend)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.ReputationServiceURL == "" {
		return fmt.Errorf("REPUTATION_SERVICE_URL is required")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.IdempotencyTTLHours <= 0 {
		return fmt.Errorf("IDEMPOTENCY_TTL_HOURS must be > 0, got %d", c.IdempotencyTTLHours)
	}
	return nil
}
