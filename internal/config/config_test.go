package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8010, cfg.HTTPPort)
	assert.Equal(t, "dinewise_analysis", cfg.PostgresDB)
	assert.Equal(t, EngineElasticsearch, cfg.AggregateStore)
	assert.Equal(t, "dinewise_place_insights", cfg.ElasticsearchIndex)
	assert.Equal(t, IdempotencyMemory, cfg.IdempotencyBackend)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5000, cfg.ReputationTimeoutMs)
	assert.Equal(t, 24, cfg.IdempotencyTTLHours)
}

func TestLoad_InvalidHTTPPort(t *testing.T) {
	t.Setenv("ANALYSIS_HTTP_PORT", "0")

	cfg, err := Load()

	assert.Nil(t, cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
}

func TestLoad_UnknownAggregateStore(t *testing.T) {
	t.Setenv("AGGREGATE_STORE", "mongodb")

	cfg, err := Load()

	assert.Nil(t, cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "AGGREGATE_STORE")
}

func TestLoad_MemoryStore(t *testing.T) {
	t.Setenv("AGGREGATE_STORE", "memory")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, EngineMemory, cfg.AggregateStore)
}

func TestLoad_UnknownIdempotencyBackend(t *testing.T) {
	t.Setenv("IDEMPOTENCY_BACKEND", "etcd")

	cfg, err := Load()

	assert.Nil(t, cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "IDEMPOTENCY_BACKEND")
}

func TestLoad_KafkaBrokersList(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_InvalidSampleRate(t *testing.T) {
	t.Setenv("OTEL_SAMPLE_RATE", "1.5")

	cfg, err := Load()

	assert.Nil(t, cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "OTEL_SAMPLE_RATE")
}

func TestLoad_InvalidIdempotencyTTL(t *testing.T) {
	t.Setenv("IDEMPOTENCY_TTL_HOURS", "-1")

	cfg, err := Load()

	assert.Nil(t, cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "IDEMPOTENCY_TTL_HOURS")
}
