package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/dinewise/analysis/internal/config"
	"github.com/dinewise/analysis/internal/event"
	handler "github.com/dinewise/analysis/internal/handler/http"
	"github.com/dinewise/analysis/internal/repository"
	"github.com/dinewise/analysis/internal/repository/elasticsearch"
	"github.com/dinewise/analysis/internal/repository/memory"
	"github.com/dinewise/analysis/internal/repository/postgres"
	"github.com/dinewise/analysis/internal/reputation"
	"github.com/dinewise/analysis/internal/service"
	"github.com/dinewise/analysis/migrations"
	"github.com/dinewise/analysis/pkg/database"
	"github.com/dinewise/analysis/pkg/health"
	"github.com/dinewise/analysis/pkg/httpclient"
	pkgkafka "github.com/dinewise/analysis/pkg/kafka"
	"github.com/dinewise/analysis/pkg/middleware"
	"github.com/dinewise/analysis/pkg/tracing"
)

// App wires together all dependencies and runs the analysis service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redisClient    *redis.Client
	dlq            *pkgkafka.DLQProducer
	httpServer     *http.Server
	reviewCreated  *pkgkafka.Consumer
	reviewDeleted  *pkgkafka.Consumer
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "analysis",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool for the vote ledger and
	// certification tables.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	prometheus.MustRegister(database.NewPoolStatsCollector(pool, "analysis"))

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Place aggregate store: Elasticsearch in production, in-memory for
	// local development and tests.
	var (
		store     repository.PlaceAggregateStore
		storePing func(ctx context.Context) error
	)
	switch cfg.AggregateStore {
	case config.EngineElasticsearch:
		esStore, err := elasticsearch.New(cfg.ElasticsearchURL, cfg.ElasticsearchIndex, logger)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("init elasticsearch store: %w", err)
		}
		logger.Info("connected to Elasticsearch",
			slog.String("url", cfg.ElasticsearchURL),
			slog.String("index", cfg.ElasticsearchIndex),
		)
		store = esStore
		storePing = esStore.Ping
	case config.EngineMemory:
		logger.Warn("using in-memory place aggregate store, data is not persisted")
		store = memory.NewStore()
	}

	// Event idempotency backend.
	var (
		redisClient      *redis.Client
		idempotencyStore pkgkafka.IdempotencyStore
	)
	idempotencyTTL := time.Duration(cfg.IdempotencyTTLHours) * time.Hour
	if cfg.IdempotencyBackend == config.IdempotencyRedis {
		redisCfg := database.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
		redisClient, err = database.NewRedisClient(ctx, redisCfg)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("connected to Redis", slog.String("addr", redisCfg.Addr()))
		idempotencyStore = pkgkafka.NewRedisIdempotencyStore(redisClient, "analysis", idempotencyTTL)
	} else {
		idempotencyStore = pkgkafka.NewMemoryIdempotencyStore(idempotencyTTL)
	}

	// Verify Kafka broker connectivity with retry. A failure here is not
	// fatal: the consumers reconnect on their own once brokers come back.
	if err := pingKafkaWithRetry(ctx, cfg.KafkaBrokers, logger); err != nil {
		logger.Warn("kafka ping failed after retries, continuing in degraded mode",
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("kafka brokers reachable", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Reputation service client behind a circuit breaker.
	repClient := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig("reputation"),
		logger,
	)
	reputationClient := reputation.NewClient(repClient, cfg.ReputationServiceURL)

	// Build the dependency graph.
	voteRepo := postgres.NewVoteRepository(pool)
	certRepo := postgres.NewCertificationRepository(pool)

	aggregationService := service.NewAggregationService(store, logger)
	voteService := service.NewVoteService(
		voteRepo,
		reputationClient,
		time.Duration(cfg.ReputationTimeoutMs)*time.Millisecond,
		logger,
	)
	certificationService := service.NewCertificationService(certRepo, logger)

	// Kafka consumers for review lifecycle events.
	eventConsumer := event.NewConsumer(aggregationService, voteService, logger)
	dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)

	reviewCreatedConsumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  fmt.Sprintf("%s-review-created", cfg.ConsumerGroup),
		Topic:    event.TopicReviewCreated,
		MinBytes: 1,
		MaxBytes: 10e6,
	}, pkgkafka.IdempotentHandler(idempotencyStore, eventConsumer.HandleReviewCreated, logger), dlq, logger)

	reviewDeletedConsumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  fmt.Sprintf("%s-review-deleted", cfg.ConsumerGroup),
		Topic:    event.TopicReviewDeleted,
		MinBytes: 1,
		MaxBytes: 10e6,
	}, pkgkafka.IdempotentHandler(idempotencyStore, eventConsumer.HandleReviewDeleted, logger), dlq, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if storePing != nil {
		healthHandler.Register("elasticsearch", storePing)
	}
	if redisClient != nil {
		healthHandler.Register("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	healthHandler.Register("kafka", func(ctx context.Context) error {
		return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
	})

	// HTTP router.
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	corsCfg.Environment = cfg.Environment

	router := handler.NewRouter(
		aggregationService,
		voteService,
		certificationService,
		healthHandler,
		corsCfg,
		logger,
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redisClient:    redisClient,
		dlq:            dlq,
		httpServer:     httpServer,
		reviewCreated:  reviewCreatedConsumer,
		reviewDeleted:  reviewDeletedConsumer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and Kafka consumers, then blocks until the
// context is canceled or a component fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 3)

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Start Kafka consumers.
	go func() {
		if err := a.reviewCreated.Start(ctx); err != nil {
			errCh <- fmt.Errorf("review created consumer: %w", err)
		}
	}()

	go func() {
		if err := a.reviewDeleted.Start(ctx); err != nil {
			errCh <- fmt.Errorf("review deleted consumer: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka consumers and DLQ producer
// 4. Redis client
// 5. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Close Kafka consumers, then the shared DLQ producer.
	if err := a.reviewCreated.Close(); err != nil {
		a.logger.Error("review created consumer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if err := a.reviewDeleted.Close(); err != nil {
		a.logger.Error("review deleted consumer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if err := a.dlq.Close(); err != nil {
		a.logger.Error("dlq producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 4. Close Redis client if configured.
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 5. Close PostgreSQL pool.
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// pingKafkaWithRetry attempts to reach the Kafka brokers with exponential
// backoff (3 attempts, 1s/2s/4s with ±25% jitter).
func pingKafkaWithRetry(ctx context.Context, brokers []string, logger *slog.Logger) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := pkgkafka.PingBrokers(ctx, brokers); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < 2 {
			base := time.Duration(1<<uint(attempt)) * time.Second
			jitter := time.Duration(float64(base) * 0.25 * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter for retry backoff
			wait := base + jitter
			logger.Warn("kafka ping failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", 3),
				slog.Duration("backoff", wait),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("kafka ping: context canceled during retry: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
	}
	return fmt.Errorf("kafka ping failed after 3 attempts: %w", lastErr)
}
