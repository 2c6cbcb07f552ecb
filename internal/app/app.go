// Package app wires the engine's dependencies and runs its servers.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/EladReuveny/electronics-store-api/internal/config"
	"github.com/EladReuveny/electronics-store-api/internal/event"
	handler "github.com/EladReuveny/electronics-store-api/internal/handler/http"
	"github.com/EladReuveny/electronics-store-api/internal/service"
	"github.com/EladReuveny/electronics-store-api/pkg/database"
	"github.com/EladReuveny/electronics-store-api/pkg/health"
	pkgkafka "github.com/EladReuveny/electronics-store-api/pkg/kafka"
	"github.com/EladReuveny/electronics-store-api/pkg/tracing"
)

// ServiceName labels logs, metrics and traces.
const ServiceName = "store-engine"

// Version is overridden at build time.
var Version = "0.1.0"

// App wires together all dependencies and runs the engine.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	store          *Store
	engine         *Engine
	redis          *redis.Client
	producer       *pkgkafka.Producer
	consumer       *pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing(ServiceName, Version))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.store = store
	if store.Pool != nil {
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, store.Pool, ServiceName); err != nil {
			logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
		}
	}

	healthHandler := health.NewHandler()
	if store.Pool != nil {
		pool := store.Pool
		healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
			return pool.Ping(ctx)
		})
	}

	var publisher service.EventPublisher = event.NoopPublisher{}
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.ProducerConfig{Brokers: cfg.KafkaBrokers}, logger)
		publisher = event.NewProducer(a.producer, logger)
		healthHandler.RegisterOptional("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Info("kafka disabled, domain events are discarded")
	}

	a.engine = NewEngine(store, publisher, cfg.CancellationWindow(), logger)

	if cfg.KafkaEnabled {
		idempotency := a.idempotencyStore(ctx, healthHandler)
		consumer := event.NewConsumer(a.engine.Provisioning, a.engine.Catalog, logger)
		a.consumer = pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaConsumerGroup,
			Topics:  event.ConsumedTopics(),
		}, pkgkafka.IdempotentHandler(idempotency, consumer.Handle, logger), logger)
	}

	router := handler.NewRouter(a.engine.HTTPServices(), healthHandler, logger, cfg.CORSOrigins)
	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// idempotencyStore prefers Redis so replicas share processed event IDs and
// falls back to a process-local store.
func (a *App) idempotencyStore(ctx context.Context, h *health.Handler) pkgkafka.IdempotencyStore {
	ttl := a.cfg.IdempotencyTTL
	if a.cfg.RedisAddr == "" {
		return pkgkafka.NewMemoryIdempotencyStore(ttl)
	}

	client, err := database.NewRedisClient(ctx, a.cfg.Redis())
	if err != nil {
		a.logger.Warn("redis unavailable, using in-memory idempotency store",
			slog.String("error", err.Error()),
		)
		return pkgkafka.NewMemoryIdempotencyStore(ttl)
	}
	a.redis = client
	h.RegisterOptional("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	a.logger.Info("connected to Redis", slog.String("addr", a.cfg.RedisAddr))
	return pkgkafka.NewRedisIdempotencyStore(client, "", ttl)
}

// Run starts the HTTP server and the event consumer, then blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(ctx); err != nil {
				errCh <- fmt.Errorf("event consumer: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	return errors.Join(runErr, a.Shutdown())
}

// Shutdown gracefully stops all components in order: HTTP server, tracer,
// consumer, producer, Redis, then the store.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")
	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.store.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
