package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EladReuveny/electronics-store-api/internal/config"
	"github.com/EladReuveny/electronics-store-api/internal/lock"
	"github.com/EladReuveny/electronics-store-api/internal/repository"
	"github.com/EladReuveny/electronics-store-api/internal/repository/memory"
	"github.com/EladReuveny/electronics-store-api/internal/repository/postgres"
	"github.com/EladReuveny/electronics-store-api/migrations"
	"github.com/EladReuveny/electronics-store-api/pkg/database"
)

// Store is an opened persistence backend and the locker that fits it.
type Store struct {
	UnitOfWork repository.UnitOfWork
	Locker     lock.Locker
	// Pool is nil for the memory backend.
	Pool *pgxpool.Pool
}

// Close releases the backend's connections.
func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// OpenStore connects the backend selected by cfg.Store. Postgres pools are
// migrated when cfg.RunMigrations is set. The advisory lock strategy needs
// Postgres; with the memory backend it falls back to local locking.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	strategy := cfg.Strategy()

	if cfg.Store == config.StoreMemory {
		if strategy == lock.StrategyAdvisory {
			logger.Warn("advisory locks need postgres, using local locks for the memory store")
			strategy = lock.StrategyLocal
		}
		logger.Info("using in-memory store", slog.String("lock_strategy", string(strategy)))
		return &Store{UnitOfWork: memory.NewStore(), Locker: lock.New(strategy)}, nil
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
		slog.String("lock_strategy", string(strategy)),
	)

	if cfg.RunMigrations {
		applied, err := database.RunMigrations(ctx, pool, migrations.FS, logger)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed", slog.Int("applied", applied))
	}

	if cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	}

	return &Store{
		UnitOfWork: postgres.NewStore(pool),
		Locker:     lock.New(strategy),
		Pool:       pool,
	}, nil
}
