package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/EladReuveny/electronics-store-api/internal/domain"
	"github.com/EladReuveny/electronics-store-api/internal/lock"
	"github.com/EladReuveny/electronics-store-api/internal/repository"
	apperrors "github.com/EladReuveny/electronics-store-api/pkg/errors"
)

var stockUnits = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "engine_stock_units_total",
	Help: "Stock units moved by the ledger, by direction.",
}, []string{"direction"})

// Ledger is the only writer of product stock. It reads the product,
// checks the new level and writes it back inside the caller's unit of
// work. Whether two concurrent callers can interleave depends on the lock
// strategy the unit of work was started with.
type Ledger struct {
	logger *slog.Logger
}

// NewLedger creates a Ledger.
func NewLedger(logger *slog.Logger) *Ledger {
	return &Ledger{logger: logger}
}

// Reserve takes delta units out of a product's available stock and returns
// the updated product.
func (l *Ledger) Reserve(ctx context.Context, repos repository.Repositories, productID string, delta int) (*domain.Product, error) {
	p, err := l.load(ctx, repos, productID, delta)
	if err != nil {
		return nil, err
	}
	if delta > p.StockQuantity {
		return nil, apperrors.InsufficientStock(productID, delta, p.StockQuantity)
	}

	if err := repos.Products.UpdateStock(ctx, productID, p.StockQuantity-delta); err != nil {
		return nil, fmt.Errorf("reserve stock: %w", err)
	}
	p.StockQuantity -= delta
	stockUnits.WithLabelValues("reserved").Add(float64(delta))

	l.logger.DebugContext(ctx, "stock reserved",
		slog.String("product_id", productID),
		slog.Int("delta", delta),
		slog.Int("available", p.StockQuantity),
	)
	return p, nil
}

// Release returns delta units to a product's available stock and returns
// the updated product.
func (l *Ledger) Release(ctx context.Context, repos repository.Repositories, productID string, delta int) (*domain.Product, error) {
	p, err := l.load(ctx, repos, productID, delta)
	if err != nil {
		return nil, err
	}

	if err := repos.Products.UpdateStock(ctx, productID, p.StockQuantity+delta); err != nil {
		return nil, fmt.Errorf("release stock: %w", err)
	}
	p.StockQuantity += delta
	stockUnits.WithLabelValues("released").Add(float64(delta))

	l.logger.DebugContext(ctx, "stock released",
		slog.String("product_id", productID),
		slog.Int("delta", delta),
		slog.Int("available", p.StockQuantity),
	)
	return p, nil
}

func (l *Ledger) load(ctx context.Context, repos repository.Repositories, productID string, delta int) (*domain.Product, error) {
	if delta <= 0 {
		return nil, apperrors.InvalidInput(fmt.Sprintf("stock delta must be positive, got %d", delta))
	}
	if err := repos.Locks.LockKeys(ctx, lock.ProductKey(productID)); err != nil {
		return nil, fmt.Errorf("lock product: %w", err)
	}
	return repos.Products.GetByID(ctx, productID)
}
