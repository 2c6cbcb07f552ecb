package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/EladReuveny/electronics-store-api/internal/domain"
	"github.com/EladReuveny/electronics-store-api/internal/lock"
	"github.com/EladReuveny/electronics-store-api/internal/repository"
	apperrors "github.com/EladReuveny/electronics-store-api/pkg/errors"
)

// CatalogService mirrors catalog products into the engine. After a product
// is first inserted its stock belongs to the Ledger; later upserts only
// refresh metadata and price.
type CatalogService struct {
	runner txRunner
	uow    repository.UnitOfWork
	logger *slog.Logger
	now    func() time.Time
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(uow repository.UnitOfWork, locker lock.Locker, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		runner: txRunner{uow: uow, locker: locker},
		uow:    uow,
		logger: logger,
		now:    utcNow,
	}
}

// UpsertProductInput holds catalog fields for a product.
type UpsertProductInput struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	Category      string          `json:"category"`
	ImageURL      string          `json:"image_url"`
}

// UpsertProduct inserts or refreshes a catalog product and reports whether
// it was inserted.
func (s *CatalogService) UpsertProduct(ctx context.Context, input UpsertProductInput) (*domain.Product, bool, error) {
	if input.ID == "" {
		return nil, false, apperrors.InvalidInput("product id is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, false, apperrors.InvalidInput("product name is required")
	}
	if input.Price.IsNegative() {
		return nil, false, apperrors.InvalidInput("price must not be negative")
	}
	if input.StockQuantity < 0 {
		return nil, false, apperrors.InvalidInput("stock quantity must not be negative")
	}
	category := domain.Category(strings.ToUpper(input.Category))
	if !category.IsValid() {
		return nil, false, apperrors.InvalidInput(fmt.Sprintf("invalid category %q", input.Category))
	}

	now := s.now()
	product := &domain.Product{
		ID:            input.ID,
		Name:          input.Name,
		Description:   input.Description,
		Price:         input.Price,
		StockQuantity: input.StockQuantity,
		Category:      category,
		ImageURL:      input.ImageURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var (
		stored   *domain.Product
		inserted bool
	)
	err := s.runner.run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Locks.LockKeys(ctx, lock.ProductKey(product.ID)); err != nil {
			return err
		}
		var err error
		if inserted, err = repos.Products.Upsert(ctx, product); err != nil {
			return err
		}
		stored, err = repos.Products.GetByID(ctx, product.ID)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("upsert product: %w", err)
	}

	s.logger.InfoContext(ctx, "product upserted",
		slog.String("product_id", stored.ID),
		slog.Bool("inserted", inserted),
		slog.Int("stock_quantity", stored.StockQuantity),
	)
	return stored, inserted, nil
}

// GetProduct retrieves a product by its ID.
func (s *CatalogService) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	p, err := s.uow.Repositories().Products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// ListProducts returns one page of products ordered by name and the total count.
func (s *CatalogService) ListProducts(ctx context.Context, page, perPage int) ([]domain.Product, int, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	products, total, err := s.uow.Repositories().Products.List(ctx, (page-1)*perPage, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}
