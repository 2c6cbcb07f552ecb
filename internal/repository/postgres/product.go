package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/EladReuveny/electronics-store-api/internal/domain"
	"github.com/EladReuveny/electronics-store-api/pkg/database"
	apperrors "github.com/EladReuveny/electronics-store-api/pkg/errors"
)

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	db database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, name, description, price, stock_quantity, category, image_url, created_at, updated_at`

const queryGetProduct = `
	SELECT ` + productColumns + `
	FROM products
	WHERE id = $1`

// GetByID retrieves a product by its unique identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (_ *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, "GetProductByID", queryGetProduct)
	defer func() { end(err) }()

	p, err := scanProduct(r.db.QueryRow(ctx, queryGetProduct, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return p, nil
}

// (xmax = 0) is true only for rows created by this statement.
const queryUpsertProduct = `
	INSERT INTO products (id, name, description, price, stock_quantity, category, image_url, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		description = EXCLUDED.description,
		price = EXCLUDED.price,
		category = EXCLUDED.category,
		image_url = EXCLUDED.image_url,
		updated_at = EXCLUDED.updated_at
	RETURNING (xmax = 0)`

// Upsert inserts the product or updates everything but its stock.
func (r *ProductRepository) Upsert(ctx context.Context, p *domain.Product) (inserted bool, err error) {
	ctx, end := database.TraceQuery(ctx, "UpsertProduct", queryUpsertProduct)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, queryUpsertProduct,
		p.ID,
		p.Name,
		p.Description,
		p.Price,
		p.StockQuantity,
		string(p.Category),
		p.ImageURL,
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert product: %w", err)
	}
	return inserted, nil
}

const queryUpdateStock = `
	UPDATE products
	SET stock_quantity = $2, updated_at = NOW()
	WHERE id = $1`

// UpdateStock overwrites the available stock of a product.
func (r *ProductRepository) UpdateStock(ctx context.Context, id string, quantity int) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateProductStock", queryUpdateStock)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, queryUpdateStock, id, quantity)
	if err != nil {
		return fmt.Errorf("update product stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

const queryListProducts = `
	SELECT ` + productColumns + `, count(*) OVER() AS total_count
	FROM products
	ORDER BY name ASC, id ASC
	LIMIT $1 OFFSET $2`

// List returns a page of products ordered by name and the total count.
func (r *ProductRepository) List(ctx context.Context, offset, limit int) (_ []domain.Product, _ int, err error) {
	ctx, end := database.TraceQuery(ctx, "ListProducts", queryListProducts)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, queryListProducts, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	total := 0
	for rows.Next() {
		var (
			p        domain.Product
			category string
		)
		if err = rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.Price, &p.StockQuantity,
			&category, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		p.Category = domain.Category(category)
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, total, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p        domain.Product
		category string
	)
	if err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.StockQuantity,
		&category, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Category = domain.Category(category)
	return &p, nil
}
