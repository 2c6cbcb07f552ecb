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

// CartRepository implements repository.CartRepository using PostgreSQL.
type CartRepository struct {
	db database.DBTX
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(db database.DBTX) *CartRepository {
	return &CartRepository{db: db}
}

const queryGetCartByUser = `
	SELECT id, user_id, total_amount, updated_at
	FROM shopping_carts
	WHERE user_id = $1`

// GetByUserID retrieves the user's cart and its lines.
func (r *CartRepository) GetByUserID(ctx context.Context, userID string) (_ *domain.ShoppingCart, err error) {
	ctx, end := database.TraceQuery(ctx, "GetCartByUser", queryGetCartByUser)
	defer func() { end(err) }()

	var c domain.ShoppingCart
	err = r.db.QueryRow(ctx, queryGetCartByUser, userID).Scan(&c.ID, &c.UserID, &c.TotalAmount, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("shopping cart for user", userID)
		}
		return nil, fmt.Errorf("get cart by user: %w", err)
	}

	if c.Items, err = loadLines(ctx, r.db, ownerCart, c.ID); err != nil {
		return nil, err
	}
	return &c, nil
}

const queryInsertCart = `
	INSERT INTO shopping_carts (id, user_id, total_amount, updated_at)
	VALUES ($1, $2, $3, $4)`

// Create inserts an empty cart header followed by any lines.
func (r *CartRepository) Create(ctx context.Context, cart *domain.ShoppingCart) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateCart", queryInsertCart)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, queryInsertCart, cart.ID, cart.UserID, cart.TotalAmount, cart.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("shopping cart", "user_id", cart.UserID)
		}
		return fmt.Errorf("create cart: %w", err)
	}
	return insertLines(ctx, r.db, ownerCart, cart.ID, cart.Items)
}

const queryUpdateCart = `
	UPDATE shopping_carts
	SET total_amount = $2, updated_at = $3
	WHERE id = $1`

// Save writes the cart total and replaces every line.
func (r *CartRepository) Save(ctx context.Context, cart *domain.ShoppingCart) (err error) {
	ctx, end := database.TraceQuery(ctx, "SaveCart", queryUpdateCart)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, queryUpdateCart, cart.ID, cart.TotalAmount, cart.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("shopping cart for user", cart.UserID)
	}

	if err = deleteLines(ctx, r.db, ownerCart, cart.ID); err != nil {
		return err
	}
	return insertLines(ctx, r.db, ownerCart, cart.ID, cart.Items)
}
