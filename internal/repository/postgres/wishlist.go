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

// WishListRepository implements repository.WishListRepository using PostgreSQL.
type WishListRepository struct {
	db database.DBTX
}

// NewWishListRepository creates a new PostgreSQL-backed wish list repository.
func NewWishListRepository(db database.DBTX) *WishListRepository {
	return &WishListRepository{db: db}
}

const queryGetWishListByUser = `
	SELECT id, user_id, updated_at
	FROM wish_lists
	WHERE user_id = $1`

const queryWishListProducts = `
	SELECT product_id
	FROM wish_list_products
	WHERE wish_list_id = $1
	ORDER BY position ASC`

// GetByUserID retrieves the user's wish list with its products in insertion order.
func (r *WishListRepository) GetByUserID(ctx context.Context, userID string) (_ *domain.WishList, err error) {
	ctx, end := database.TraceQuery(ctx, "GetWishListByUser", queryGetWishListByUser)
	defer func() { end(err) }()

	var w domain.WishList
	err = r.db.QueryRow(ctx, queryGetWishListByUser, userID).Scan(&w.ID, &w.UserID, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("wish list for user", userID)
		}
		return nil, fmt.Errorf("get wish list by user: %w", err)
	}

	rows, err := r.db.Query(ctx, queryWishListProducts, w.ID)
	if err != nil {
		return nil, fmt.Errorf("load wish list products: %w", err)
	}
	defer rows.Close()

	w.ProductIDs = []string{}
	for rows.Next() {
		var productID string
		if err = rows.Scan(&productID); err != nil {
			return nil, fmt.Errorf("scan wish list product: %w", err)
		}
		w.ProductIDs = append(w.ProductIDs, productID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wish list products: %w", err)
	}
	return &w, nil
}

const queryInsertWishList = `
	INSERT INTO wish_lists (id, user_id, updated_at)
	VALUES ($1, $2, $3)`

// Create inserts a wish list and its products.
func (r *WishListRepository) Create(ctx context.Context, w *domain.WishList) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateWishList", queryInsertWishList)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, queryInsertWishList, w.ID, w.UserID, w.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("wish list", "user_id", w.UserID)
		}
		return fmt.Errorf("create wish list: %w", err)
	}
	return r.insertProducts(ctx, w)
}

const (
	queryTouchWishList = `
	UPDATE wish_lists
	SET updated_at = $2
	WHERE id = $1`

	queryDeleteWishListProducts = `DELETE FROM wish_list_products WHERE wish_list_id = $1`

	queryInsertWishListProduct = `
	INSERT INTO wish_list_products (wish_list_id, product_id, position)
	VALUES ($1, $2, $3)`
)

// Save replaces the wish list's products.
func (r *WishListRepository) Save(ctx context.Context, w *domain.WishList) (err error) {
	ctx, end := database.TraceQuery(ctx, "SaveWishList", queryTouchWishList)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, queryTouchWishList, w.ID, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save wish list: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("wish list for user", w.UserID)
	}
	if _, err = r.db.Exec(ctx, queryDeleteWishListProducts, w.ID); err != nil {
		return fmt.Errorf("clear wish list products: %w", err)
	}
	return r.insertProducts(ctx, w)
}

func (r *WishListRepository) insertProducts(ctx context.Context, w *domain.WishList) error {
	for i, productID := range w.ProductIDs {
		if _, err := r.db.Exec(ctx, queryInsertWishListProduct, w.ID, productID, i); err != nil {
			return fmt.Errorf("insert wish list product %s: %w", productID, err)
		}
	}
	return nil
}
