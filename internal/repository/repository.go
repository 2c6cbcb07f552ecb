package repository

import (
	"context"

	"github.com/EladReuveny/electronics-store-api/internal/domain"
)

// ProductRepository defines persistence operations for catalog products.
// Lookups of a missing product return apperrors.ErrNotFound.
type ProductRepository interface {
	// GetByID retrieves a product by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// Upsert inserts the product, or updates its metadata and price when it
	// already exists. Stock is written only on insert. It reports whether the
	// product was inserted.
	Upsert(ctx context.Context, product *domain.Product) (bool, error)

	// UpdateStock overwrites the available stock of a product.
	UpdateStock(ctx context.Context, id string, quantity int) error

	// List returns a page of products ordered by name and the total count.
	List(ctx context.Context, offset, limit int) ([]domain.Product, int, error)
}

// CartRepository defines persistence operations for shopping carts.
type CartRepository interface {
	// GetByUserID retrieves the cart owned by userID, lines included.
	GetByUserID(ctx context.Context, userID string) (*domain.ShoppingCart, error)

	// Create inserts a new cart. It fails with apperrors.ErrAlreadyExists when
	// the user already owns one.
	Create(ctx context.Context, cart *domain.ShoppingCart) error

	// Save writes the cart total and replaces its lines.
	Save(ctx context.Context, cart *domain.ShoppingCart) error
}

// WishListRepository defines persistence operations for wish lists.
type WishListRepository interface {
	GetByUserID(ctx context.Context, userID string) (*domain.WishList, error)
	Create(ctx context.Context, wishList *domain.WishList) error
	Save(ctx context.Context, wishList *domain.WishList) error
}

// OrderRepository defines persistence operations for orders.
type OrderRepository interface {
	// GetByID retrieves an order with its lines.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// ListByUserID returns every order of a user, newest first.
	ListByUserID(ctx context.Context, userID string) ([]domain.Order, error)

	// List returns a page of all orders, newest first, and the total count.
	List(ctx context.Context, offset, limit int) ([]domain.Order, int, error)

	// Create inserts an order and its lines.
	Create(ctx context.Context, order *domain.Order) error

	// UpdateStatus overwrites the status of an order.
	UpdateStatus(ctx context.Context, order *domain.Order) error

	// Delete removes an order and its lines.
	Delete(ctx context.Context, id string) error
}

// KeyLocker serializes access to named aggregates for the rest of a unit of
// work. Keys already held by the caller are skipped.
type KeyLocker interface {
	LockKeys(ctx context.Context, keys ...string) error
}

// Repositories bundles the repositories bound to one unit of work.
type Repositories struct {
	Products  ProductRepository
	Carts     CartRepository
	WishLists WishListRepository
	Orders    OrderRepository
	Locks     KeyLocker
}

// TxFunc is the body of a unit of work.
type TxFunc func(ctx context.Context, repos Repositories) error

// UnitOfWork runs groups of repository calls atomically. Either every write
// made inside fn is committed or none is.
type UnitOfWork interface {
	// Repositories returns repositories for plain reads outside a transaction.
	Repositories() Repositories

	// WithinTx runs fn in a transaction, committing when it returns nil.
	WithinTx(ctx context.Context, fn TxFunc) error
}

// NoopLocker is a KeyLocker that never blocks.
type NoopLocker struct{}

// LockKeys implements KeyLocker.
func (NoopLocker) LockKeys(context.Context, ...string) error { return nil }
