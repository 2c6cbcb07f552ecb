// Package memory provides an in-process implementation of the repository
// interfaces. Writes made inside a unit of work are buffered and applied to
// the shared maps on commit; reads go through to the committed state, so two
// concurrent units of work can race exactly like two database transactions
// at READ COMMITTED without row locks.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/EladReuveny/electronics-store-api/internal/domain"
	"github.com/EladReuveny/electronics-store-api/internal/repository"
	apperrors "github.com/EladReuveny/electronics-store-api/pkg/errors"
)

// Store holds committed state.
type Store struct {
	mu        sync.RWMutex
	products  map[string]*domain.Product
	carts     map[string]*domain.ShoppingCart // keyed by user id
	wishLists map[string]*domain.WishList     // keyed by user id
	orders    map[string]*domain.Order
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		products:  make(map[string]*domain.Product),
		carts:     make(map[string]*domain.ShoppingCart),
		wishLists: make(map[string]*domain.WishList),
		orders:    make(map[string]*domain.Order),
	}
}

// Repositories returns auto-committing repositories.
func (s *Store) Repositories() repository.Repositories {
	return newTx(s, true).repositories()
}

// WithinTx runs fn against buffered repositories and applies the buffered
// writes only when fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := newTx(s, false)
	if err := fn(ctx, t.repositories()); err != nil {
		return err
	}
	t.commit()
	return nil
}

// tx buffers writes. A nil order entry marks a deletion.
type tx struct {
	store      *Store
	autocommit bool

	products  map[string]*domain.Product
	carts     map[string]*domain.ShoppingCart
	wishLists map[string]*domain.WishList
	orders    map[string]*domain.Order
}

func newTx(s *Store, autocommit bool) *tx {
	t := &tx{store: s, autocommit: autocommit}
	t.reset()
	return t
}

func (t *tx) reset() {
	t.products = make(map[string]*domain.Product)
	t.carts = make(map[string]*domain.ShoppingCart)
	t.wishLists = make(map[string]*domain.WishList)
	t.orders = make(map[string]*domain.Order)
}

func (t *tx) repositories() repository.Repositories {
	return repository.Repositories{
		Products:  &productRepo{t},
		Carts:     &cartRepo{t},
		WishLists: &wishListRepo{t},
		Orders:    &orderRepo{t},
		Locks:     repository.NoopLocker{},
	}
}

func (t *tx) commit() {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range t.products {
		s.products[id] = p
	}
	for userID, c := range t.carts {
		s.carts[userID] = c
	}
	for userID, w := range t.wishLists {
		s.wishLists[userID] = w
	}
	for id, o := range t.orders {
		if o == nil {
			delete(s.orders, id)
			continue
		}
		s.orders[id] = o
	}
	t.reset()
}

func (t *tx) written() {
	if t.autocommit {
		t.commit()
	}
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

type productRepo struct{ t *tx }

func (r *productRepo) lookup(id string) (*domain.Product, bool) {
	if p, ok := r.t.products[id]; ok {
		return p, true
	}
	r.t.store.mu.RLock()
	defer r.t.store.mu.RUnlock()
	p, ok := r.t.store.products[id]
	return p, ok
}

func (r *productRepo) GetByID(_ context.Context, id string) (*domain.Product, error) {
	p, ok := r.lookup(id)
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	cp := *p
	return &cp, nil
}

func (r *productRepo) Upsert(_ context.Context, product *domain.Product) (bool, error) {
	existing, ok := r.lookup(product.ID)
	cp := *product
	if ok {
		cp.StockQuantity = existing.StockQuantity
		cp.CreatedAt = existing.CreatedAt
	}
	r.t.products[cp.ID] = &cp
	r.t.written()
	return !ok, nil
}

func (r *productRepo) UpdateStock(_ context.Context, id string, quantity int) error {
	existing, ok := r.lookup(id)
	if !ok {
		return apperrors.NotFound("product", id)
	}
	cp := *existing
	cp.StockQuantity = quantity
	cp.UpdatedAt = time.Now().UTC()
	r.t.products[id] = &cp
	r.t.written()
	return nil
}

func (r *productRepo) List(_ context.Context, offset, limit int) ([]domain.Product, int, error) {
	r.t.store.mu.RLock()
	merged := make(map[string]*domain.Product, len(r.t.store.products))
	for id, p := range r.t.store.products {
		merged[id] = p
	}
	r.t.store.mu.RUnlock()
	for id, p := range r.t.products {
		merged[id] = p
	}

	all := make([]domain.Product, 0, len(merged))
	for _, p := range merged {
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return all[i].ID < all[j].ID
	})
	return page(all, offset, limit), len(all), nil
}

// ---------------------------------------------------------------------------
// Carts
// ---------------------------------------------------------------------------

type cartRepo struct{ t *tx }

func (r *cartRepo) lookup(userID string) (*domain.ShoppingCart, bool) {
	if c, ok := r.t.carts[userID]; ok {
		return c, true
	}
	r.t.store.mu.RLock()
	defer r.t.store.mu.RUnlock()
	c, ok := r.t.store.carts[userID]
	return c, ok
}

func (r *cartRepo) GetByUserID(_ context.Context, userID string) (*domain.ShoppingCart, error) {
	c, ok := r.lookup(userID)
	if !ok {
		return nil, apperrors.NotFound("shopping cart for user", userID)
	}
	return c.Clone(), nil
}

func (r *cartRepo) Create(_ context.Context, cart *domain.ShoppingCart) error {
	if _, ok := r.lookup(cart.UserID); ok {
		return apperrors.AlreadyExists("shopping cart", "user_id", cart.UserID)
	}
	r.t.carts[cart.UserID] = cart.Clone()
	r.t.written()
	return nil
}

func (r *cartRepo) Save(_ context.Context, cart *domain.ShoppingCart) error {
	if _, ok := r.lookup(cart.UserID); !ok {
		return apperrors.NotFound("shopping cart for user", cart.UserID)
	}
	r.t.carts[cart.UserID] = cart.Clone()
	r.t.written()
	return nil
}

// ---------------------------------------------------------------------------
// Wish lists
// ---------------------------------------------------------------------------

type wishListRepo struct{ t *tx }

func (r *wishListRepo) lookup(userID string) (*domain.WishList, bool) {
	if w, ok := r.t.wishLists[userID]; ok {
		return w, true
	}
	r.t.store.mu.RLock()
	defer r.t.store.mu.RUnlock()
	w, ok := r.t.store.wishLists[userID]
	return w, ok
}

func (r *wishListRepo) GetByUserID(_ context.Context, userID string) (*domain.WishList, error) {
	w, ok := r.lookup(userID)
	if !ok {
		return nil, apperrors.NotFound("wish list for user", userID)
	}
	return w.Clone(), nil
}

func (r *wishListRepo) Create(_ context.Context, wishList *domain.WishList) error {
	if _, ok := r.lookup(wishList.UserID); ok {
		return apperrors.AlreadyExists("wish list", "user_id", wishList.UserID)
	}
	r.t.wishLists[wishList.UserID] = wishList.Clone()
	r.t.written()
	return nil
}

func (r *wishListRepo) Save(_ context.Context, wishList *domain.WishList) error {
	if _, ok := r.lookup(wishList.UserID); !ok {
		return apperrors.NotFound("wish list for user", wishList.UserID)
	}
	r.t.wishLists[wishList.UserID] = wishList.Clone()
	r.t.written()
	return nil
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

type orderRepo struct{ t *tx }

func (r *orderRepo) lookup(id string) (*domain.Order, bool) {
	if o, ok := r.t.orders[id]; ok {
		return o, o != nil
	}
	r.t.store.mu.RLock()
	defer r.t.store.mu.RUnlock()
	o, ok := r.t.store.orders[id]
	return o, ok
}

func (r *orderRepo) all() []domain.Order {
	r.t.store.mu.RLock()
	merged := make(map[string]*domain.Order, len(r.t.store.orders))
	for id, o := range r.t.store.orders {
		merged[id] = o
	}
	r.t.store.mu.RUnlock()
	for id, o := range r.t.orders {
		if o == nil {
			delete(merged, id)
			continue
		}
		merged[id] = o
	}

	out := make([]domain.Order, 0, len(merged))
	for _, o := range merged {
		out = append(out, *o.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *orderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	o, ok := r.lookup(id)
	if !ok {
		return nil, apperrors.NotFound("order", id)
	}
	return o.Clone(), nil
}

func (r *orderRepo) ListByUserID(_ context.Context, userID string) ([]domain.Order, error) {
	orders := []domain.Order{}
	for _, o := range r.all() {
		if o.UserID == userID {
			orders = append(orders, o)
		}
	}
	return orders, nil
}

func (r *orderRepo) List(_ context.Context, offset, limit int) ([]domain.Order, int, error) {
	all := r.all()
	return page(all, offset, limit), len(all), nil
}

func (r *orderRepo) Create(_ context.Context, order *domain.Order) error {
	if _, ok := r.lookup(order.ID); ok {
		return apperrors.AlreadyExists("order", "id", order.ID)
	}
	r.t.orders[order.ID] = order.Clone()
	r.t.written()
	return nil
}

func (r *orderRepo) UpdateStatus(_ context.Context, order *domain.Order) error {
	existing, ok := r.lookup(order.ID)
	if !ok {
		return apperrors.NotFound("order", order.ID)
	}
	cp := existing.Clone()
	cp.Status = order.Status
	cp.UpdatedAt = order.UpdatedAt
	r.t.orders[order.ID] = cp
	r.t.written()
	return nil
}

func (r *orderRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.lookup(id); !ok {
		return apperrors.NotFound("order", id)
	}
	r.t.orders[id] = nil
	r.t.written()
	return nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
