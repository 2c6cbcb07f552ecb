package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/EladReuveny/electronics-store-api/internal/domain"
	"github.com/EladReuveny/electronics-store-api/internal/lock"
	"github.com/EladReuveny/electronics-store-api/internal/repository/memory"
)

// --- Mock Publisher ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishCartUpdated(ctx context.Context, cart *domain.ShoppingCart) error {
	return m.Called(ctx, cart).Error(0)
}

func (m *mockPublisher) PublishCartCleared(ctx context.Context, cart *domain.ShoppingCart) error {
	return m.Called(ctx, cart).Error(0)
}

func (m *mockPublisher) PublishWishListUpdated(ctx context.Context, wishList *domain.WishList) error {
	return m.Called(ctx, wishList).Error(0)
}

func (m *mockPublisher) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *mockPublisher) PublishOrderStatusChanged(ctx context.Context, order *domain.Order, oldStatus domain.OrderStatus) error {
	return m.Called(ctx, order, oldStatus).Error(0)
}

func (m *mockPublisher) PublishOrderCanceled(ctx context.Context, order *domain.Order) error {
	return m.Called(ctx, order).Error(0)
}

// allowAll accepts every event, returning err.
func (m *mockPublisher) allowAll(err error) {
	for _, method := range []string{
		"PublishCartUpdated", "PublishCartCleared", "PublishWishListUpdated",
		"PublishOrderCreated", "PublishOrderCanceled",
	} {
		m.On(method, mock.Anything, mock.Anything).Return(err).Maybe()
	}
	m.On("PublishOrderStatusChanged", mock.Anything, mock.Anything, mock.Anything).Return(err).Maybe()
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store        *memory.Store
	publisher    *mockPublisher
	ledger       *Ledger
	orders       *OrderService
	carts        *CartService
	wishLists    *WishListService
	provisioning *ProvisioningService
	catalog      *CatalogService
}

func newFixture(t *testing.T, strategy lock.Strategy) *fixture {
	t.Helper()
	store := memory.NewStore()
	locker := lock.New(strategy)
	logger := newTestLogger()
	pub := &mockPublisher{}
	pub.allowAll(nil)

	ledger := NewLedger(logger)
	orders := NewOrderService(store, locker, ledger, pub, logger, domain.DefaultCancellationWindow)
	carts := NewCartService(store, locker, ledger, orders, pub, logger)
	return &fixture{
		store:        store,
		publisher:    pub,
		ledger:       ledger,
		orders:       orders,
		carts:        carts,
		wishLists:    NewWishListService(store, locker, carts, pub, logger),
		provisioning: NewProvisioningService(store, locker, logger),
		catalog:      NewCatalogService(store, locker, logger),
	}
}

func (f *fixture) product(t *testing.T, price string, stock int) string {
	t.Helper()
	id := uuid.New().String()
	_, _, err := f.catalog.UpsertProduct(context.Background(), UpsertProductInput{
		ID:            id,
		Name:          "product " + id[:8],
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		Category:      string(domain.CategoryLaptop),
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) user(t *testing.T) string {
	t.Helper()
	id := uuid.New().String()
	_, err := f.provisioning.ProvisionUser(context.Background(), id)
	require.NoError(t, err)
	return id
}

func (f *fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.store.Repositories().Products.GetByID(context.Background(), productID)
	require.NoError(t, err)
	return p.StockQuantity
}

func (f *fixture) cart(t *testing.T, userID string) *domain.ShoppingCart {
	t.Helper()
	c, err := f.carts.GetCart(context.Background(), userID)
	require.NoError(t, err)
	return c
}

func (f *fixture) wishList(t *testing.T, userID string) *domain.WishList {
	t.Helper()
	w, err := f.wishLists.GetWishList(context.Background(), userID)
	require.NoError(t, err)
	return w
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// requireCartTotal checks that the stored total equals the sum of
// quantity x current product price.
func (f *fixture) requireCartTotal(t *testing.T, userID string) {
	t.Helper()
	c := f.cart(t, userID)
	want := decimal.Zero
	for _, item := range c.Items {
		p, err := f.store.Repositories().Products.GetByID(context.Background(), item.ProductID)
		require.NoError(t, err)
		want = want.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	require.Truef(t, want.Equal(c.TotalAmount), "cart total %s, want %s", c.TotalAmount, want)
}
