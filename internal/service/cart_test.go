package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/EladReuveny/electronics-store-api/internal/domain"
	"github.com/EladReuveny/electronics-store-api/internal/lock"
	"github.com/EladReuveny/electronics-store-api/internal/repository"
	apperrors "github.com/EladReuveny/electronics-store-api/pkg/errors"
)

// ---------------------------------------------------------------------------
// Ledger
// ---------------------------------------------------------------------------

func TestLedger_ReserveAndRelease(t *testing.T) {
	f := newFixture(t, lock.StrategyNone)
	p := f.product(t, "10.00", 5)
	ctx := context.Background()

	err := f.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		got, err := f.ledger.Reserve(ctx, repos, p, 3)
		require.NoError(t, err)
		assert.Equal(t, 2, got.StockQuantity)

		got, err = f.ledger.Release(ctx, repos, p, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, got.StockQuantity)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, f.stock(t, p))
}

func TestLedger_ReserveErrors(t *testing.T) {
	f := newFixture(t, lock.StrategyNone)
	p := f.product(t, "10.00", 2)
	repos := f.store.Repositories()
	ctx := context.Background()

	_, err := f.ledger.Reserve(ctx, repos, p, 3)
	require.ErrorIs(t, err, apperrors.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "requested 3, but only 2 left in stock")

	_, err = f.ledger.Reserve(ctx, repos, uuid.New().String(), 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.ledger.Release(ctx, repos, uuid.New().String(), 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	for _, delta := range []int{0, -1} {
		_, err = f.ledger.Reserve(ctx, repos, p, delta)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		_, err = f.ledger.Release(ctx, repos, p, delta)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	}
	assert.Equal(t, 2, f.stock(t, p))
}

// ---------------------------------------------------------------------------
// AddProduct
// ---------------------------------------------------------------------------

func TestAddProduct_ReservesAndTotals(t *testing.T) {
	f := newFixture(t, lock.StrategyNone)
	p := f.product(t, "10.00", 5)
	u := f.user(t)
	ctx := context.Background()

	cart, err := f.carts.AddProduct(ctx, u, p, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, f.stock(t, p))
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.True(t, dec("30").Equal(cart.TotalAmount))
	f.requireCartTotal(t, u)

	// Setting 8 needs 5 more while only 2 are left.
	_, err = f.carts.AddProduct(ctx, u, p, 8)
	require.ErrorIs(t, err, apperrors.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "requested 8, but only 2 left in stock")
	assert.Equal(t, 2, f.stock(t, p))
	assert.Equal(t, 3, f.cart(t, u).Items[0].Quantity)

	// Setting 5 needs exactly the 2 left.
	cart, err = f.carts.AddProduct(ctx, u, p, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, f.stock(t, p))
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.True(t, dec("50").Equal(cart.TotalAmount))
}

func TestAddProduct_SetsQuantityDownwards(t *testing.T) {
	f := newFixture(t, lock.StrategyNone)
	p := f.product(t, "2.50", 10)
	u := f.user(t)
	ctx := context.Background()

	_, err := f.carts.AddProduct(ctx, u, p, 6)
	require.NoError(t, err)
	cart, err := f.carts.AddProduct(ctx, u, p, 2)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, 8, f.stock(t, p))
	assert.True(t, dec("5").Equal(cart.TotalAmount))
}

func TestAddProduct_SameQuantityIsNoop(t *testing.T) {
	f := newFixture(t, lock.StrategyNone)
	p := f.product(t, "1.00", 4)
	u := f.user(t)
	ctx := context.Background()

	_, err := f.carts.AddProduct(ctx, u, p, 4)
	require.NoError(t, err)
	_, err = f.carts.AddProduct(ctx, u, p, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, f.stock(t, p))
	assert.Len(t, f.cart(t, u).Items, 1)
}

func TestAddProduct_Errors(t *testing.T) {
	f := newFixture(t, lock.StrategyNone)
	p := f.product(t, "1.00", 4)
	u := f.user(t)
	ctx := context.Background()

	_, err := f.carts.AddProduct(ctx, u, p, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.carts.AddProduct(ctx, u, uuid.New().String(), 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.carts.AddProduct(ctx, uuid.New().String(), p, 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	assert.Equal(t, 4, f.stock(t, p))
}

func TestAddProduct_TotalFollowsCurrentPrices(t *testing.T) {
	f := newFixture(t, lock.StrategyNone)
	a := f.product(t, "10.00", 10)
	b := f.product(t, "1.00", 10)
	u := f.user(t)
	ctx := context.Background()

	_, err := f.carts.AddProduct(ctx, u, a, 2)
	require.NoError(t, err)

	_, _, err = f.catalog.UpsertProduct(ctx, UpsertProductInput{
		ID: a, Name: "repriced", Price: dec("12.00"), Category: "LAPTOP",
	})
	require.NoError(t, err)

	cart, err := f.carts.AddProduct(ctx, u, b, 1)
	require.NoError(t, err)
	assert.True(t, dec("25").Equal(cart.TotalAmount))
	f.requireCartTotal(t, u)
}

// ---------------------------------------------------------------------------
// RemoveProduct / Clear
// ---------------------------------------------------------------------------

func TestRemoveProduct(t *testing.T) {
	f := newFixture(t, lock.StrategyNone)
	a := f.product(t, "10.00", 5)
	b := f.product(t, "3.00", 5)
	u := f.user(t)
	ctx := context.Background()

	_, err := f.carts.AddProduct(ctx, u, a, 2)
	require.NoError(t, err)
	_, err = f.carts.AddProduct(ctx, u, b, 1)
	require.NoError(t, err)

	cart, err := f.carts.RemoveProduct(ctx, u, a)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, b, cart.Items[0].ProductID)
	assert.True(t, dec("3").Equal(cart.TotalAmount))
	assert.Equal(t, 5, f.stock(t, a))

	// A product without a line is ignored.
	cart, err = f.carts.RemoveProduct(ctx, u, a)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, 5, f.stock(t, a))
}

func TestRemoveProduct_EmptyOrMissingCart(t *testing.T) {
	f := newFixture(t, lock.StrategyNone)
	p := f.product(t, "1.00", 1)
	u := f.user(t)
	ctx := context.Background()

	_, err := f.carts.RemoveProduct(ctx, u, p)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	_, err = f.carts.RemoveProduct(ctx, uuid.New().String(), p)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestClear_ReleasesEveryLine(t *testing.T) {
	f := newFixture(t, lock.StrategyLocal)
	a := f.product(t, "10.00", 5)
	b := f.product(t, "3.00", 7)
	u := f.user(t)
	ctx := context.Background()

	_, err := f.carts.AddProduct(ctx, u, a, 5)
	require.NoError(t, err)
	_, err = f.carts.AddProduct(ctx, u, b, 4)
	require.NoError(t, err)

	cart, err := f.carts.Clear(ctx, u)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.TotalAmount.IsZero())
	assert.Equal(t, 5, f.stock(t, a))
	assert.Equal(t, 7, f.stock(t, b))
	f.publisher.AssertCalled(t, "PublishCartCleared", mock.Anything, mock.Anything)

	_, err = f.carts.Clear(ctx, u)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

// ---------------------------------------------------------------------------
// Checkout
// ---------------------------------------------------------------------------

func TestCheckout_MovesReservationToOrder(t *testing.T) {
	f := newFixture(t, lock.StrategyNone)
	a := f.product(t, "10.00", 5)
	b := f.product(t, "4.25", 5)
	u := f.user(t)
	ctx := context.Background()

	_, err := f.carts.AddProduct(ctx, u, a, 3)
	require.NoError(t, err)
	before, err := f.carts.AddProduct(ctx, u, b, 2)
	require.NoError(t, err)

	order, err := f.carts.Checkout(ctx, u)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, u, order.UserID)
	assert.True(t, before.TotalAmount.Equal(order.TotalAmount))
	require.Len(t, order.Items, 2)
	for i, line := range before.Items {
		assert.Equal(t, line.ProductID, order.Items[i].ProductID)
		assert.Equal(t, line.Quantity, order.Items[i].Quantity)
		assert.NotEqual(t, line.ID, order.Items[i].ID)
	}

	cart := f.cart(t, u)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.TotalAmount.IsZero())
	assert.Equal(t, 2, f.stock(t, a))
	assert.Equal(t, 3, f.stock(t, b))

	stored, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
	f.publisher.AssertCalled(t, "PublishOrderCreated", mock.Anything, order)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t, lock.StrategyNone)
	u := f.user(t)

	_, err := f.carts.Checkout(context.Background(), u)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	_, err = f.carts.Checkout(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestCartOperations_SurvivePublishFailure(t *testing.T) {
	store := newFixture(t, lock.StrategyNone)
	failing := &mockPublisher{}
	failing.allowAll(errors.New("broker down"))
	store.carts.publisher = failing

	p := store.product(t, "1.00", 3)
	u := store.user(t)

	cart, err := store.carts.AddProduct(context.Background(), u, p, 1)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	failing.AssertCalled(t, "PublishCartUpdated", mock.Anything, mock.Anything)
}

func TestGetCart_NotFound(t *testing.T) {
	f := newFixture(t, lock.StrategyNone)
	_, err := f.carts.GetCart(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
