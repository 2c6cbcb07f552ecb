package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EladReuveny/electronics-store-api/internal/domain"
	"github.com/EladReuveny/electronics-store-api/internal/repository"
	apperrors "github.com/EladReuveny/electronics-store-api/pkg/errors"
)

func seedProduct(t *testing.T, s *Store, id string, stock int) {
	t.Helper()
	_, err := s.Repositories().Products.Upsert(context.Background(), &domain.Product{
		ID:            id,
		Name:          "product " + id,
		Price:         decimal.NewFromInt(10),
		StockQuantity: stock,
		Category:      domain.CategoryLaptop,
	})
	require.NoError(t, err)
}

func TestWithinTx_CommitsOnSuccess(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 5)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return repos.Products.UpdateStock(ctx, "p1", 2)
	})
	require.NoError(t, err)

	p, err := s.Repositories().Products.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.StockQuantity)
}

func TestWithinTx_DiscardsOnError(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 5)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		require.NoError(t, repos.Products.UpdateStock(ctx, "p1", 0))
		require.NoError(t, repos.Carts.Create(ctx, &domain.ShoppingCart{ID: "c1", UserID: "u1"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, err := s.Repositories().Products.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.StockQuantity)

	_, err = s.Repositories().Carts.GetByUserID(ctx, "u1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestWithinTx_ReadsOwnWrites(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 5)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		require.NoError(t, repos.Products.UpdateStock(ctx, "p1", 1))
		p, err := repos.Products.GetByID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, 1, p.StockQuantity)

		outside, err := s.Repositories().Products.GetByID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, 5, outside.StockQuantity)
		return nil
	})
	require.NoError(t, err)
}

func TestProductUpsert_KeepsStockOnUpdate(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 5)
	ctx := context.Background()

	inserted, err := s.Repositories().Products.Upsert(ctx, &domain.Product{
		ID:            "p1",
		Name:          "renamed",
		Price:         decimal.NewFromInt(12),
		StockQuantity: 100,
	})
	require.NoError(t, err)
	assert.False(t, inserted)

	p, err := s.Repositories().Products.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", p.Name)
	assert.Equal(t, 5, p.StockQuantity)
}

func TestCartCreate_Duplicate(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repos := s.Repositories()

	require.NoError(t, repos.Carts.Create(ctx, &domain.ShoppingCart{ID: "c1", UserID: "u1"}))
	err := repos.Carts.Create(ctx, &domain.ShoppingCart{ID: "c2", UserID: "u1"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestCartGet_ReturnsCopy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repos := s.Repositories()
	require.NoError(t, repos.Carts.Create(ctx, &domain.ShoppingCart{
		ID: "c1", UserID: "u1", Items: []domain.LineItem{{ProductID: "p1", Quantity: 1}},
	}))

	c, err := repos.Carts.GetByUserID(ctx, "u1")
	require.NoError(t, err)
	c.Items[0].Quantity = 50

	again, err := repos.Carts.GetByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Items[0].Quantity)
}

func TestOrders_ListDeleteAndPaging(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := s.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		for i, id := range []string{"o1", "o2", "o3"} {
			user := "u1"
			if id == "o3" {
				user = "u2"
			}
			if err := repos.Orders.Create(ctx, &domain.Order{
				ID: id, UserID: user, Status: domain.OrderStatusPending, CreatedAt: base.Add(time.Duration(i) * time.Hour),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	repos := s.Repositories()
	byUser, err := repos.Orders.ListByUserID(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, byUser, 2)
	assert.Equal(t, "o2", byUser[0].ID)

	paged, total, err := repos.Orders.List(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, paged, 1)
	assert.Equal(t, "o2", paged[0].ID)

	err = s.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Orders.Delete(ctx, "o1"); err != nil {
			return err
		}
		_, err := repos.Orders.GetByID(ctx, "o1")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		return nil
	})
	require.NoError(t, err)

	_, total, err = repos.Orders.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestOrderUpdateStatus_Missing(t *testing.T) {
	s := NewStore()
	err := s.Repositories().Orders.UpdateStatus(context.Background(), &domain.Order{ID: "nope", Status: domain.OrderStatusShipped})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestWithinTx_CanceledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := s.WithinTx(ctx, func(context.Context, repository.Repositories) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
