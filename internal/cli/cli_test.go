package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EladReuveny/electronics-store-api/internal/app"
	"github.com/EladReuveny/electronics-store-api/internal/domain"
	"github.com/EladReuveny/electronics-store-api/internal/event"
	"github.com/EladReuveny/electronics-store-api/internal/lock"
	"github.com/EladReuveny/electronics-store-api/internal/repository/memory"
	"github.com/EladReuveny/electronics-store-api/internal/service"
	apperrors "github.com/EladReuveny/electronics-store-api/pkg/errors"
	"github.com/EladReuveny/electronics-store-api/pkg/pagination"
)

var testEnv = map[string]string{
	"STORE":         "memory",
	"KAFKA_ENABLED": "false",
	"LOG_LEVEL":     "error",
}

func newTestStore() *app.Store {
	return &app.Store{UnitOfWork: memory.NewStore(), Locker: lock.New(lock.StrategyLocal)}
}

func run(t *testing.T, store *app.Store, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand(Options{
		Out:       &out,
		Err:       &errOut,
		Env:       testEnv,
		Store:     store,
		Publisher: event.NoopPublisher{},
	})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func decode[T any](t *testing.T, raw string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestSeed_IsRepeatable(t *testing.T) {
	store := newTestStore()

	out, err := run(t, store, "seed")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"inserted": len(seedCatalog), "updated": 0}, decode[map[string]int](t, out))

	out, err = run(t, store, "seed")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"inserted": 0, "updated": len(seedCatalog)}, decode[map[string]int](t, out))

	out, err = run(t, store, "products", "list", "--per-page", "4")
	require.NoError(t, err)
	page := decode[pagination.Result[domain.Product]](t, out)
	assert.Equal(t, len(seedCatalog), page.TotalCount)
	assert.Len(t, page.Items, 4)
	assert.True(t, page.HasNext)
}

func TestProductsGet(t *testing.T) {
	store := newTestStore()
	_, err := run(t, store, "seed")
	require.NoError(t, err)

	id := seedInputs()[0].ID
	out, err := run(t, store, "products", "get", id)
	require.NoError(t, err)
	product := decode[domain.Product](t, out)
	assert.Equal(t, seedCatalog[0].name, product.Name)
	assert.Equal(t, seedCatalog[0].stock, product.StockQuantity)

	_, err = run(t, store, "products", "get", "nope")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = run(t, store, "products", "get", uuid.NewString())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProvision(t *testing.T) {
	store := newTestStore()
	user := uuid.NewString()

	out, err := run(t, store, "provision", user)
	require.NoError(t, err)
	first := decode[service.Provisioned](t, out)
	assert.True(t, first.CartCreated)
	assert.True(t, first.WishListCreated)

	out, err = run(t, store, "provision", user)
	require.NoError(t, err)
	assert.False(t, decode[service.Provisioned](t, out).CartCreated)

	_, err = run(t, store, "provision", "not-a-uuid")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestOrders_StatusAndCancel(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	_, err := run(t, store, "seed")
	require.NoError(t, err)

	user := uuid.NewString()
	_, err = run(t, store, "provision", user)
	require.NoError(t, err)

	engine := app.NewEngine(store, event.NoopPublisher{}, 14*24*time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	product := seedInputs()[0]
	_, err = engine.Carts.AddProduct(ctx, user, product.ID, 3)
	require.NoError(t, err)
	order, err := engine.Carts.Checkout(ctx, user)
	require.NoError(t, err)

	out, err := run(t, store, "orders", "list")
	require.NoError(t, err)
	page := decode[pagination.Result[domain.Order]](t, out)
	require.Equal(t, 1, page.TotalCount)
	assert.Equal(t, order.ID, page.Items[0].ID)

	out, err = run(t, store, "orders", "list", "--user", user)
	require.NoError(t, err)
	assert.Len(t, decode[[]domain.Order](t, out), 1)

	out, err = run(t, store, "orders", "list", "--user", uuid.NewString())
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)

	out, err = run(t, store, "orders", "status", order.ID, "shipped")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, decode[domain.Order](t, out).Status)

	_, err = run(t, store, "orders", "status", order.ID, "lost")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = run(t, store, "orders", "cancel", order.ID)
	require.NoError(t, err)

	out, err = run(t, store, "products", "get", product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.StockQuantity, decode[domain.Product](t, out).StockQuantity)

	_, err = run(t, store, "orders", "get", order.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMigrate_NeedsPostgres(t *testing.T) {
	_, err := run(t, newTestStore(), "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestInvalidStoreFlag(t *testing.T) {
	_, err := run(t, nil, "--store", "sqlite", "products", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite")
}

func TestOpensMemoryStoreFromConfig(t *testing.T) {
	out, err := run(t, nil, "seed")
	require.NoError(t, err)
	assert.Equal(t, len(seedCatalog), decode[map[string]int](t, out)["inserted"])
}
