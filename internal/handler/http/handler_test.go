package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EladReuveny/electronics-store-api/internal/domain"
	"github.com/EladReuveny/electronics-store-api/internal/event"
	"github.com/EladReuveny/electronics-store-api/internal/lock"
	"github.com/EladReuveny/electronics-store-api/internal/repository/memory"
	"github.com/EladReuveny/electronics-store-api/internal/service"
	"github.com/EladReuveny/electronics-store-api/pkg/health"
	"github.com/EladReuveny/electronics-store-api/pkg/httputil"
	"github.com/EladReuveny/electronics-store-api/pkg/pagination"
)

// --- Test Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testAPI struct {
	handler      http.Handler
	catalog      *service.CatalogService
	provisioning *service.ProvisioningService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.NewStore()
	locker := lock.New(lock.StrategyLocal)
	logger := testLogger()
	pub := event.NoopPublisher{}

	ledger := service.NewLedger(logger)
	orders := service.NewOrderService(store, locker, ledger, pub, logger, domain.DefaultCancellationWindow)
	carts := service.NewCartService(store, locker, ledger, orders, pub, logger)
	svc := Services{
		Carts:        carts,
		WishLists:    service.NewWishListService(store, locker, carts, pub, logger),
		Orders:       orders,
		Provisioning: service.NewProvisioningService(store, locker, logger),
	}
	return &testAPI{
		handler:      NewRouter(svc, health.NewHandler(), logger, []string{"*"}),
		catalog:      service.NewCatalogService(store, locker, logger),
		provisioning: svc.Provisioning,
	}
}

func (a *testAPI) product(t *testing.T, price string, stock int) string {
	t.Helper()
	id := uuid.NewString()
	_, _, err := a.catalog.UpsertProduct(context.Background(), service.UpsertProductInput{
		ID:            id,
		Name:          "Laptop " + id[:4],
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		Category:      "LAPTOP",
	})
	require.NoError(t, err)
	return id
}

func (a *testAPI) user(t *testing.T) string {
	t.Helper()
	id := uuid.NewString()
	_, err := a.provisioning.ProvisionUser(context.Background(), id)
	require.NoError(t, err)
	return id
}

func (a *testAPI) stock(t *testing.T, productID string) int {
	t.Helper()
	p, err := a.catalog.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.StockQuantity
}

type envelope struct {
	Data  json.RawMessage         `json:"data"`
	Error *httputil.ErrorResponse `json:"error"`
}

func (a *testAPI) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func cartPath(userID string, rest ...string) string {
	return "/api/v1/shopping-cart/user/" + userID + strings.Join(rest, "")
}

func wishListPath(userID string, rest ...string) string {
	return "/api/v1/wish-lists/user/" + userID + strings.Join(rest, "")
}

// ---------------------------------------------------------------------------
// Shopping cart
// ---------------------------------------------------------------------------

func TestCart_AddGetRemove(t *testing.T) {
	api := newTestAPI(t)
	p := api.product(t, "10.00", 5)
	u := api.user(t)

	rec, env := api.do(t, http.MethodPost, cartPath(u, "/add-product/", p, "?quantity=3"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decodeData[domain.ShoppingCart](t, env)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(30).Equal(cart.TotalAmount))
	assert.Equal(t, 2, api.stock(t, p))

	rec, env = api.do(t, http.MethodGet, cartPath(u), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[domain.ShoppingCart](t, env).Items, 1)

	rec, env = api.do(t, http.MethodDelete, cartPath(u, "/remove-product/", p), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeData[domain.ShoppingCart](t, env).Items)
	assert.Equal(t, 5, api.stock(t, p))
}

func TestCart_AddProductDefaultsToOne(t *testing.T) {
	api := newTestAPI(t)
	p := api.product(t, "1.00", 5)
	u := api.user(t)

	rec, env := api.do(t, http.MethodPost, cartPath(u, "/add-product/", p), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeData[domain.ShoppingCart](t, env).Items[0].Quantity)
}

func TestCart_ErrorMapping(t *testing.T) {
	api := newTestAPI(t)
	p := api.product(t, "10.00", 2)
	u := api.user(t)

	tests := []struct {
		name   string
		method string
		path   string
		status int
		code   string
	}{
		{"insufficient stock", http.MethodPost, cartPath(u, "/add-product/", p, "?quantity=3"), http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"zero quantity", http.MethodPost, cartPath(u, "/add-product/", p, "?quantity=0"), http.StatusBadRequest, "INVALID_INPUT"},
		{"non-numeric quantity", http.MethodPost, cartPath(u, "/add-product/", p, "?quantity=two"), http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown product", http.MethodPost, cartPath(u, "/add-product/", uuid.NewString()), http.StatusNotFound, "NOT_FOUND"},
		{"malformed user id", http.MethodGet, cartPath("not-a-uuid"), http.StatusBadRequest, "INVALID_PARAMETER"},
		{"unknown cart", http.MethodGet, cartPath(uuid.NewString()), http.StatusNotFound, "NOT_FOUND"},
		{"clear empty cart", http.MethodDelete, cartPath(u, "/clear-cart"), http.StatusUnprocessableEntity, "INVALID_STATE"},
		{"checkout empty cart", http.MethodPost, cartPath(u, "/checkout"), http.StatusUnprocessableEntity, "INVALID_STATE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := api.do(t, tt.method, tt.path, "")
			assert.Equal(t, tt.status, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
	assert.Equal(t, 2, api.stock(t, p))
}

func TestCart_ClearReleasesStock(t *testing.T) {
	api := newTestAPI(t)
	p := api.product(t, "4.00", 3)
	u := api.user(t)

	rec, _ := api.do(t, http.MethodPost, cartPath(u, "/add-product/", p, "?quantity=3"), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := api.do(t, http.MethodDelete, cartPath(u, "/clear-cart"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decodeData[domain.ShoppingCart](t, env)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.TotalAmount.IsZero())
	assert.Equal(t, 3, api.stock(t, p))
}

// ---------------------------------------------------------------------------
// Checkout and orders
// ---------------------------------------------------------------------------

func (a *testAPI) checkout(t *testing.T, quantity int) (userID, productID string, order domain.Order) {
	t.Helper()
	productID = a.product(t, "10.00", 5)
	userID = a.user(t)
	rec, _ := a.do(t, http.MethodPost, cartPath(userID, "/add-product/", productID, "?quantity=", strconv.Itoa(quantity)), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := a.do(t, http.MethodPost, cartPath(userID, "/checkout"), "")
	require.Equal(t, http.StatusCreated, rec.Code)
	return userID, productID, decodeData[domain.Order](t, env)
}

func TestCheckout_CreatesPendingOrder(t *testing.T) {
	api := newTestAPI(t)
	u, p, order := api.checkout(t, 3)

	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.True(t, decimal.NewFromInt(30).Equal(order.TotalAmount))
	assert.Equal(t, 2, api.stock(t, p))

	rec, env := api.do(t, http.MethodGet, cartPath(u), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeData[domain.ShoppingCart](t, env).Items)

	rec, env = api.do(t, http.MethodGet, "/api/v1/order/user/"+u, "")
	require.Equal(t, http.StatusOK, rec.Code)
	orders := decodeData[[]domain.Order](t, env)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)

	rec, env = api.do(t, http.MethodGet, "/api/v1/order/"+order.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, order.ID, decodeData[domain.Order](t, env).ID)
}

func TestListOrders_Paginated(t *testing.T) {
	api := newTestAPI(t)
	for range 3 {
		api.checkout(t, 1)
	}

	rec, env := api.do(t, http.MethodGet, "/api/v1/order?page=2&per_page=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeData[pagination.Result[domain.Order]](t, env)
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Items, 1)
	assert.True(t, page.HasPrev)
	assert.False(t, page.HasNext)
}

func TestListUserOrders_EmptyIsArray(t *testing.T) {
	api := newTestAPI(t)
	rec, env := api.do(t, http.MethodGet, "/api/v1/order/user/"+uuid.NewString(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestUpdateOrderStatus(t *testing.T) {
	api := newTestAPI(t)
	_, _, order := api.checkout(t, 1)
	path := "/api/v1/order/" + order.ID

	rec, env := api.do(t, http.MethodPut, path, `{"status": "shipped"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.OrderStatusShipped, decodeData[domain.Order](t, env).Status)

	rec, env = api.do(t, http.MethodPut, path, `{"status": "LOST"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)

	rec, env = api.do(t, http.MethodPut, path, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "status")

	rec, env = api.do(t, http.MethodPut, path, `{"status": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)

	rec, _ = api.do(t, http.MethodPut, "/api/v1/order/"+uuid.NewString(), `{"status": "SHIPPED"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateOrderStatus_RejectsNonJSON(t *testing.T) {
	api := newTestAPI(t)
	_, _, order := api.checkout(t, 1)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/order/"+order.ID, strings.NewReader("status=SHIPPED"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestCancelOrder(t *testing.T) {
	api := newTestAPI(t)
	_, p, order := api.checkout(t, 4)
	require.Equal(t, 1, api.stock(t, p))

	rec, _ := api.do(t, http.MethodDelete, "/api/v1/order/"+order.ID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 5, api.stock(t, p))

	rec, env := api.do(t, http.MethodGet, "/api/v1/order/"+order.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	rec, _ = api.do(t, http.MethodDelete, "/api/v1/order/"+order.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ---------------------------------------------------------------------------
// Wish lists
// ---------------------------------------------------------------------------

func TestWishList_Flow(t *testing.T) {
	api := newTestAPI(t)
	a := api.product(t, "20.00", 5)
	b := api.product(t, "1.00", 5)
	u := api.user(t)

	for _, p := range []string{a, b} {
		rec, _ := api.do(t, http.MethodPost, wishListPath(u, "/add-product/", p), "")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, env := api.do(t, http.MethodPost, wishListPath(u, "/add-product/", a), "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_EXISTS", env.Error.Code)

	rec, env = api.do(t, http.MethodPost, wishListPath(u, "/move-to-cart/", a, "?quantity=2"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{b}, decodeData[domain.WishList](t, env).ProductIDs)
	assert.Equal(t, 3, api.stock(t, a))

	rec, env = api.do(t, http.MethodGet, cartPath(u), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decimal.NewFromInt(40).Equal(decodeData[domain.ShoppingCart](t, env).TotalAmount))

	rec, env = api.do(t, http.MethodDelete, wishListPath(u, "/remove-product/", a), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)

	rec, env = api.do(t, http.MethodDelete, wishListPath(u, "/clear-wishlist"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeData[domain.WishList](t, env).ProductIDs)

	rec, env = api.do(t, http.MethodDelete, wishListPath(u, "/clear-wishlist"), "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_STATE", env.Error.Code)

	rec, env = api.do(t, http.MethodGet, wishListPath(u), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeData[domain.WishList](t, env).ProductIDs)
}

func TestWishList_MoveToCartInsufficientStock(t *testing.T) {
	api := newTestAPI(t)
	p := api.product(t, "20.00", 1)
	u := api.user(t)

	rec, _ := api.do(t, http.MethodPost, wishListPath(u, "/add-product/", p), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := api.do(t, http.MethodPost, wishListPath(u, "/move-to-cart/", p, "?quantity=2"), "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", env.Error.Code)

	_, env = api.do(t, http.MethodGet, wishListPath(u), "")
	assert.Equal(t, []string{p}, decodeData[domain.WishList](t, env).ProductIDs)
	assert.Equal(t, 1, api.stock(t, p))
}

// ---------------------------------------------------------------------------
// Provisioning and ambient routes
// ---------------------------------------------------------------------------

func TestProvisionUser(t *testing.T) {
	api := newTestAPI(t)
	u := uuid.NewString()

	rec, env := api.do(t, http.MethodPost, "/api/v1/users/"+u+"/provision", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decodeData[service.Provisioned](t, env)
	assert.True(t, first.CartCreated)

	rec, env = api.do(t, http.MethodPost, "/api/v1/users/"+u+"/provision", "")
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeData[service.Provisioned](t, env)
	assert.Equal(t, first.CartID, second.CartID)

	rec, _ = api.do(t, http.MethodGet, cartPath(u), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		api.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
