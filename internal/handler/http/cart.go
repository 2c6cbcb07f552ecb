package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/EladReuveny/electronics-store-api/internal/service"
	"github.com/EladReuveny/electronics-store-api/pkg/httputil"
)

// CartHandler handles HTTP requests for shopping cart endpoints.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// GetCart handles GET /api/v1/shopping-cart/user/{userId}
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParseUUID(w, "userId", chi.URLParam(r, "userId"))
	if !ok {
		return
	}

	cart, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// AddProduct handles POST /api/v1/shopping-cart/user/{userId}/add-product/{productId}?quantity=
// The quantity replaces any existing quantity for the product.
func (h *CartHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	userID, productID, ok := userAndProduct(w, r)
	if !ok {
		return
	}
	quantity, err := httputil.QueryInt(r, "quantity", 1)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	cart, err := h.service.AddProduct(r.Context(), userID, productID, quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// RemoveProduct handles DELETE /api/v1/shopping-cart/user/{userId}/remove-product/{productId}
func (h *CartHandler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	userID, productID, ok := userAndProduct(w, r)
	if !ok {
		return
	}

	cart, err := h.service.RemoveProduct(r.Context(), userID, productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// ClearCart handles DELETE /api/v1/shopping-cart/user/{userId}/clear-cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParseUUID(w, "userId", chi.URLParam(r, "userId"))
	if !ok {
		return
	}

	cart, err := h.service.Clear(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// Checkout handles POST /api/v1/shopping-cart/user/{userId}/checkout
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParseUUID(w, "userId", chi.URLParam(r, "userId"))
	if !ok {
		return
	}

	order, err := h.service.Checkout(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: order})
}

func userAndProduct(w http.ResponseWriter, r *http.Request) (userID, productID string, ok bool) {
	if userID, ok = httputil.ParseUUID(w, "userId", chi.URLParam(r, "userId")); !ok {
		return "", "", false
	}
	if productID, ok = httputil.ParseUUID(w, "productId", chi.URLParam(r, "productId")); !ok {
		return "", "", false
	}
	return userID, productID, true
}
