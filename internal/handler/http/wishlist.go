package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/EladReuveny/electronics-store-api/internal/service"
	"github.com/EladReuveny/electronics-store-api/pkg/httputil"
)

// WishListHandler handles HTTP requests for wish list endpoints.
type WishListHandler struct {
	service *service.WishListService
	logger  *slog.Logger
}

// NewWishListHandler creates a new wish list HTTP handler.
func NewWishListHandler(svc *service.WishListService, logger *slog.Logger) *WishListHandler {
	return &WishListHandler{
		service: svc,
		logger:  logger,
	}
}

// GetWishList handles GET /api/v1/wish-lists/user/{userId}
func (h *WishListHandler) GetWishList(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParseUUID(w, "userId", chi.URLParam(r, "userId"))
	if !ok {
		return
	}

	wl, err := h.service.GetWishList(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: wl})
}

// AddProduct handles POST /api/v1/wish-lists/user/{userId}/add-product/{productId}
func (h *WishListHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	userID, productID, ok := userAndProduct(w, r)
	if !ok {
		return
	}

	wl, err := h.service.AddProduct(r.Context(), userID, productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: wl})
}

// RemoveProduct handles DELETE /api/v1/wish-lists/user/{userId}/remove-product/{productId}
func (h *WishListHandler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	userID, productID, ok := userAndProduct(w, r)
	if !ok {
		return
	}

	wl, err := h.service.RemoveProduct(r.Context(), userID, productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: wl})
}

// MoveToCart handles POST /api/v1/wish-lists/user/{userId}/move-to-cart/{productId}?quantity=
func (h *WishListHandler) MoveToCart(w http.ResponseWriter, r *http.Request) {
	userID, productID, ok := userAndProduct(w, r)
	if !ok {
		return
	}
	quantity, err := httputil.QueryInt(r, "quantity", 1)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	wl, err := h.service.MoveToCart(r.Context(), userID, productID, quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: wl})
}

// ClearWishList handles DELETE /api/v1/wish-lists/user/{userId}/clear-wishlist
func (h *WishListHandler) ClearWishList(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParseUUID(w, "userId", chi.URLParam(r, "userId"))
	if !ok {
		return
	}

	wl, err := h.service.Clear(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: wl})
}
