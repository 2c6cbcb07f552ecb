package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/EladReuveny/electronics-store-api/internal/domain"
	"github.com/EladReuveny/electronics-store-api/internal/service"
	"github.com/EladReuveny/electronics-store-api/pkg/httputil"
	"github.com/EladReuveny/electronics-store-api/pkg/pagination"
	"github.com/EladReuveny/electronics-store-api/pkg/validator"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	service *service.OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  logger,
	}
}

// UpdateStatusRequest is the JSON request body for updating order status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ListOrders handles GET /api/v1/order?page=&per_page=
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)

	orders, total, err := h.service.ListAll(r.Context(), params.Page, params.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: pagination.NewResult(orders, total, params)})
}

// ListUserOrders handles GET /api/v1/order/user/{userId}
func (h *OrderHandler) ListUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParseUUID(w, "userId", chi.URLParam(r, "userId"))
	if !ok {
		return
	}

	orders, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: orders})
}

// GetOrder handles GET /api/v1/order/{orderId}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := httputil.ParseUUID(w, "orderId", chi.URLParam(r, "orderId"))
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// UpdateOrderStatus handles PUT /api/v1/order/{orderId}
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := httputil.ParseUUID(w, "orderId", chi.URLParam(r, "orderId"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req UpdateStatusRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		h.writeBodyError(w, r, err)
		return
	}

	status := domain.OrderStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	order, err := h.service.UpdateStatus(r.Context(), orderID, status)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// CancelOrder handles DELETE /api/v1/order/{orderId}
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := httputil.ParseUUID(w, "orderId", chi.URLParam(r, "orderId"))
	if !ok {
		return
	}

	if err := h.service.Cancel(r.Context(), orderID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeBodyError reports undecodable bodies as 400 INVALID_INPUT and
// validation failures with their field messages.
func (h *OrderHandler) writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
	})
}
