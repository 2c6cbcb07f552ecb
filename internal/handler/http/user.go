package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/EladReuveny/electronics-store-api/internal/service"
	"github.com/EladReuveny/electronics-store-api/pkg/httputil"
)

// UserHandler exposes user provisioning.
type UserHandler struct {
	service *service.ProvisioningService
	logger  *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(svc *service.ProvisioningService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		service: svc,
		logger:  logger,
	}
}

// ProvisionUser handles POST /api/v1/users/{userId}/provision. It responds
// 201 when anything was created and 200 when the user was already set up.
func (h *UserHandler) ProvisionUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParseUUID(w, "userId", chi.URLParam(r, "userId"))
	if !ok {
		return
	}

	result, err := h.service.ProvisionUser(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	status := http.StatusOK
	if result.CartCreated || result.WishListCreated {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, httputil.Response{Data: result})
}
