package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/EladReuveny/electronics-store-api/internal/service"
	"github.com/EladReuveny/electronics-store-api/pkg/health"
	"github.com/EladReuveny/electronics-store-api/pkg/middleware"
)

const serviceName = "store-engine"

// Services bundles the application services the API exposes.
type Services struct {
	Carts        *service.CartService
	WishLists    *service.WishListService
	Orders       *service.OrderService
	Provisioning *service.ProvisioningService
}

// NewRouter creates a chi router with all engine routes registered.
func NewRouter(
	svc Services,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsOrigins []string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(corsOrigins))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	carts := NewCartHandler(svc.Carts, logger)
	wishLists := NewWishListHandler(svc.WishLists, logger)
	orders := NewOrderHandler(svc.Orders, logger)
	users := NewUserHandler(svc.Provisioning, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Route("/shopping-cart/user/{userId}", func(r chi.Router) {
			r.Get("/", carts.GetCart)
			r.Post("/add-product/{productId}", carts.AddProduct)
			r.Delete("/remove-product/{productId}", carts.RemoveProduct)
			r.Delete("/clear-cart", carts.ClearCart)
			r.Post("/checkout", carts.Checkout)
		})

		r.Route("/wish-lists/user/{userId}", func(r chi.Router) {
			r.Get("/", wishLists.GetWishList)
			r.Post("/add-product/{productId}", wishLists.AddProduct)
			r.Delete("/remove-product/{productId}", wishLists.RemoveProduct)
			r.Post("/move-to-cart/{productId}", wishLists.MoveToCart)
			r.Delete("/clear-wishlist", wishLists.ClearWishList)
		})

		r.Route("/order", func(r chi.Router) {
			r.Get("/", orders.ListOrders)
			r.Get("/user/{userId}", orders.ListUserOrders)
			r.Get("/{orderId}", orders.GetOrder)
			r.Put("/{orderId}", orders.UpdateOrderStatus)
			r.Delete("/{orderId}", orders.CancelOrder)
		})

		r.Post("/users/{userId}/provision", users.ProvisionUser)
	})

	return r
}
