package app

import (
	"log/slog"
	"time"

	handler "github.com/EladReuveny/electronics-store-api/internal/handler/http"
	"github.com/EladReuveny/electronics-store-api/internal/service"
)

// Engine holds the application services built over one Store.
type Engine struct {
	Ledger       *service.Ledger
	Orders       *service.OrderService
	Carts        *service.CartService
	WishLists    *service.WishListService
	Provisioning *service.ProvisioningService
	Catalog      *service.CatalogService
}

// NewEngine builds the service graph. All services share the store's unit
// of work and locker so their units of work serialize on the same keys.
func NewEngine(store *Store, publisher service.EventPublisher, window time.Duration, logger *slog.Logger) *Engine {
	uow, locker := store.UnitOfWork, store.Locker

	ledger := service.NewLedger(logger)
	orders := service.NewOrderService(uow, locker, ledger, publisher, logger, window)
	carts := service.NewCartService(uow, locker, ledger, orders, publisher, logger)
	return &Engine{
		Ledger:       ledger,
		Orders:       orders,
		Carts:        carts,
		WishLists:    service.NewWishListService(uow, locker, carts, publisher, logger),
		Provisioning: service.NewProvisioningService(uow, locker, logger),
		Catalog:      service.NewCatalogService(uow, locker, logger),
	}
}

// HTTPServices returns the services exposed by the REST API.
func (e *Engine) HTTPServices() handler.Services {
	return handler.Services{
		Carts:        e.Carts,
		WishLists:    e.WishLists,
		Orders:       e.Orders,
		Provisioning: e.Provisioning,
	}
}
