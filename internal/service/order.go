package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/EladReuveny/electronics-store-api/internal/domain"
	"github.com/EladReuveny/electronics-store-api/internal/lock"
	"github.com/EladReuveny/electronics-store-api/internal/repository"
	apperrors "github.com/EladReuveny/electronics-store-api/pkg/errors"
)

// OrderService implements the order lifecycle: creation at checkout,
// status overwrites and cancellation inside a time window.
type OrderService struct {
	runner    txRunner
	uow       repository.UnitOfWork
	ledger    *Ledger
	publisher EventPublisher
	logger    *slog.Logger
	window    time.Duration
	now       func() time.Time
}

// NewOrderService creates a new order service. A non-positive window falls
// back to domain.DefaultCancellationWindow.
func NewOrderService(
	uow repository.UnitOfWork,
	locker lock.Locker,
	ledger *Ledger,
	publisher EventPublisher,
	logger *slog.Logger,
	window time.Duration,
) *OrderService {
	if window <= 0 {
		window = domain.DefaultCancellationWindow
	}
	return &OrderService{
		runner:    txRunner{uow: uow, locker: locker},
		uow:       uow,
		ledger:    ledger,
		publisher: publisher,
		logger:    logger,
		window:    window,
		now:       utcNow,
	}
}

// GetOrder retrieves an order by its ID.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.uow.Repositories().Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return order, nil
}

// ListByUser returns every order of a user, newest first.
func (s *OrderService) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.uow.Repositories().Orders.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders by user: %w", err)
	}
	return orders, nil
}

// ListAll returns one page of all orders, newest first, and the total count.
func (s *OrderService) ListAll(ctx context.Context, page, perPage int) ([]domain.Order, int, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	orders, total, err := s.uow.Repositories().Orders.List(ctx, (page-1)*perPage, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// UpdateStatus overwrites an order's status. Any status may follow any other.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (*domain.Order, error) {
	if !status.IsValid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid order status %q", status))
	}

	var (
		order     *domain.Order
		oldStatus domain.OrderStatus
	)
	err := s.runner.run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Locks.LockKeys(ctx, lock.OrderKey(orderID)); err != nil {
			return err
		}
		o, err := repos.Orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		oldStatus = o.Status
		o.Status = status
		o.UpdatedAt = s.now()
		if err := repos.Orders.UpdateStatus(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if err := s.publisher.PublishOrderStatusChanged(ctx, order, oldStatus); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.status_changed event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", order.ID),
		slog.String("old_status", string(oldStatus)),
		slog.String("new_status", string(order.Status)),
	)
	return order, nil
}

// Cancel returns every unit of an order to stock and deletes the order,
// provided it was created no longer than the cancellation window ago.
func (s *OrderService) Cancel(ctx context.Context, orderID string) error {
	var canceled *domain.Order
	err := s.runner.run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Locks.LockKeys(ctx, lock.OrderKey(orderID)); err != nil {
			return err
		}
		o, err := repos.Orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.CancelableAt(s.now(), s.window) {
			return apperrors.InvalidState(fmt.Sprintf(
				"cancellation window expired: order can be canceled only within %d days of its creation",
				int(s.window/(24*time.Hour)),
			))
		}

		if err := repos.Locks.LockKeys(ctx, productKeys(o.Items)...); err != nil {
			return err
		}
		for _, item := range o.Items {
			if _, err := s.ledger.Release(ctx, repos, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		if err := repos.Orders.Delete(ctx, o.ID); err != nil {
			return err
		}
		canceled = o
		return nil
	})
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}

	if err := s.publisher.PublishOrderCanceled(ctx, canceled); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.canceled event",
			slog.String("order_id", canceled.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order canceled",
		slog.String("order_id", canceled.ID),
		slog.String("user_id", canceled.UserID),
		slog.Int("lines_released", len(canceled.Items)),
	)
	return nil
}

// createFromCart writes a PENDING order mirroring the cart's lines. Stock is
// not touched: the units reserved by the cart now belong to the order.
func (s *OrderService) createFromCart(ctx context.Context, repos repository.Repositories, cart *domain.ShoppingCart) (*domain.Order, error) {
	now := s.now()
	items := make([]domain.LineItem, len(cart.Items))
	for i, line := range cart.Items {
		items[i] = domain.LineItem{
			ID:        uuid.New().String(),
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		}
	}

	order := &domain.Order{
		ID:          uuid.New().String(),
		UserID:      cart.UserID,
		Status:      domain.OrderStatusPending,
		Items:       items,
		TotalAmount: cart.TotalAmount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repos.Orders.Create(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func productKeys(items []domain.LineItem) []string {
	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = lock.ProductKey(item.ProductID)
	}
	return keys
}
