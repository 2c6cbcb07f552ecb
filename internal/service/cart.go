package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/EladReuveny/electronics-store-api/internal/domain"
	"github.com/EladReuveny/electronics-store-api/internal/lock"
	"github.com/EladReuveny/electronics-store-api/internal/repository"
	apperrors "github.com/EladReuveny/electronics-store-api/pkg/errors"
)

// CartService manages shopping carts. Every unit in a cart line is reserved
// against product stock through the Ledger.
type CartService struct {
	runner    txRunner
	uow       repository.UnitOfWork
	ledger    *Ledger
	orders    *OrderService
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewCartService creates a new cart service. Checkout hands carts to orders.
func NewCartService(
	uow repository.UnitOfWork,
	locker lock.Locker,
	ledger *Ledger,
	orders *OrderService,
	publisher EventPublisher,
	logger *slog.Logger,
) *CartService {
	return &CartService{
		runner:    txRunner{uow: uow, locker: locker},
		uow:       uow,
		ledger:    ledger,
		orders:    orders,
		publisher: publisher,
		logger:    logger,
		now:       utcNow,
	}
}

// GetCart returns the user's cart.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.ShoppingCart, error) {
	cart, err := s.uow.Repositories().Carts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

// AddProduct sets the quantity of a product in the user's cart. An existing
// line is overwritten, not incremented; only the difference is reserved or
// released.
func (s *CartService) AddProduct(ctx context.Context, userID, productID string, quantity int) (*domain.ShoppingCart, error) {
	if quantity <= 0 {
		return nil, apperrors.InvalidInput("quantity must be a positive integer")
	}

	var cart *domain.ShoppingCart
	err := s.runner.run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Locks.LockKeys(ctx, lock.CartKey(userID)); err != nil {
			return err
		}
		c, err := s.initializedCart(ctx, repos, userID)
		if err != nil {
			return err
		}
		if err := s.setQuantity(ctx, repos, c, productID, quantity); err != nil {
			return err
		}
		if err := s.save(ctx, repos, c); err != nil {
			return err
		}
		cart = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("add product to cart: %w", err)
	}

	s.publishUpdated(ctx, cart)
	s.logger.InfoContext(ctx, "product added to cart",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
		slog.String("total_amount", cart.TotalAmount.StringFixed(2)),
	)
	return cart, nil
}

// RemoveProduct drops a product's line and releases its units. Removing a
// product that has no line leaves the cart as it is.
func (s *CartService) RemoveProduct(ctx context.Context, userID, productID string) (*domain.ShoppingCart, error) {
	var cart *domain.ShoppingCart
	err := s.runner.run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Locks.LockKeys(ctx, lock.CartKey(userID)); err != nil {
			return err
		}
		c, err := s.nonEmptyCart(ctx, repos, userID)
		if err != nil {
			return err
		}
		if idx := c.FindItemIndex(productID); idx >= 0 {
			if _, err := s.ledger.Release(ctx, repos, productID, c.Items[idx].Quantity); err != nil {
				return err
			}
			c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
		}
		if err := s.save(ctx, repos, c); err != nil {
			return err
		}
		cart = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("remove product from cart: %w", err)
	}

	s.publishUpdated(ctx, cart)
	s.logger.InfoContext(ctx, "product removed from cart",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
	)
	return cart, nil
}

// Clear releases every line of the cart and empties it.
func (s *CartService) Clear(ctx context.Context, userID string) (*domain.ShoppingCart, error) {
	var cart *domain.ShoppingCart
	err := s.runner.run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Locks.LockKeys(ctx, lock.CartKey(userID)); err != nil {
			return err
		}
		c, err := s.nonEmptyCart(ctx, repos, userID)
		if err != nil {
			return err
		}
		if err := repos.Locks.LockKeys(ctx, productKeys(c.Items)...); err != nil {
			return err
		}
		for _, item := range c.Items {
			if _, err := s.ledger.Release(ctx, repos, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		c.Empty()
		c.UpdatedAt = s.now()
		if err := repos.Carts.Save(ctx, c); err != nil {
			return err
		}
		cart = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	if err := s.publisher.PublishCartCleared(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "cart cleared", slog.String("user_id", userID))
	return cart, nil
}

// Checkout turns the cart into a PENDING order and empties the cart. The
// reserved units move to the order; stock is unchanged.
func (s *CartService) Checkout(ctx context.Context, userID string) (*domain.Order, error) {
	var order *domain.Order
	err := s.runner.run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Locks.LockKeys(ctx, lock.CartKey(userID)); err != nil {
			return err
		}
		c, err := repos.Carts.GetByUserID(ctx, userID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		if c == nil || c.IsEmpty() {
			return apperrors.InvalidState("shopping cart is empty, add items before checkout")
		}

		o, err := s.orders.createFromCart(ctx, repos, c)
		if err != nil {
			return err
		}
		c.Empty()
		c.UpdatedAt = s.now()
		if err := repos.Carts.Save(ctx, c); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}

	if err := s.publisher.PublishOrderCreated(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.created event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "cart checked out",
		slog.String("user_id", userID),
		slog.String("order_id", order.ID),
		slog.String("total_amount", order.TotalAmount.StringFixed(2)),
	)
	return order, nil
}

// setQuantity makes the cart hold exactly quantity units of productID,
// reserving or releasing the difference. On error the cart is unchanged.
func (s *CartService) setQuantity(ctx context.Context, repos repository.Repositories, c *domain.ShoppingCart, productID string, quantity int) error {
	if err := repos.Locks.LockKeys(ctx, lock.ProductKey(productID)); err != nil {
		return err
	}
	product, err := repos.Products.GetByID(ctx, productID)
	if err != nil {
		return err
	}

	idx := c.FindItemIndex(productID)
	existing := 0
	if idx >= 0 {
		existing = c.Items[idx].Quantity
	}

	delta := quantity - existing
	switch {
	case delta > 0:
		if delta > product.StockQuantity {
			return apperrors.InsufficientStock(productID, quantity, product.StockQuantity)
		}
		product, err = s.ledger.Reserve(ctx, repos, productID, delta)
	case delta < 0:
		product, err = s.ledger.Release(ctx, repos, productID, -delta)
	}
	if err != nil {
		return err
	}

	if idx < 0 {
		c.Items = append(c.Items, domain.LineItem{
			ID:        uuid.New().String(),
			ProductID: productID,
			Quantity:  quantity,
			UnitPrice: product.Price,
		})
		return nil
	}
	c.Items[idx].Quantity = quantity
	c.Items[idx].UnitPrice = product.Price
	return nil
}

// save refreshes every line's unit price from the catalog, recomputes the
// total and writes the cart.
func (s *CartService) save(ctx context.Context, repos repository.Repositories, c *domain.ShoppingCart) error {
	for i := range c.Items {
		p, err := repos.Products.GetByID(ctx, c.Items[i].ProductID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			return err
		}
		c.Items[i].UnitPrice = p.Price
	}
	c.Recalculate()
	c.UpdatedAt = s.now()
	return repos.Carts.Save(ctx, c)
}

func (s *CartService) initializedCart(ctx context.Context, repos repository.Repositories, userID string) (*domain.ShoppingCart, error) {
	c, err := repos.Carts.GetByUserID(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.InvalidState("shopping cart must be initialized first")
	}
	return c, err
}

func (s *CartService) nonEmptyCart(ctx context.Context, repos repository.Repositories, userID string) (*domain.ShoppingCart, error) {
	c, err := repos.Carts.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if c == nil || c.IsEmpty() {
		return nil, apperrors.InvalidState(fmt.Sprintf("shopping cart for user %s is empty or not found", userID))
	}
	return c, nil
}

func (s *CartService) publishUpdated(ctx context.Context, cart *domain.ShoppingCart) {
	if err := s.publisher.PublishCartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("user_id", cart.UserID),
			slog.String("error", err.Error()),
		)
	}
}
