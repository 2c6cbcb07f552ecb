package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/EladReuveny/electronics-store-api/internal/domain"
	"github.com/EladReuveny/electronics-store-api/internal/lock"
	"github.com/EladReuveny/electronics-store-api/internal/repository"
	apperrors "github.com/EladReuveny/electronics-store-api/pkg/errors"
)

// WishListService manages wish lists. Entries reserve nothing until they
// are moved into the cart.
type WishListService struct {
	runner    txRunner
	uow       repository.UnitOfWork
	carts     *CartService
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewWishListService creates a new wish list service.
func NewWishListService(
	uow repository.UnitOfWork,
	locker lock.Locker,
	carts *CartService,
	publisher EventPublisher,
	logger *slog.Logger,
) *WishListService {
	return &WishListService{
		runner:    txRunner{uow: uow, locker: locker},
		uow:       uow,
		carts:     carts,
		publisher: publisher,
		logger:    logger,
		now:       utcNow,
	}
}

// GetWishList returns the user's wish list.
func (s *WishListService) GetWishList(ctx context.Context, userID string) (*domain.WishList, error) {
	w, err := s.uow.Repositories().WishLists.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get wish list: %w", err)
	}
	return w, nil
}

// AddProduct appends a product to the wish list.
func (s *WishListService) AddProduct(ctx context.Context, userID, productID string) (*domain.WishList, error) {
	w, err := s.mutate(ctx, userID, false, func(ctx context.Context, repos repository.Repositories, w *domain.WishList) error {
		if _, err := repos.Products.GetByID(ctx, productID); err != nil {
			return err
		}
		if !w.Add(productID) {
			return apperrors.AlreadyExists("wish list entry", "product_id", productID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("add product to wish list: %w", err)
	}

	s.logger.InfoContext(ctx, "product added to wish list",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
	)
	return w, nil
}

// RemoveProduct drops a listed product.
func (s *WishListService) RemoveProduct(ctx context.Context, userID, productID string) (*domain.WishList, error) {
	w, err := s.mutate(ctx, userID, true, func(ctx context.Context, repos repository.Repositories, w *domain.WishList) error {
		if _, err := repos.Products.GetByID(ctx, productID); err != nil {
			return err
		}
		if !w.Remove(productID) {
			return apperrors.InvalidInput(fmt.Sprintf("product %s is not in the wish list", productID))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("remove product from wish list: %w", err)
	}

	s.logger.InfoContext(ctx, "product removed from wish list",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
	)
	return w, nil
}

// MoveToCart sets quantity units of a product in the user's cart, exactly as
// CartService.AddProduct does, and drops the product from the wish list.
// If the reservation fails neither the cart nor the wish list changes.
func (s *WishListService) MoveToCart(ctx context.Context, userID, productID string, quantity int) (*domain.WishList, error) {
	if quantity <= 0 {
		return nil, apperrors.InvalidInput("quantity must be a positive integer")
	}

	var cart *domain.ShoppingCart
	w, err := s.mutate(ctx, userID, true, func(ctx context.Context, repos repository.Repositories, w *domain.WishList) error {
		if _, err := repos.Products.GetByID(ctx, productID); err != nil {
			return err
		}
		c, err := s.carts.initializedCart(ctx, repos, userID)
		if err != nil {
			return err
		}
		if err := s.carts.setQuantity(ctx, repos, c, productID, quantity); err != nil {
			return err
		}
		if err := s.carts.save(ctx, repos, c); err != nil {
			return err
		}
		w.Remove(productID)
		cart = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("move product to cart: %w", err)
	}

	s.carts.publishUpdated(ctx, cart)
	s.logger.InfoContext(ctx, "wish list product moved to cart",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)
	return w, nil
}

// Clear removes every product from the wish list.
func (s *WishListService) Clear(ctx context.Context, userID string) (*domain.WishList, error) {
	w, err := s.mutate(ctx, userID, true, func(_ context.Context, _ repository.Repositories, w *domain.WishList) error {
		w.ProductIDs = []string{}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidState(fmt.Sprintf("wish list for user %s is empty or not found", userID))
		}
		return nil, fmt.Errorf("clear wish list: %w", err)
	}

	s.logger.InfoContext(ctx, "wish list cleared", slog.String("user_id", userID))
	return w, nil
}

// mutate loads the wish list, applies fn and saves the result in one unit
// of work. The user's cart key is taken together with the wish list key
// since MoveToCart writes both. With requireEntries an empty list is
// treated as missing.
func (s *WishListService) mutate(
	ctx context.Context,
	userID string,
	requireEntries bool,
	fn func(ctx context.Context, repos repository.Repositories, w *domain.WishList) error,
) (*domain.WishList, error) {
	var result *domain.WishList
	err := s.runner.run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Locks.LockKeys(ctx, lock.WishListKey(userID), lock.CartKey(userID)); err != nil {
			return err
		}
		w, err := repos.WishLists.GetByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if requireEntries && w.IsEmpty() {
			return apperrors.NotFound("wish list for user", userID)
		}
		if err := fn(ctx, repos, w); err != nil {
			return err
		}
		w.UpdatedAt = s.now()
		if err := repos.WishLists.Save(ctx, w); err != nil {
			return err
		}
		result = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.publisher.PublishWishListUpdated(ctx, result); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish wishlist.updated event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	return result, nil
}
