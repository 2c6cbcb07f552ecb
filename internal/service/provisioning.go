package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/EladReuveny/electronics-store-api/internal/domain"
	"github.com/EladReuveny/electronics-store-api/internal/lock"
	"github.com/EladReuveny/electronics-store-api/internal/repository"
	apperrors "github.com/EladReuveny/electronics-store-api/pkg/errors"
)

// ProvisioningService creates the per-user aggregates a registered user
// owns for life: one empty cart and one empty wish list.
type ProvisioningService struct {
	runner txRunner
	logger *slog.Logger
	now    func() time.Time
}

// NewProvisioningService creates a new provisioning service.
func NewProvisioningService(uow repository.UnitOfWork, locker lock.Locker, logger *slog.Logger) *ProvisioningService {
	return &ProvisioningService{
		runner: txRunner{uow: uow, locker: locker},
		logger: logger,
		now:    utcNow,
	}
}

// Provisioned reports what ProvisionUser found and created.
type Provisioned struct {
	UserID          string `json:"user_id"`
	CartID          string `json:"cart_id"`
	WishListID      string `json:"wish_list_id"`
	CartCreated     bool   `json:"cart_created"`
	WishListCreated bool   `json:"wish_list_created"`
}

// ProvisionUser creates the user's cart and wish list if they do not exist
// yet. Calling it again for the same user changes nothing.
func (s *ProvisioningService) ProvisionUser(ctx context.Context, userID string) (*Provisioned, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user_id is required")
	}

	var result Provisioned
	err := s.runner.run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		result = Provisioned{UserID: userID}
		if err := repos.Locks.LockKeys(ctx, lock.CartKey(userID), lock.WishListKey(userID)); err != nil {
			return err
		}
		now := s.now()

		cart, err := repos.Carts.GetByUserID(ctx, userID)
		switch {
		case err == nil:
			result.CartID = cart.ID
		case errors.Is(err, apperrors.ErrNotFound):
			cart = &domain.ShoppingCart{
				ID:          uuid.New().String(),
				UserID:      userID,
				Items:       []domain.LineItem{},
				TotalAmount: decimal.Zero,
				UpdatedAt:   now,
			}
			if err := repos.Carts.Create(ctx, cart); err != nil {
				return err
			}
			result.CartID = cart.ID
			result.CartCreated = true
		default:
			return err
		}

		wishList, err := repos.WishLists.GetByUserID(ctx, userID)
		switch {
		case err == nil:
			result.WishListID = wishList.ID
		case errors.Is(err, apperrors.ErrNotFound):
			wishList = &domain.WishList{
				ID:         uuid.New().String(),
				UserID:     userID,
				ProductIDs: []string{},
				UpdatedAt:  now,
			}
			if err := repos.WishLists.Create(ctx, wishList); err != nil {
				return err
			}
			result.WishListID = wishList.ID
			result.WishListCreated = true
		default:
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("provision user: %w", err)
	}

	if result.CartCreated || result.WishListCreated {
		s.logger.InfoContext(ctx, "user provisioned",
			slog.String("user_id", userID),
			slog.Bool("cart_created", result.CartCreated),
			slog.Bool("wish_list_created", result.WishListCreated),
		)
	}
	return &result, nil
}
