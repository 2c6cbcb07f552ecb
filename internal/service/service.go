// Package service implements the inventory-aware cart, wish list and order
// engine. Every mutating operation runs in one unit of work: either all of
// its stock, cart, wish list and order writes commit, or none do.
package service

import (
	"context"
	"time"

	"github.com/EladReuveny/electronics-store-api/internal/domain"
	"github.com/EladReuveny/electronics-store-api/internal/lock"
	"github.com/EladReuveny/electronics-store-api/internal/repository"
)

// EventPublisher emits domain events after a unit of work commits.
// Publishing failures are logged by the caller and never undo the change.
type EventPublisher interface {
	PublishCartUpdated(ctx context.Context, cart *domain.ShoppingCart) error
	PublishCartCleared(ctx context.Context, cart *domain.ShoppingCart) error
	PublishWishListUpdated(ctx context.Context, wishList *domain.WishList) error
	PublishOrderCreated(ctx context.Context, order *domain.Order) error
	PublishOrderStatusChanged(ctx context.Context, order *domain.Order, oldStatus domain.OrderStatus) error
	PublishOrderCanceled(ctx context.Context, order *domain.Order) error
}

// txRunner runs a unit of work under a lock session. The session's keys are
// released only after the unit of work has committed or rolled back.
type txRunner struct {
	uow    repository.UnitOfWork
	locker lock.Locker
}

func (r txRunner) run(ctx context.Context, fn repository.TxFunc) error {
	var sess lock.Session
	defer func() {
		if sess != nil {
			sess.Release()
		}
	}()

	return r.uow.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		sess = r.locker.Session(repos.Locks)
		repos.Locks = sess
		return fn(ctx, repos)
	})
}

func utcNow() time.Time {
	return time.Now().UTC()
}
