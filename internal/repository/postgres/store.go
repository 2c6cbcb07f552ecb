package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/EladReuveny/electronics-store-api/internal/repository"
	"github.com/EladReuveny/electronics-store-api/pkg/database"
)

// Store is a PostgreSQL-backed repository.UnitOfWork.
type Store struct {
	db database.TxBeginner
}

// NewStore creates a Store over a pool (or a pgxmock pool in tests).
func NewStore(db database.TxBeginner) *Store {
	return &Store{db: db}
}

// Repositories returns repositories that run each statement on the pool.
func (s *Store) Repositories() repository.Repositories {
	return newRepositories(s.db)
}

// WithinTx runs fn in a READ COMMITTED transaction.
func (s *Store) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, newRepositories(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func newRepositories(db database.DBTX) repository.Repositories {
	return repository.Repositories{
		Products:  NewProductRepository(db),
		Carts:     NewCartRepository(db),
		WishLists: NewWishListRepository(db),
		Orders:    NewOrderRepository(db),
		Locks:     NewAdvisoryLocker(db),
	}
}

// AdvisoryLocker takes transaction-scoped advisory locks. Outside a
// transaction the locks are released as soon as the statement ends.
type AdvisoryLocker struct {
	db database.DBTX
}

// NewAdvisoryLocker creates an AdvisoryLocker.
func NewAdvisoryLocker(db database.DBTX) *AdvisoryLocker {
	return &AdvisoryLocker{db: db}
}

const queryAdvisoryLock = `SELECT pg_advisory_xact_lock(hashtext($1))`

// LockKeys blocks until every key is held, acquiring them in sorted order.
func (l *AdvisoryLocker) LockKeys(ctx context.Context, keys ...string) (err error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	ctx, end := database.TraceQuery(ctx, "AdvisoryLock", queryAdvisoryLock)
	defer func() { end(err) }()

	for _, key := range sorted {
		if _, err = l.db.Exec(ctx, queryAdvisoryLock, key); err != nil {
			return fmt.Errorf("advisory lock %s: %w", key, err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
