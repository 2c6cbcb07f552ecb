// Package lock serializes units of work that touch the same aggregates.
//
// A Locker hands out one Session per unit of work. Keys are named after the
// aggregate they guard (see CartKey, ProductKey, ...). Within one LockKeys
// call keys are taken in sorted order; callers take aggregate keys before
// product keys so that two sessions never wait on each other in a cycle.
package lock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Strategy selects how sessions lock.
type Strategy string

const (
	// StrategyNone takes no locks. Concurrent reservations of the same
	// product can lose updates.
	StrategyNone Strategy = "none"
	// StrategyLocal uses in-process keyed mutexes held until the unit of
	// work ends.
	StrategyLocal Strategy = "local"
	// StrategyAdvisory delegates to the transaction's own locker
	// (pg_advisory_xact_lock for the postgres store).
	StrategyAdvisory Strategy = "advisory"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case StrategyNone, StrategyLocal, StrategyAdvisory:
		return st, nil
	default:
		return "", fmt.Errorf("unknown lock strategy %q", s)
	}
}

// TxLocker is the lock primitive exposed by a unit of work.
type TxLocker interface {
	LockKeys(ctx context.Context, keys ...string) error
}

// Session tracks the keys held by one unit of work.
type Session interface {
	TxLocker
	// Release frees every held key. It must be called after the unit of
	// work has committed or rolled back.
	Release()
}

// Locker creates sessions.
type Locker interface {
	Session(tx TxLocker) Session
}

// New returns the Locker for strategy.
func New(strategy Strategy) Locker {
	switch strategy {
	case StrategyLocal:
		return NewLocal()
	case StrategyAdvisory:
		return advisoryLocker{}
	default:
		return noopLocker{}
	}
}

// CartKey names the lock guarding a user's cart.
func CartKey(userID string) string { return "cart:" + userID }

// WishListKey names the lock guarding a user's wish list.
func WishListKey(userID string) string { return "wishlist:" + userID }

// ProductKey names the lock guarding a product's stock.
func ProductKey(productID string) string { return "product:" + productID }

// OrderKey names the lock guarding an order.
func OrderKey(orderID string) string { return "order:" + orderID }

var lockWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "engine_lock_wait_seconds",
	Help:    "Time spent waiting for aggregate locks.",
	Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
}, []string{"strategy"})

// ---------------------------------------------------------------------------
// none
// ---------------------------------------------------------------------------

type noopLocker struct{}

func (noopLocker) Session(TxLocker) Session { return noopSession{} }

type noopSession struct{}

func (noopSession) LockKeys(context.Context, ...string) error { return nil }
func (noopSession) Release() {}

// ---------------------------------------------------------------------------
// advisory
// ---------------------------------------------------------------------------

type advisoryLocker struct{}

func (advisoryLocker) Session(tx TxLocker) Session {
	return &advisorySession{tx: tx, held: make(map[string]struct{})}
}

// advisorySession forwards new keys to the transaction. The transaction
// releases them at commit or rollback.
type advisorySession struct {
	tx   TxLocker
	held map[string]struct{}
}

func (s *advisorySession) LockKeys(ctx context.Context, keys ...string) error {
	pending := newKeys(s.held, keys)
	if len(pending) == 0 {
		return nil
	}
	start := time.Now()
	if err := s.tx.LockKeys(ctx, pending...); err != nil {
		return err
	}
	lockWait.WithLabelValues(string(StrategyAdvisory)).Observe(time.Since(start).Seconds())
	for _, k := range pending {
		s.held[k] = struct{}{}
	}
	return nil
}

func (s *advisorySession) Release() {}

// ---------------------------------------------------------------------------
// local
// ---------------------------------------------------------------------------

// Local is an in-process Locker backed by one channel semaphore per key.
// Entries are dropped once nobody holds or waits for them.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates an empty Local locker.
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

// Session ignores tx; local locks live outside the transaction.
func (l *Local) Session(TxLocker) Session {
	return &localSession{locker: l, held: make(map[string]struct{})}
}

func (l *Local) acquire(ctx context.Context, key string) error {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.unref(key, s)
		return ctx.Err()
	}
}

func (l *Local) release(key string) {
	l.mu.Lock()
	s := l.slots[key]
	l.mu.Unlock()
	<-s.ch
	l.unref(key, s)
}

func (l *Local) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// size returns the number of live slots.
func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

type localSession struct {
	locker *Local
	held   map[string]struct{}
	order  []string
}

func (s *localSession) LockKeys(ctx context.Context, keys ...string) error {
	pending := newKeys(s.held, keys)
	start := time.Now()
	for _, k := range pending {
		if err := s.locker.acquire(ctx, k); err != nil {
			return err
		}
		s.held[k] = struct{}{}
		s.order = append(s.order, k)
	}
	if len(pending) > 0 {
		lockWait.WithLabelValues(string(StrategyLocal)).Observe(time.Since(start).Seconds())
	}
	return nil
}

func (s *localSession) Release() {
	for i := len(s.order) - 1; i >= 0; i-- {
		s.locker.release(s.order[i])
	}
	s.order = nil
	clear(s.held)
}

// newKeys returns the sorted, de-duplicated keys not yet in held.
func newKeys(held map[string]struct{}, keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := held[k]; ok {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
