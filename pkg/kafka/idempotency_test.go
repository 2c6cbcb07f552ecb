package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisIdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisIdempotencyStore(client, "test:processed:", ttl), mr
}

// ---------------------------------------------------------------------------
// RedisIdempotencyStore
// ---------------------------------------------------------------------------

func TestRedisIdempotencyStore_AddAndContains(t *testing.T) {
	store, mr := newRedisStore(t, time.Hour)
	ctx := context.Background()

	seen, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.Add(ctx, "evt-1"))

	seen, err = store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.True(t, mr.Exists("test:processed:evt-1"))
}

func TestRedisIdempotencyStore_Expires(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "evt-ttl"))
	mr.FastForward(2 * time.Minute)

	seen, err := store.Contains(ctx, "evt-ttl")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisIdempotencyStore_ServerDown(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	mr.Close()

	_, err := store.Contains(context.Background(), "evt-1")
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// MemoryIdempotencyStore
// ---------------------------------------------------------------------------

func TestMemoryIdempotencyStore_Expiry(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "evt-1"))
	seen, _ := store.Contains(ctx, "evt-1")
	assert.True(t, seen)

	now = now.Add(2 * time.Minute)
	seen, _ = store.Contains(ctx, "evt-1")
	assert.False(t, seen)
}

// ---------------------------------------------------------------------------
// IdempotentHandler
// ---------------------------------------------------------------------------

type failingStore struct{}

func (failingStore) Contains(context.Context, string) (bool, error) {
	return false, errors.New("store down")
}
func (failingStore) Add(context.Context, string) error { return errors.New("store down") }

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	store, _ := newRedisStore(t, time.Hour)
	calls := 0
	h := IdempotentHandler(store, func(context.Context, *Event) error {
		calls++
		return nil
	}, testLogger())

	event := &Event{EventID: "evt-dup", EventType: "ecommerce.user.registered"}
	require.NoError(t, h(context.Background(), event))
	require.NoError(t, h(context.Background(), event))
	assert.Equal(t, 1, calls)
}

func TestIdempotentHandler_FailureNotRecorded(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Hour)
	calls := 0
	h := IdempotentHandler(store, func(context.Context, *Event) error {
		calls++
		if calls == 1 {
			return errors.New("boom")
		}
		return nil
	}, testLogger())

	event := &Event{EventID: "evt-retry"}
	assert.Error(t, h(context.Background(), event))
	assert.NoError(t, h(context.Background(), event))
	assert.Equal(t, 2, calls)
}

func TestIdempotentHandler_StoreErrorProcessesAnyway(t *testing.T) {
	calls := 0
	h := IdempotentHandler(failingStore{}, func(context.Context, *Event) error {
		calls++
		return nil
	}, testLogger())

	assert.NoError(t, h(context.Background(), &Event{EventID: "evt-1"}))
	assert.Equal(t, 1, calls)
}

func TestIdempotentHandler_NoEventID(t *testing.T) {
	calls := 0
	h := IdempotentHandler(failingStore{}, func(context.Context, *Event) error {
		calls++
		return nil
	}, testLogger())

	assert.NoError(t, h(context.Background(), &Event{}))
	assert.NoError(t, h(context.Background(), &Event{}))
	assert.Equal(t, 2, calls)
}
