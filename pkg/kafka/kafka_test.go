package kafka

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Event ---

func TestTopic(t *testing.T) {
	assert.Equal(t, "ecommerce.cart.updated", Topic("cart", "updated"))
}

func TestNewEvent_Fields(t *testing.T) {
	type payload struct {
		CartID string `json:"cart_id"`
	}
	event, err := NewEvent("ecommerce.cart.updated", "cart-1", "cart", "store-api", payload{CartID: "cart-1"})
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, 1, event.Version)
	assert.Equal(t, "cart", event.AggregateType)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)

	raw, err := event.Marshal()
	require.NoError(t, err)
	decoded, err := UnmarshalEvent(raw)
	require.NoError(t, err)

	var got payload
	require.NoError(t, decoded.UnmarshalData(&got))
	assert.Equal(t, "cart-1", got.CartID)
	assert.Equal(t, event.EventID, decoded.EventID)
}

func TestNewEvent_UnserializablePayload(t *testing.T) {
	_, err := NewEvent("x", "1", "t", "s", make(chan int))
	assert.Error(t, err)
}

// --- Producer ---

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducer_Publish_SetsKeyAndHeaders(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	w := &fakeWriter{}
	p := NewProducerWithWriter(w, nil, testLogger())

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	event, err := NewEvent("ecommerce.order.created", "order-1", "order", "store-api", map[string]int{"lines": 2})
	require.NoError(t, err)
	event.WithCorrelationID("corr-1")

	require.NoError(t, p.Publish(ctx, "ecommerce.order.created", event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "ecommerce.order.created", msg.Topic)
	assert.Equal(t, []byte("order-1"), msg.Key)

	headers := msg.Headers
	carrier := NewHeaderCarrier(&headers)
	assert.Equal(t, "ecommerce.order.created", carrier.Get("event_type"))
	assert.Equal(t, "corr-1", carrier.Get("correlation_id"))
	assert.Contains(t, carrier.Get("traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")
}

func TestProducer_Publish_WriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewProducerWithWriter(w, nil, testLogger())

	event, err := NewEvent("ecommerce.cart.cleared", "cart-1", "cart", "store-api", struct{}{})
	require.NoError(t, err)

	err = p.Publish(context.Background(), "ecommerce.cart.cleared", event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	assert.Error(t, PingBrokers(context.Background(), nil))
}

func TestHeaderCarrier_SetOverwrites(t *testing.T) {
	headers := []kafka.Header{{Key: "a", Value: []byte("1")}}
	c := NewHeaderCarrier(&headers)
	c.Set("a", "2")
	c.Set("b", "3")
	assert.Equal(t, "2", c.Get("a"))
	assert.Equal(t, "3", c.Get("b"))
	assert.ElementsMatch(t, []string{"a", "b"}, c.Keys())
	assert.Empty(t, c.Get("missing"))
}

// --- Consumer ---

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *fakeReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func eventMessage(t *testing.T, topic string) kafka.Message {
	t.Helper()
	event, err := NewEvent(topic, "agg-1", "user", "test", map[string]string{"k": "v"})
	require.NoError(t, err)
	raw, err := event.Marshal()
	require.NoError(t, err)
	return kafka.Message{Topic: topic, Value: raw}
}

func TestConsumer_RetriesThenCommits(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		eventMessage(t, "ecommerce.user.registered"),
		{Topic: "ecommerce.user.registered", Value: []byte("not json")},
	}}

	var mu sync.Mutex
	calls := 0
	handler := func(_ context.Context, _ *Event) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	}

	c := NewConsumerWithReader(reader, ConsumerConfig{
		GroupID:      "store-api",
		Topics:       []string{"ecommerce.user.registered"},
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	}, handler, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return reader.commits() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	assert.Equal(t, 2, calls)
	mu.Unlock()
	assert.True(t, reader.closed)
}

func TestConsumer_PoisonMessageSkipped(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{eventMessage(t, "ecommerce.product.upserted")}}

	var mu sync.Mutex
	calls := 0
	handler := func(_ context.Context, _ *Event) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return errors.New("permanent")
	}

	c := NewConsumerWithReader(reader, ConsumerConfig{MaxRetries: 2, RetryBackoff: time.Millisecond}, handler, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return reader.commits() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	assert.Equal(t, 2, calls)
	mu.Unlock()
}
