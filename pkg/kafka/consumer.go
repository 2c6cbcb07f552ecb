package kafka

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// Handler processes one decoded event.
type Handler func(ctx context.Context, event *Event) error

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topics  []string

	// MaxRetries is how many times a handler runs before the message is
	// committed and skipped. Defaults to 3.
	MaxRetries int
	// RetryBackoff is multiplied by the attempt number between retries.
	// Defaults to 100ms.
	RetryBackoff time.Duration
}

// Consumer reads messages for a consumer group and feeds them to a Handler
// with bounded retries.
type Consumer struct {
	reader    MessageReader
	handler   Handler
	logger    *slog.Logger
	group     string
	topics    string
	retries   int
	backoff   time.Duration
	closeOnce sync.Once
}

// NewConsumer creates a group consumer over cfg.Topics.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return NewConsumerWithReader(r, cfg, handler, logger)
}

// NewConsumerWithReader creates a consumer over an existing reader.
func NewConsumerWithReader(r MessageReader, cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	return &Consumer{
		reader:  r,
		handler: handler,
		logger:  logger,
		group:   cfg.GroupID,
		topics:  strings.Join(cfg.Topics, ","),
		retries: cfg.MaxRetries,
		backoff: cfg.RetryBackoff,
	}
}

// Start consumes until ctx is canceled. Undecodable messages and messages
// whose handler keeps failing are committed so they do not block the partition.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started",
		slog.String("topics", c.topics),
		slog.String("group", c.group),
	)
	defer c.Close() //nolint:errcheck

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("consumer stopping", slog.String("topics", c.topics))
				return nil
			}
			c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
			continue
		}

		c.process(ctx, msg)
		if ctx.Err() != nil {
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				slog.String("topic", msg.Topic),
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	start := time.Now()
	defer func() {
		consumerDuration.WithLabelValues(msg.Topic, c.group).Observe(time.Since(start).Seconds())
	}()

	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.Error("dropping undecodable message",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		consumerFailed.WithLabelValues(msg.Topic, c.group).Inc()
		return
	}

	headers := msg.Headers
	ctx = otel.GetTextMapPropagator().Extract(ctx, NewHeaderCarrier(&headers))

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if lastErr = c.handler(ctx, event); lastErr == nil {
			consumerProcessed.WithLabelValues(msg.Topic, c.group).Inc()
			return
		}
		c.logger.Warn("handler failed",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()),
		)
		if attempt < c.retries {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}
	}

	consumerFailed.WithLabelValues(msg.Topic, c.group).Inc()
	c.logger.Error("handler failed after all retries, skipping message",
		slog.String("event_type", event.EventType),
		slog.String("aggregate_id", event.AggregateID),
		slog.String("topic", msg.Topic),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
		slog.String("error", lastErr.Error()),
	)
}

// Close closes the consumer. It is safe to call multiple times.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	return err
}
