// Package event publishes engine domain events to Kafka and consumes the
// catalog and user events the engine depends on.
package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/EladReuveny/electronics-store-api/internal/domain"
	"github.com/EladReuveny/electronics-store-api/internal/service"
	pkgkafka "github.com/EladReuveny/electronics-store-api/pkg/kafka"
)

// Kafka topics published by the engine.
var (
	TopicCartUpdated        = pkgkafka.Topic("cart", "updated")
	TopicCartCleared        = pkgkafka.Topic("cart", "cleared")
	TopicWishListUpdated    = pkgkafka.Topic("wishlist", "updated")
	TopicOrderCreated       = pkgkafka.Topic("order", "created")
	TopicOrderStatusChanged = pkgkafka.Topic("order", "status_changed")
	TopicOrderCanceled      = pkgkafka.Topic("order", "canceled")
)

// Aggregate types.
const (
	AggregateTypeCart     = "shopping_cart"
	AggregateTypeWishList = "wish_list"
	AggregateTypeOrder    = "order"
)

// SourceStoreEngine identifies events originating from this service.
const SourceStoreEngine = "electronics-store-api"

// LineItemData is the event payload for a cart or order line.
type LineItemData struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CartData is the payload for cart.updated and cart.cleared events.
type CartData struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Items       []LineItemData  `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// WishListData is the payload for a wishlist.updated event.
type WishListData struct {
	ID         string   `json:"id"`
	UserID     string   `json:"user_id"`
	ProductIDs []string `json:"product_ids"`
}

// OrderData is the payload for an order.created event (full order snapshot).
type OrderData struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Status      string          `json:"status"`
	Items       []LineItemData  `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

// OrderStatusChangedData is the payload for an order.status_changed event.
type OrderStatusChangedData struct {
	OrderID   string `json:"order_id"`
	UserID    string `json:"user_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// OrderCanceledData is the payload for an order.canceled event. Items lists
// the lines whose stock was returned.
type OrderCanceledData struct {
	OrderID string         `json:"order_id"`
	UserID  string         `json:"user_id"`
	Items   []LineItemData `json:"items"`
}

var (
	_ service.EventPublisher = (*Producer)(nil)
	_ service.EventPublisher = NoopPublisher{}
)

// Publisher is the subset of *pkgkafka.Producer the engine publishes through.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes engine domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishCartUpdated publishes a cart.updated event with the cart snapshot.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.ShoppingCart) error {
	return p.publish(ctx, TopicCartUpdated, cart.ID, AggregateTypeCart, cartData(cart))
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, cart *domain.ShoppingCart) error {
	return p.publish(ctx, TopicCartCleared, cart.ID, AggregateTypeCart, cartData(cart))
}

// PublishWishListUpdated publishes a wishlist.updated event.
func (p *Producer) PublishWishListUpdated(ctx context.Context, wishList *domain.WishList) error {
	data := WishListData{
		ID:         wishList.ID,
		UserID:     wishList.UserID,
		ProductIDs: append([]string{}, wishList.ProductIDs...),
	}
	return p.publish(ctx, TopicWishListUpdated, wishList.ID, AggregateTypeWishList, data)
}

// PublishOrderCreated publishes an order.created event with the full order snapshot.
func (p *Producer) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	data := OrderData{
		ID:          order.ID,
		UserID:      order.UserID,
		Status:      string(order.Status),
		Items:       lineItemData(order.Items),
		TotalAmount: order.TotalAmount,
		CreatedAt:   order.CreatedAt,
	}
	return p.publish(ctx, TopicOrderCreated, order.ID, AggregateTypeOrder, data)
}

// PublishOrderStatusChanged publishes an order.status_changed event.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, order *domain.Order, oldStatus domain.OrderStatus) error {
	data := OrderStatusChangedData{
		OrderID:   order.ID,
		UserID:    order.UserID,
		OldStatus: string(oldStatus),
		NewStatus: string(order.Status),
	}
	return p.publish(ctx, TopicOrderStatusChanged, order.ID, AggregateTypeOrder, data)
}

// PublishOrderCanceled publishes an order.canceled event.
func (p *Producer) PublishOrderCanceled(ctx context.Context, order *domain.Order) error {
	data := OrderCanceledData{
		OrderID: order.ID,
		UserID:  order.UserID,
		Items:   lineItemData(order.Items),
	}
	return p.publish(ctx, TopicOrderCanceled, order.ID, AggregateTypeOrder, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceStoreEngine, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published domain event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

func cartData(cart *domain.ShoppingCart) CartData {
	return CartData{
		ID:          cart.ID,
		UserID:      cart.UserID,
		Items:       lineItemData(cart.Items),
		TotalAmount: cart.TotalAmount,
	}
}

func lineItemData(items []domain.LineItem) []LineItemData {
	out := make([]LineItemData, len(items))
	for i, item := range items {
		out[i] = LineItemData{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return out
}

// NoopPublisher discards every event. It is used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishCartUpdated(context.Context, *domain.ShoppingCart) error { return nil }

func (NoopPublisher) PublishCartCleared(context.Context, *domain.ShoppingCart) error { return nil }

func (NoopPublisher) PublishWishListUpdated(context.Context, *domain.WishList) error { return nil }

func (NoopPublisher) PublishOrderCreated(context.Context, *domain.Order) error { return nil }

func (NoopPublisher) PublishOrderStatusChanged(context.Context, *domain.Order, domain.OrderStatus) error {
	return nil
}

func (NoopPublisher) PublishOrderCanceled(context.Context, *domain.Order) error { return nil }
