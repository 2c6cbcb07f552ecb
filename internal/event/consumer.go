package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/EladReuveny/electronics-store-api/internal/domain"
	"github.com/EladReuveny/electronics-store-api/internal/service"
	apperrors "github.com/EladReuveny/electronics-store-api/pkg/errors"
	pkgkafka "github.com/EladReuveny/electronics-store-api/pkg/kafka"
	"github.com/EladReuveny/electronics-store-api/pkg/validator"
)

// Kafka topics consumed by the engine.
var (
	TopicUserRegistered  = pkgkafka.Topic("user", "registered")
	TopicProductUpserted = pkgkafka.Topic("product", "upserted")
)

// ConsumedTopics lists every topic Handle understands.
func ConsumedTopics() []string {
	return []string{TopicUserRegistered, TopicProductUpserted}
}

// UserProvisioner creates a registered user's cart and wish list.
type UserProvisioner interface {
	ProvisionUser(ctx context.Context, userID string) (*service.Provisioned, error)
}

// ProductUpserter applies catalog product changes.
type ProductUpserter interface {
	UpsertProduct(ctx context.Context, input service.UpsertProductInput) (*domain.Product, bool, error)
}

// UserRegisteredData is the expected payload of a user.registered event.
type UserRegisteredData struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Email  string `json:"email,omitempty"`
}

// ProductUpsertedData is the expected payload of a product.upserted event.
type ProductUpsertedData struct {
	ID            string          `json:"id" validate:"required,uuid"`
	Name          string          `json:"name" validate:"required,max=255"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
	Category      string          `json:"category" validate:"required"`
	ImageURL      string          `json:"image_url"`
}

// Consumer processes incoming Kafka events for the engine.
type Consumer struct {
	logger      *slog.Logger
	provisioner UserProvisioner
	catalog     ProductUpserter
}

// NewConsumer creates a new event consumer.
func NewConsumer(provisioner UserProvisioner, catalog ProductUpserter, logger *slog.Logger) *Consumer {
	return &Consumer{
		provisioner: provisioner,
		catalog:     catalog,
		logger:      logger,
	}
}

// Handle dispatches event by type. Unknown types are ignored. Payloads that
// can never succeed are logged and dropped instead of retried.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	var err error
	switch event.EventType {
	case TopicUserRegistered:
		err = c.HandleUserRegistered(ctx, event)
	case TopicProductUpserted:
		err = c.HandleProductUpserted(ctx, event)
	default:
		c.logger.DebugContext(ctx, "ignoring unhandled event type",
			slog.String("event_type", event.EventType),
		)
		return nil
	}

	if errors.Is(err, apperrors.ErrInvalidInput) {
		c.logger.WarnContext(ctx, "dropping invalid event",
			slog.String("event_id", event.EventID),
			slog.String("event_type", event.EventType),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return err
}

// HandleUserRegistered provisions the new user's cart and wish list.
func (c *Consumer) HandleUserRegistered(ctx context.Context, event *pkgkafka.Event) error {
	var data UserRegisteredData
	if err := decode(event, &data); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "processing user.registered event",
		slog.String("user_id", data.UserID),
	)

	if _, err := c.provisioner.ProvisionUser(ctx, data.UserID); err != nil {
		return fmt.Errorf("provision user %s: %w", data.UserID, err)
	}
	return nil
}

// HandleProductUpserted mirrors a catalog product into the engine.
func (c *Consumer) HandleProductUpserted(ctx context.Context, event *pkgkafka.Event) error {
	var data ProductUpsertedData
	if err := decode(event, &data); err != nil {
		return err
	}

	product, inserted, err := c.catalog.UpsertProduct(ctx, service.UpsertProductInput{
		ID:            data.ID,
		Name:          data.Name,
		Description:   data.Description,
		Price:         data.Price,
		StockQuantity: data.StockQuantity,
		Category:      data.Category,
		ImageURL:      data.ImageURL,
	})
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", data.ID, err)
	}

	c.logger.InfoContext(ctx, "catalog product applied",
		slog.String("product_id", product.ID),
		slog.Bool("inserted", inserted),
	)
	return nil
}

func decode(event *pkgkafka.Event, dst any) error {
	if err := event.UnmarshalData(dst); err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("unmarshal %s data: %v", event.EventType, err))
	}
	if err := validator.Validate(dst); err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("invalid %s data: %v", event.EventType, err))
	}
	return nil
}
