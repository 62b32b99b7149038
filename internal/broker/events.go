package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"basket-service/internal/models"
	"basket-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	publisher Publisher
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(publisher Publisher) *EventPublisher {
	return &EventPublisher{publisher: publisher}
}

// PublishBasketCreated publishes BasketCreated event
func (ep *EventPublisher) PublishBasketCreated(ctx context.Context, event *models.BasketCreatedEvent) error {
	return ep.publisher.PublishEvent(ctx, "basket-"+event.BasketID, event)
}

// PublishBasketUpdated publishes BasketUpdated event
func (ep *EventPublisher) PublishBasketUpdated(ctx context.Context, event *models.BasketUpdatedEvent) error {
	return ep.publisher.PublishEvent(ctx, "basket-"+event.BasketID, event)
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.publisher.PublishEvent(ctx, key, event)
}

// PublishOrderStockCommitted publishes OrderStockCommitted event
func (ep *EventPublisher) PublishOrderStockCommitted(ctx context.Context, event *models.OrderStockCommittedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.publisher.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onOrderCreated func(context.Context, *models.OrderCreatedEvent) error
	logger         *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnOrderCreated registers a handler for OrderCreated events
func (eh *EventHandler) OnOrderCreated(handler func(context.Context, *models.OrderCreatedEvent) error) {
	eh.onOrderCreated = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderCreated:
		if eh.onOrderCreated != nil {
			var event models.OrderCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCreated event: %w", err)
			}
			return eh.onOrderCreated(ctx, &event)
		}

	default:
		// basket events are informational for downstream consumers
	}

	return nil
}
