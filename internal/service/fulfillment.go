package service

import (
	"context"
	"fmt"
	"time"

	"basket-service/internal/broker"
	"basket-service/internal/models"
	"basket-service/internal/store"
	"basket-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// FulfillmentHandler commits the stock reserved by newly created orders
type FulfillmentHandler struct {
	store          store.Repository
	inventory      *InventoryClient
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewFulfillmentHandler creates a new fulfillment handler
func NewFulfillmentHandler(store store.Repository, inventory *InventoryClient, eventPublisher *broker.EventPublisher) *FulfillmentHandler {
	return &FulfillmentHandler{
		store:          store,
		inventory:      inventory,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// HandleOrderCreated deducts reserved stock for the stocked lines of an order.
// Redelivered events are ignored.
func (h *FulfillmentHandler) HandleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	ctx, span := util.StartSpan(ctx, "FulfillmentHandler.HandleOrderCreated",
		attribute.Int64("order.id", event.OrderID))
	defer span.End()

	processed, err := h.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to check event: %w", err)
	}
	if processed {
		h.logger.Info("Event already processed, skipping",
			zap.String("event_id", event.EventID),
			zap.Int64("order_id", event.OrderID))
		return nil
	}

	for _, line := range event.Lines {
		if !line.Stocked {
			continue
		}
		if err := h.inventory.CommitStock(ctx, line.ProductID, line.Quantity); err != nil {
			util.RecordError(span, err)
			return fmt.Errorf("failed to commit stock for product %d: %w", line.ProductID, err)
		}
	}

	if err := h.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to mark event processed: %w", err)
	}

	util.StockCommittedTotal.Inc()
	h.logger.Info("Order stock committed",
		zap.Int64("order_id", event.OrderID),
		zap.String("reference_number", event.ReferenceNumber))

	committed := &models.OrderStockCommittedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderStockCommitted,
			Timestamp: time.Now(),
		},
		OrderID: event.OrderID,
	}
	if err := h.eventPublisher.PublishOrderStockCommitted(ctx, committed); err != nil {
		h.logger.Error("Failed to publish OrderStockCommitted event", zap.Error(err))
	}

	return nil
}
