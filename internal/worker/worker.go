package worker

import (
	"context"

	"basket-service/internal/broker"
	"basket-service/internal/service"
	"basket-service/internal/util"

	"go.uber.org/zap"
)

// OrderWorker commits stock for orders announced on the event topic
type OrderWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewOrderWorker creates a new order worker
func NewOrderWorker(consumer *broker.Consumer, fulfillment *service.FulfillmentHandler) *OrderWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(fulfillment.HandleOrderCreated)

	return &OrderWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start blocks consuming events until ctx is cancelled
func (w *OrderWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting order worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *OrderWorker) Stop() error {
	w.logger.Info("Stopping order worker")
	return w.consumer.Close()
}
