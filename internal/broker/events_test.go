package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"basket-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	key   string
	event interface{}
}

type recordingPublisher struct {
	events []recordedEvent
}

func (r *recordingPublisher) PublishEvent(ctx context.Context, key string, event interface{}) error {
	r.events = append(r.events, recordedEvent{key: key, event: event})
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func TestEventPublisherKeys(t *testing.T) {
	rec := &recordingPublisher{}
	ep := NewEventPublisher(rec)
	ctx := context.Background()

	require.NoError(t, ep.PublishBasketCreated(ctx, &models.BasketCreatedEvent{BasketID: "1-abc"}))
	require.NoError(t, ep.PublishOrderCreated(ctx, &models.OrderCreatedEvent{OrderID: 7}))

	require.Len(t, rec.events, 2)
	assert.Equal(t, "basket-1-abc", rec.events[0].key)
	assert.Equal(t, "order-7", rec.events[1].key)
}

func TestHandleMessageRoutesOrderCreated(t *testing.T) {
	eh := NewEventHandler()

	var got *models.OrderCreatedEvent
	eh.OnOrderCreated(func(ctx context.Context, e *models.OrderCreatedEvent) error {
		got = e
		return nil
	})

	payload, err := json.Marshal(&models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-1",
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:    11,
		TotalPrice: decimal.NewFromInt(3),
		Lines:      []models.OrderLineData{{ProductID: 1, Quantity: 3, Stocked: true}},
	})
	require.NoError(t, err)

	err = eh.HandleMessage(context.Background(), kafka.Message{Value: payload})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(11), got.OrderID)
	assert.True(t, got.TotalPrice.Equal(decimal.NewFromInt(3)))
	assert.Len(t, got.Lines, 1)
}

func TestHandleMessagePropagatesHandlerError(t *testing.T) {
	eh := NewEventHandler()
	eh.OnOrderCreated(func(ctx context.Context, e *models.OrderCreatedEvent) error {
		return errors.New("boom")
	})

	payload := []byte(`{"event_id":"e","event_type":"ORDER_CREATED","order_id":1}`)
	assert.EqualError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: payload}), "boom")
}

func TestHandleMessageIgnoresBasketEvents(t *testing.T) {
	eh := NewEventHandler()
	payload := []byte(`{"event_id":"e","event_type":"BASKET_UPDATED"}`)
	assert.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: payload}))
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	eh := NewEventHandler()
	assert.Error(t, eh.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")}))
}

func TestLogPublisherForwardsToHandler(t *testing.T) {
	pub := NewLogPublisher()
	handler := NewEventHandler()

	var got *models.OrderCreatedEvent
	handler.OnOrderCreated(func(ctx context.Context, event *models.OrderCreatedEvent) error {
		got = event
		return nil
	})
	pub.Forward(handler.HandleMessage)

	ep := NewEventPublisher(pub)
	err := ep.PublishOrderCreated(context.Background(), &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-9", EventType: models.EventTypeOrderCreated},
		OrderID:   9,
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(9), got.OrderID)
}
