package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeBasketCreated       = "BASKET_CREATED"
	EventTypeBasketUpdated       = "BASKET_UPDATED"
	EventTypeOrderCreated        = "ORDER_CREATED"
	EventTypeOrderStockCommitted = "ORDER_STOCK_COMMITTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// BasketCreatedEvent published when a basket is opened
type BasketCreatedEvent struct {
	BaseEvent
	BasketID  string `json:"basket_id"`
	ShopID    int64  `json:"shop_id"`
	CreatorID *int64 `json:"creator_id,omitempty"`
}

// BasketUpdatedEvent published after every successful basket mutation
type BasketUpdatedEvent struct {
	BaseEvent
	BasketID     string          `json:"basket_id"`
	ShopID       int64           `json:"shop_id"`
	Operation    string          `json:"operation"`
	ProductCount int             `json:"product_count"`
	TotalPrice   decimal.Decimal `json:"total_price"`
}

// OrderCreatedEvent published when a basket is converted into an order
type OrderCreatedEvent struct {
	BaseEvent
	OrderID         int64           `json:"order_id"`
	ReferenceNumber string          `json:"reference_number"`
	ShopID          int64           `json:"shop_id"`
	BasketID        string          `json:"basket_id"`
	CustomerID      *int64          `json:"customer_id,omitempty"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	Lines           []OrderLineData `json:"lines"`
}

// OrderStockCommittedEvent published once reserved stock of an order is deducted
type OrderStockCommittedEvent struct {
	BaseEvent
	OrderID int64 `json:"order_id"`
}

// OrderLineData represents line data in events
type OrderLineData struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Stocked   bool            `json:"stocked"`
}
