package service

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	"basket-service/internal/broker"
	"basket-service/internal/models"
	"basket-service/internal/store"
	"basket-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	idempotencyTTL = 24 * time.Hour
	// referenceAttempts bounds regeneration of colliding reference numbers
	referenceAttempts = 5
)

// OrderConverter turns baskets into orders
type OrderConverter struct {
	baskets        *BasketService
	store          store.Repository
	inventory      *InventoryClient
	idempotency    IdempotencyStore
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
	newReference   func(shopID int64, now time.Time) string
}

// NewOrderConverter creates a new order converter
func NewOrderConverter(
	baskets *BasketService,
	store store.Repository,
	inventory *InventoryClient,
	idempotency IdempotencyStore,
	eventPublisher *broker.EventPublisher,
) *OrderConverter {
	return &OrderConverter{
		baskets:        baskets,
		store:          store,
		inventory:      inventory,
		idempotency:    idempotency,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
		newReference:   generateReferenceNumber,
	}
}

// OrderView is an order together with its lines
type OrderView struct {
	*models.Order
	Lines []models.OrderLine `json:"lines"`
}

type reservation struct {
	productID int64
	quantity  int
}

// CreateOrder validates the basket, reserves stock for stocked lines and
// persists the order while marking the basket finished.
// A repeated idempotencyKey for the same basket returns the order created by the first call.
func (c *OrderConverter) CreateOrder(ctx context.Context, id, idempotencyKey string) (*OrderView, error) {
	ctx, span := util.StartSpan(ctx, "OrderConverter.CreateOrder", attribute.String("basket.id", id))
	defer span.End()

	view, err := c.createOrder(ctx, id, idempotencyKey)
	if err != nil {
		util.RecordError(span, err)
		util.OrdersFailedTotal.WithLabelValues(reason(err)).Inc()
		return nil, err
	}
	span.SetAttributes(attribute.Int64("order.id", view.ID))
	return view, nil
}

func (c *OrderConverter) createOrder(ctx context.Context, id, idempotencyKey string) (*OrderView, error) {
	shopID, key, err := ParseBasketID(id)
	if err != nil {
		return nil, malformedID(id)
	}
	scope := ""
	if idempotencyKey != "" {
		scope = idempotencyScope(shopID, key, idempotencyKey)
		if existing := c.lookupIdempotent(ctx, scope, key); existing != nil {
			c.logger.Info("Duplicate order request detected",
				zap.String("idempotency_key", idempotencyKey),
				zap.Int64("order_id", existing.ID))
			return existing, nil
		}
	}

	unlock, err := c.baskets.lockBasket(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	basket, err := c.baskets.loadBasket(ctx, id)
	if err != nil {
		return nil, err
	}
	if basket.Finished {
		return nil, invalid(MsgBasketFinished)
	}

	errs, err := c.baskets.validationErrors(ctx, basket)
	if err != nil {
		return nil, err
	}
	if len(basket.Data.Lines) == 0 {
		errs = append([]string{"Basket is empty"}, errs...)
	}
	if len(errs) > 0 {
		return nil, &Error{Kind: KindInvalid, Message: "Order could not be created", Errors: errs}
	}

	shipping, err := c.shippingMethod(ctx, basket)
	if err != nil {
		return nil, err
	}
	payment, err := c.paymentMethod(ctx, basket)
	if err != nil {
		return nil, err
	}

	campaigns, err := c.baskets.campaigns(ctx, basket)
	if err != nil {
		return nil, err
	}
	totals := CalculateTotals(basket.Data.Lines, campaigns)

	products := make(map[int64]*models.Product, len(basket.Data.Lines))
	lines := make([]models.OrderLine, 0, len(basket.Data.Lines))
	for _, line := range basket.Data.Lines {
		product, err := c.store.GetProductByID(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to load product %d: %w", line.ProductID, err)
		}
		products[product.ID] = product
		lines = append(lines, models.OrderLine{
			ProductID:     line.ProductID,
			ShopProductID: line.ShopProductID,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			TotalPrice:    lineTotal(line),
		})
	}

	order := &models.Order{
		ShopID:           basket.ShopID,
		BasketKey:        basket.Key,
		CustomerID:       basket.CustomerID,
		OrdererID:        RequesterFrom(ctx),
		CreatorID:        RequesterFrom(ctx),
		Status:           models.OrderStatusInitial,
		PaymentStatus:    models.PaymentStatusNotPaid,
		ShippingStatus:   models.ShippingStatusNotShipped,
		ShippingMethodID: basket.ShippingMethodID,
		PaymentMethodID:  basket.PaymentMethodID,
		TaxfulTotalPrice: totalWithMethods(totals.Total, shipping, payment),
		Codes:            models.StringList(append([]string{}, basket.Data.Codes...)),
	}
	if order.CustomerID == nil {
		order.CustomerID = order.OrdererID
	}
	if order.CreatorID == nil {
		order.CreatorID = basket.CreatorID
	}
	if order.ShippingAddress, err = c.addressSnapshot(ctx, basket.ShippingAddrID); err != nil {
		return nil, err
	}
	if order.BillingAddress, err = c.addressSnapshot(ctx, basket.BillingAddrID); err != nil {
		return nil, err
	}

	reserved, err := c.reserveStock(ctx, basket, products)
	if err != nil {
		return nil, err
	}

	if err := c.persistOrder(ctx, order, lines, basket); err != nil {
		c.compensateReservations(ctx, basket, reserved)
		if errors.Is(err, store.ErrBasketFinished) {
			return nil, invalid(MsgBasketFinished)
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	c.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("reference_number", order.ReferenceNumber),
		zap.String("basket", basket.ID()))

	if scope != "" {
		if err := c.idempotency.SetIdempotencyKey(ctx, scope, strconv.FormatInt(order.ID, 10), idempotencyTTL); err != nil {
			c.logger.Error("Failed to store idempotency key", zap.Error(err))
		}
	}

	eventLines := make([]models.OrderLineData, 0, len(lines))
	for _, line := range lines {
		eventLines = append(eventLines, models.OrderLineData{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Stocked:   products[line.ProductID].IsStocked(),
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:         order.ID,
		ReferenceNumber: order.ReferenceNumber,
		ShopID:          order.ShopID,
		BasketID:        basket.ID(),
		CustomerID:      order.CustomerID,
		TotalPrice:      order.TaxfulTotalPrice,
		Lines:           eventLines,
	}
	if err := c.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
		c.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return &OrderView{Order: order, Lines: lines}, nil
}

// reserveStock reserves every stocked line, releasing earlier reservations on failure
func (c *OrderConverter) reserveStock(ctx context.Context, basket *models.Basket, products map[int64]*models.Product) ([]reservation, error) {
	var reserved []reservation

	for _, line := range basket.Data.Lines {
		product := products[line.ProductID]
		if !product.IsStocked() {
			continue
		}

		ok, err := c.inventory.ReserveStock(ctx, product.ID, line.Quantity)
		if err != nil {
			util.InventoryReservationsFailed.WithLabelValues("error").Inc()
			c.compensateReservations(ctx, basket, reserved)
			return nil, fmt.Errorf("failed to reserve stock for product %d: %w", product.ID, err)
		}
		if !ok {
			util.InventoryReservationsFailed.WithLabelValues("insufficient_stock").Inc()
			c.compensateReservations(ctx, basket, reserved)
			return nil, &Error{
				Kind:    KindInvalid,
				Message: "Order could not be created",
				Errors:  []string{fmt.Sprintf("%s: %s", product.Name, MsgInsufficientStock)},
			}
		}
		reserved = append(reserved, reservation{productID: product.ID, quantity: line.Quantity})
	}

	return reserved, nil
}

// persistOrder stores the order under a fresh reference number,
// regenerating it when the number is already taken
func (c *OrderConverter) persistOrder(ctx context.Context, order *models.Order, lines []models.OrderLine, basket *models.Basket) error {
	var err error
	for attempt := 1; attempt <= referenceAttempts; attempt++ {
		order.ReferenceNumber = c.newReference(basket.ShopID, time.Now())
		err = c.store.CreateOrderFromBasket(ctx, order, lines, basket)
		if !errors.Is(err, store.ErrDuplicateReference) {
			return err
		}
		c.logger.Warn("Reference number collision",
			zap.String("reference_number", order.ReferenceNumber),
			zap.Int("attempt", attempt))
	}
	return err
}

// compensateReservations rolls back inventory reservations
func (c *OrderConverter) compensateReservations(ctx context.Context, basket *models.Basket, reserved []reservation) {
	for _, r := range reserved {
		if err := c.inventory.ReleaseStock(ctx, r.productID, r.quantity); err != nil {
			c.logger.Error("Failed to compensate reservation",
				zap.String("basket", basket.ID()),
				zap.Int64("product_id", r.productID),
				zap.Error(err))
		}
	}
}

// shippingMethod returns the selected method, or nil when the basket has none
func (c *OrderConverter) shippingMethod(ctx context.Context, basket *models.Basket) (*models.ShippingMethod, error) {
	if basket.ShippingMethodID == nil {
		return nil, nil
	}
	return c.store.GetShippingMethod(ctx, *basket.ShippingMethodID)
}

// paymentMethod returns the selected method, or nil when the basket has none
func (c *OrderConverter) paymentMethod(ctx context.Context, basket *models.Basket) (*models.PaymentMethod, error) {
	if basket.PaymentMethodID == nil {
		return nil, nil
	}
	return c.store.GetPaymentMethod(ctx, *basket.PaymentMethodID)
}

func (c *OrderConverter) addressSnapshot(ctx context.Context, id *int64) (*models.AddressData, error) {
	addr, err := c.baskets.optionalAddress(ctx, id)
	if err != nil || addr == nil {
		return nil, err
	}
	snapshot := models.AddressData(*addr)
	return &snapshot, nil
}

// idempotencyScope ties a client key to one basket
func idempotencyScope(shopID int64, basketKey, key string) string {
	return fmt.Sprintf("order:%d-%s:%s", shopID, basketKey, key)
}

// lookupIdempotent returns the order recorded under scope if it was created from basketKey
func (c *OrderConverter) lookupIdempotent(ctx context.Context, scope, basketKey string) *OrderView {
	value, ok, err := c.idempotency.GetIdempotencyKey(ctx, scope)
	if err != nil {
		c.logger.Warn("Failed to check idempotency key", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	orderID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil
	}
	view, err := c.GetOrder(ctx, orderID)
	if err != nil || view.BasketKey != basketKey {
		return nil
	}
	return view
}

// GetOrder retrieves an order with its lines
func (c *OrderConverter) GetOrder(ctx context.Context, orderID int64) (*OrderView, error) {
	ctx, span := util.StartSpan(ctx, "OrderConverter.GetOrder", attribute.Int64("order.id", orderID))
	defer span.End()

	order, err := c.store.GetOrderByID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Order %d not found", orderID)
	}
	if err != nil {
		return nil, err
	}

	lines, err := c.store.GetOrderLines(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []models.OrderLine{}
	}

	return &OrderView{Order: order, Lines: lines}, nil
}

// generateReferenceNumber builds "{shop}{yymmdd}{6 random digits}{luhn check digit}"
func generateReferenceNumber(shopID int64, now time.Time) string {
	id := uuid.New()
	random := binary.BigEndian.Uint32(id[:4]) % 1000000
	base := fmt.Sprintf("%d%s%06d", shopID, now.UTC().Format("060102"), random)
	return base + strconv.Itoa(luhnCheckDigit(base))
}

// luhnCheckDigit returns the digit that makes digits+digit pass the Luhn check
func luhnCheckDigit(digits string) int {
	sum := 0
	double := true
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}

// totalWithMethods is the price charged for the basket including fees of the selected methods
func totalWithMethods(total decimal.Decimal, shipping *models.ShippingMethod, payment *models.PaymentMethod) decimal.Decimal {
	if shipping != nil {
		total = total.Add(shipping.Price)
	}
	if payment != nil {
		total = total.Add(payment.Price)
	}
	return total.Round(2)
}
